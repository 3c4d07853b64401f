package ntlm

import (
	"crypto/hmac"
	"crypto/md5"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/md4"

	"github.com/dmarenin/smb1d/utils"
)

type mapAccounts map[string]string

func (m mapAccounts) Password(username string) (string, bool) {
	p, ok := m[username]
	return p, ok
}

func testServer() *Server {
	return NewServer("FILESERVER", "WORKGROUP", mapAccounts{
		"alice": "s3cret",
		"guest": "",
	})
}

// v2Response builds the NT response a v2 client would send for the
// given credentials: 16-byte proof followed by the client blob.
func v2Response(user, domain, password string, challenge, blob []byte) ([]byte, []byte) {
	nthash := ntowfv1(utils.EncodeStringToBytes(password))
	v2hash := ntowfv2Hash(utils.EncodeStringToBytes(strings.ToUpper(user)), nthash, utils.EncodeStringToBytes(domain))

	h := hmac.New(md5.New, v2hash)
	h.Write(challenge)
	h.Write(blob)
	proof := h.Sum(nil)

	h.Reset()
	h.Write(proof)
	return append(proof, blob...), h.Sum(nil)
}

func TestHasAccount(t *testing.T) {
	s := testServer()
	assert.True(t, s.HasAccount("alice"))
	assert.True(t, s.HasAccount("Alice"))
	assert.False(t, s.HasAccount("mallory"))
}

func TestAuthenticateV2(t *testing.T) {
	s := testServer()
	challenge := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	blob := []byte{0x01, 0x01, 0, 0, 0, 0, 0, 0, 0xde, 0xad, 0xbe, 0xef}

	resp, wantKey := v2Response("alice", "WORKGROUP", "s3cret", challenge, blob)
	key, err := s.Authenticate("alice", "WORKGROUP", challenge, resp)
	require.NoError(t, err)
	assert.Equal(t, wantKey, key)
}

func TestAuthenticateV2CaseInsensitiveUser(t *testing.T) {
	s := testServer()
	challenge := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	blob := make([]byte, 28)

	resp, _ := v2Response("ALICE", "WORKGROUP", "s3cret", challenge, blob)
	_, err := s.Authenticate("ALICE", "WORKGROUP", challenge, resp)
	assert.NoError(t, err)
}

func TestAuthenticateV2DomainFallback(t *testing.T) {
	// The client hashed with no domain at all but sent one anyway; the
	// server still finds a match on the empty-domain variant.
	s := testServer()
	challenge := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	blob := []byte{1, 2, 3, 4}

	resp, _ := v2Response("alice", "", "s3cret", challenge, blob)
	_, err := s.Authenticate("alice", "SOMEDOMAIN", challenge, resp)
	assert.NoError(t, err)
}

func TestAuthenticateV2WrongPassword(t *testing.T) {
	s := testServer()
	challenge := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	blob := []byte{1, 2, 3, 4}

	resp, _ := v2Response("alice", "WORKGROUP", "wrong", challenge, blob)
	_, err := s.Authenticate("alice", "WORKGROUP", challenge, resp)
	assert.ErrorIs(t, err, ErrLogonFailure)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	s := testServer()
	challenge := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	resp, _ := v2Response("mallory", "WORKGROUP", "x", challenge, []byte{0})
	_, err := s.Authenticate("mallory", "WORKGROUP", challenge, resp)
	assert.ErrorIs(t, err, ErrLogonFailure)
}

func TestAuthenticateBadChallengeLength(t *testing.T) {
	s := testServer()
	resp, _ := v2Response("alice", "WORKGROUP", "s3cret", []byte{1, 2, 3, 4}, []byte{0})
	_, err := s.Authenticate("alice", "WORKGROUP", []byte{1, 2, 3, 4}, resp)
	assert.ErrorIs(t, err, ErrLogonFailure)
}

func TestAuthenticateShortResponse(t *testing.T) {
	s := testServer()
	challenge := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	_, err := s.Authenticate("alice", "WORKGROUP", challenge, make([]byte, 16))
	assert.ErrorIs(t, err, ErrLogonFailure)
}

func TestAuthenticateV1(t *testing.T) {
	s := testServer()
	challenge := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

	nthash := ntowfv1(utils.EncodeStringToBytes("s3cret"))
	resp, err := desl(nthash, challenge)
	require.NoError(t, err)
	require.Len(t, resp, 24)

	key, err := s.Authenticate("alice", "", challenge, resp)
	require.NoError(t, err)

	h := md4.New()
	h.Write(nthash)
	assert.Equal(t, h.Sum(nil), key)
}

func TestAuthenticateV1WrongPassword(t *testing.T) {
	s := testServer()
	challenge := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

	resp, err := desl(ntowfv1(utils.EncodeStringToBytes("wrong")), challenge)
	require.NoError(t, err)
	_, err = s.Authenticate("alice", "", challenge, resp)
	assert.ErrorIs(t, err, ErrLogonFailure)
}

func TestAuthenticateEmptyPassword(t *testing.T) {
	s := testServer()
	challenge := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	resp, _ := v2Response("guest", "WORKGROUP", "", challenge, []byte{0xff})
	_, err := s.Authenticate("guest", "WORKGROUP", challenge, resp)
	assert.NoError(t, err)
}
