package ntlm

import (
	"crypto/hmac"
	"crypto/md5"
	"errors"
	"strings"

	"golang.org/x/crypto/md4"

	"github.com/dmarenin/smb1d/utils"
)

// ErrLogonFailure is returned when a challenge response does not match
// any derivable hash for the account.
var ErrLogonFailure = errors.New("logon failure")

// Accounts resolves a user name to its plaintext password.
type Accounts interface {
	Password(username string) (string, bool)
}

// Server validates challenge responses against an account store.
type Server struct {
	targetName   string
	targetDomain string
	accounts     Accounts
}

func NewServer(targetName, targetDomain string, accounts Accounts) *Server {
	return &Server{
		targetName:   targetName,
		targetDomain: targetDomain,
		accounts:     accounts,
	}
}

// HasAccount reports whether the user is known to the account store.
func (s *Server) HasAccount(user string) bool {
	_, ok := s.accounts.Password(strings.ToLower(user))
	return ok
}

// Authenticate verifies the NT response against the challenge and
// returns the session key on success. NTLMv2 responses carry a client
// blob after the 16-byte proof; the legacy response is exactly 24
// bytes of DES output.
func (s *Server) Authenticate(user, domain string, challenge, ntResponse []byte) ([]byte, error) {
	password, ok := s.accounts.Password(strings.ToLower(user))
	if !ok || len(challenge) != 8 {
		return nil, ErrLogonFailure
	}
	nthash := ntowfv1(utils.EncodeStringToBytes(password))
	if len(ntResponse) == 24 {
		return authenticateV1(nthash, challenge, ntResponse)
	}
	if len(ntResponse) > 16 {
		return s.authenticateV2(user, domain, nthash, challenge, ntResponse)
	}
	return nil, ErrLogonFailure
}

func (s *Server) authenticateV2(user, domain string, nthash, challenge, ntResponse []byte) ([]byte, error) {
	USER := utils.EncodeStringToBytes(strings.ToUpper(user))
	proof := ntResponse[:16]
	blob := ntResponse[16:]

	// Clients differ on which domain goes into the v2 hash; try the
	// one they sent, the server's own, and none at all.
	for _, d := range []string{domain, s.targetDomain, ""} {
		v2hash := ntowfv2Hash(USER, nthash, utils.EncodeStringToBytes(d))
		h := hmac.New(md5.New, v2hash)
		h.Write(challenge)
		h.Write(blob)
		if hmac.Equal(proof, h.Sum(nil)) {
			h.Reset()
			h.Write(proof)
			return h.Sum(nil), nil
		}
	}
	return nil, ErrLogonFailure
}

func authenticateV1(nthash, challenge, ntResponse []byte) ([]byte, error) {
	want, err := desl(nthash, challenge)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(ntResponse, want) {
		return nil, ErrLogonFailure
	}
	h := md4.New()
	h.Write(nthash)
	return h.Sum(nil), nil
}
