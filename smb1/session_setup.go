package smb1

import (
	"encoding/binary"
)

// SESSION_SETUP_ANDX response action bits.
const (
	ActionGuest = 0x0001
)

// SessionSetupRequest is the NT LM 0.12 session setup without extended
// security: raw case-insensitive and case-sensitive responses at fixed
// offsets, followed by account, domain and OS strings.
type SessionSetupRequest struct {
	MaxBufferSize  uint16
	MaxMpxCount    uint16
	VcNumber       uint16
	SessionKey     uint32
	Capabilities   uint32
	CaseInsensitive []byte
	CaseSensitive  []byte
	AccountName    string
	PrimaryDomain  string
	NativeOS       string
	NativeLanMan   string
}

// ParseSessionSetup decodes a SESSION_SETUP_ANDX request block.
func ParseSessionSetup(req Request) (SessionSetupRequest, error) {
	words, err := req.Words()
	if err != nil {
		return SessionSetupRequest{}, err
	}
	if len(words) < 26 {
		return SessionSetupRequest{}, ErrWrongFormat
	}
	var ss SessionSetupRequest
	ss.MaxBufferSize = binary.LittleEndian.Uint16(words[4:6])
	ss.MaxMpxCount = binary.LittleEndian.Uint16(words[6:8])
	ss.VcNumber = binary.LittleEndian.Uint16(words[8:10])
	ss.SessionKey = binary.LittleEndian.Uint32(words[10:14])
	ciLen := int(binary.LittleEndian.Uint16(words[14:16]))
	csLen := int(binary.LittleEndian.Uint16(words[16:18]))
	ss.Capabilities = binary.LittleEndian.Uint32(words[22:26])

	data, err := req.Bytes()
	if err != nil {
		return SessionSetupRequest{}, err
	}
	if ciLen+csLen > len(data) {
		return SessionSetupRequest{}, ErrWrongLength
	}
	ss.CaseInsensitive = data[:ciLen]
	ss.CaseSensitive = data[ciLen : ciLen+csLen]

	dataStart, err := BlockEnd(req.Msg, req.Off)
	if err != nil {
		return SessionSetupRequest{}, err
	}
	dataStart -= len(data)
	off := dataStart + ciLen + csLen
	if ss.AccountName, off, err = req.String(req.Msg, off); err != nil {
		return SessionSetupRequest{}, err
	}
	if ss.PrimaryDomain, off, err = req.String(req.Msg, off); err != nil {
		return SessionSetupRequest{}, err
	}
	if ss.NativeOS, off, err = req.String(req.Msg, off); err != nil {
		// Trailing strings are advisory; older clients truncate them.
		return ss, nil
	}
	ss.NativeLanMan, _, _ = req.String(req.Msg, off)
	return ss, nil
}

// SessionSetupResponse reports the authentication outcome.
type SessionSetupResponse struct {
	Action       uint16
	NativeOS     string
	NativeLanMan string
	PrimaryDomain string
}

// Encode appends the session setup response block to the chain.
func (sr SessionSetupResponse) Encode(c *Composer) int {
	words := make([]byte, 2)
	binary.LittleEndian.PutUint16(words, sr.Action)

	unicode := c.Header().IsUnicode()
	dataOff := c.Len() + 1 + 4 + len(words) + 2
	var data []byte
	for _, s := range []string{sr.NativeOS, sr.NativeLanMan, sr.PrimaryDomain} {
		enc := PutString(unicode, dataOff+len(data), s)
		data = append(data, enc...)
	}
	return c.PutAndXBlock(SMB_COM_SESSION_SETUP_ANDX, words, data)
}
