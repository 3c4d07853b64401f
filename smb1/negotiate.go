package smb1

import (
	"encoding/binary"
	"time"

	"github.com/dmarenin/smb1d/utils"
)

// NegotiateRequest carries the dialect strings offered by the client in
// preference order.
type NegotiateRequest struct {
	Dialects []string
}

// ParseNegotiate decodes a NEGOTIATE request block. Each dialect is a
// BufferFormatDialect byte followed by a null-terminated ASCII string.
func ParseNegotiate(req Request) (NegotiateRequest, error) {
	data, err := req.Bytes()
	if err != nil {
		return NegotiateRequest{}, err
	}
	var nr NegotiateRequest
	for len(data) > 0 {
		if data[0] != BufferFormatDialect {
			return NegotiateRequest{}, ErrWrongFormat
		}
		data = data[1:]
		i := 0
		for i < len(data) && data[i] != 0 {
			i++
		}
		if i == len(data) {
			return NegotiateRequest{}, ErrWrongFormat
		}
		nr.Dialects = append(nr.Dialects, string(data[:i]))
		data = data[i+1:]
	}
	if len(nr.Dialects) == 0 {
		return NegotiateRequest{}, ErrWrongFormat
	}
	return nr, nil
}

// Index returns the position of dialect d in the request, or -1.
func (nr NegotiateRequest) Index(d string) int {
	for i, dialect := range nr.Dialects {
		if dialect == d {
			return i
		}
	}
	return -1
}

// NegotiateResponse holds the negotiated connection parameters reported
// back to the client.
type NegotiateResponse struct {
	DialectIndex  uint16
	SecurityMode  uint8
	MaxMpxCount   uint16
	MaxNumberVcs  uint16
	MaxBufferSize uint32
	MaxRawSize    uint32
	SessionKey    uint32
	Capabilities  uint32
	SystemTime    time.Time
	TimeZone      int16
	Challenge     []byte
	DomainName    string
}

// Encode appends the NT LM 0.12 negotiate response block.
func (nr NegotiateResponse) Encode(c *Composer) {
	words := make([]byte, 34)
	binary.LittleEndian.PutUint16(words[0:2], nr.DialectIndex)
	words[2] = nr.SecurityMode
	binary.LittleEndian.PutUint16(words[3:5], nr.MaxMpxCount)
	binary.LittleEndian.PutUint16(words[5:7], nr.MaxNumberVcs)
	binary.LittleEndian.PutUint32(words[7:11], nr.MaxBufferSize)
	binary.LittleEndian.PutUint32(words[11:15], nr.MaxRawSize)
	binary.LittleEndian.PutUint32(words[15:19], nr.SessionKey)
	binary.LittleEndian.PutUint32(words[19:23], nr.Capabilities)
	binary.LittleEndian.PutUint64(words[23:31], utils.UnixToFiletime(nr.SystemTime))
	binary.LittleEndian.PutUint16(words[31:33], uint16(nr.TimeZone))
	words[33] = uint8(len(nr.Challenge))

	data := append([]byte{}, nr.Challenge...)
	data = append(data, utils.EncodeStringToBytes(nr.DomainName)...)
	data = append(data, 0, 0)
	c.PutBlock(words, data)
}

// EncodeSMB2Handoff appends the SMB2 NEGOTIATE shape announcing the given
// dialect revision; the connection is then handled by the SMB2 layer. Only
// the fields a client inspects before re-negotiating are populated.
func EncodeSMB2Handoff(dialect uint16, serverGUID []byte, systemTime time.Time) []byte {
	const smb2HeaderSize = 64
	msg := make([]byte, smb2HeaderSize+65)
	binary.LittleEndian.PutUint32(msg[0:4], 0x424d53fe)
	binary.LittleEndian.PutUint16(msg[4:6], smb2HeaderSize)
	binary.LittleEndian.PutUint16(msg[12:14], 0) // SMB2 NEGOTIATE
	binary.LittleEndian.PutUint32(msg[16:20], 1) // SMB2_FLAGS_SERVER_TO_REDIR
	body := msg[smb2HeaderSize:]
	binary.LittleEndian.PutUint16(body[0:2], 65)
	binary.LittleEndian.PutUint16(body[4:6], dialect)
	copy(body[8:24], serverGUID)
	binary.LittleEndian.PutUint32(body[28:32], 0x00010000) // max transact size
	binary.LittleEndian.PutUint32(body[32:36], 0x00010000) // max read size
	binary.LittleEndian.PutUint32(body[36:40], 0x00010000) // max write size
	binary.LittleEndian.PutUint64(body[40:48], utils.UnixToFiletime(systemTime))
	binary.LittleEndian.PutUint16(body[56:58], uint16(smb2HeaderSize+64))
	return msg
}
