package smb1

import (
	"encoding/binary"

	"github.com/dmarenin/smb1d/utils"
)

// TransRequest is the decoded envelope shared by TRANSACTION and
// TRANSACTION2: a setup word array plus separate parameter and data areas
// located by absolute offsets within the message.
type TransRequest struct {
	TotalParamCount uint16
	TotalDataCount  uint16
	MaxParamCount   uint16
	MaxDataCount    uint16
	MaxSetupCount   uint8
	Flags           uint16
	Timeout         uint32
	Setup           []uint16
	Name            string
	Params          []byte
	Data            []byte
}

// SubCommand returns the first setup word, the sub-command selector.
func (tr TransRequest) SubCommand() (uint16, error) {
	if len(tr.Setup) == 0 {
		return 0, ErrWrongFormat
	}
	return tr.Setup[0], nil
}

// ParseTrans decodes a TRANSACTION or TRANSACTION2 request block. withName
// selects the TRANSACTION layout, which carries a pipe name between the
// setup words and the parameter area.
func ParseTrans(req Request, withName bool) (TransRequest, error) {
	words, err := req.Words()
	if err != nil {
		return TransRequest{}, err
	}
	if len(words) < 28 {
		return TransRequest{}, ErrWrongFormat
	}
	var tr TransRequest
	tr.TotalParamCount = binary.LittleEndian.Uint16(words[0:2])
	tr.TotalDataCount = binary.LittleEndian.Uint16(words[2:4])
	tr.MaxParamCount = binary.LittleEndian.Uint16(words[4:6])
	tr.MaxDataCount = binary.LittleEndian.Uint16(words[6:8])
	tr.MaxSetupCount = words[8]
	tr.Flags = binary.LittleEndian.Uint16(words[10:12])
	tr.Timeout = binary.LittleEndian.Uint32(words[12:16])
	paramCount := int(binary.LittleEndian.Uint16(words[18:20]))
	paramOff := int(binary.LittleEndian.Uint16(words[20:22]))
	dataCount := int(binary.LittleEndian.Uint16(words[22:24]))
	dataOff := int(binary.LittleEndian.Uint16(words[24:26]))
	setupCount := int(words[26])
	if len(words) < 28+setupCount*2 {
		return TransRequest{}, ErrWrongFormat
	}
	for i := 0; i < setupCount; i++ {
		tr.Setup = append(tr.Setup, binary.LittleEndian.Uint16(words[28+i*2:30+i*2]))
	}

	if withName {
		start, err := BlockEnd(req.Msg, req.Off)
		if err != nil {
			return TransRequest{}, err
		}
		data, err := req.Bytes()
		if err != nil {
			return TransRequest{}, err
		}
		start -= len(data)
		tr.Name, _, err = req.String(req.Msg, start)
		if err != nil {
			return TransRequest{}, err
		}
	}

	if paramOff+paramCount > len(req.Msg) || dataOff+dataCount > len(req.Msg) {
		return TransRequest{}, ErrWrongLength
	}
	if paramCount > 0 {
		if paramOff < HeaderSize {
			return TransRequest{}, ErrWrongLength
		}
		tr.Params = req.Msg[paramOff : paramOff+paramCount]
	}
	if dataCount > 0 {
		if dataOff < HeaderSize {
			return TransRequest{}, ErrWrongLength
		}
		tr.Data = req.Msg[dataOff : dataOff+dataCount]
	}
	return tr, nil
}

// NT_TRANSACT sub-commands.
const (
	NT_TRANSACT_CREATE              = 0x0001
	NT_TRANSACT_IOCTL               = 0x0002
	NT_TRANSACT_SET_SECURITY_DESC   = 0x0003
	NT_TRANSACT_NOTIFY_CHANGE       = 0x0004
	NT_TRANSACT_QUERY_SECURITY_DESC = 0x0006
)

// NTTransRequest is the decoded NT_TRANSACT envelope: same shape as the
// older transactions but with 32-bit counts and a function word.
type NTTransRequest struct {
	MaxParamCount uint32
	MaxDataCount  uint32
	Function      uint16
	Setup         []uint16
	Params        []byte
	Data          []byte
}

// ParseNTTrans decodes an NT_TRANSACT request block.
func ParseNTTrans(req Request) (NTTransRequest, error) {
	words, err := req.Words()
	if err != nil {
		return NTTransRequest{}, err
	}
	if len(words) < 38 {
		return NTTransRequest{}, ErrWrongFormat
	}
	var tr NTTransRequest
	tr.MaxParamCount = binary.LittleEndian.Uint32(words[11:15])
	tr.MaxDataCount = binary.LittleEndian.Uint32(words[15:19])
	paramCount := int(binary.LittleEndian.Uint32(words[19:23]))
	paramOff := int(binary.LittleEndian.Uint32(words[23:27]))
	dataCount := int(binary.LittleEndian.Uint32(words[27:31]))
	dataOff := int(binary.LittleEndian.Uint32(words[31:35]))
	setupCount := int(words[35])
	tr.Function = binary.LittleEndian.Uint16(words[36:38])
	if len(words) < 38+setupCount*2 {
		return NTTransRequest{}, ErrWrongFormat
	}
	for i := 0; i < setupCount; i++ {
		tr.Setup = append(tr.Setup, binary.LittleEndian.Uint16(words[38+i*2:40+i*2]))
	}
	if paramOff+paramCount > len(req.Msg) || dataOff+dataCount > len(req.Msg) {
		return NTTransRequest{}, ErrWrongLength
	}
	if paramCount > 0 {
		if paramOff < HeaderSize {
			return NTTransRequest{}, ErrWrongLength
		}
		tr.Params = req.Msg[paramOff : paramOff+paramCount]
	}
	if dataCount > 0 {
		if dataOff < HeaderSize {
			return NTTransRequest{}, ErrWrongLength
		}
		tr.Data = req.Msg[dataOff : dataOff+dataCount]
	}
	return tr, nil
}

// EncodeNTTrans appends an NT_TRANSACT response block.
func EncodeNTTrans(c *Composer, setup []uint16, params, data []byte) int {
	wordLen := 36 + len(setup)*2
	words := make([]byte, wordLen)
	binary.LittleEndian.PutUint32(words[3:7], uint32(len(params)))
	binary.LittleEndian.PutUint32(words[7:11], uint32(len(data)))

	blockOff := c.Len()
	areaOff := blockOff + 1 + wordLen + 2
	paramOff := utils.Roundup(areaOff, 4)
	dataOff := utils.Roundup(paramOff+len(params), 4)

	binary.LittleEndian.PutUint32(words[11:15], uint32(len(params)))
	binary.LittleEndian.PutUint32(words[15:19], uint32(paramOff))
	binary.LittleEndian.PutUint32(words[23:27], uint32(len(data)))
	binary.LittleEndian.PutUint32(words[27:31], uint32(dataOff))
	words[35] = uint8(len(setup))
	for i, s := range setup {
		binary.LittleEndian.PutUint16(words[36+i*2:38+i*2], s)
	}

	payload := make([]byte, dataOff+len(data)-areaOff)
	copy(payload[paramOff-areaOff:], params)
	copy(payload[dataOff-areaOff:], data)
	return c.PutBlock(words, payload)
}

// EncodeTrans appends a transaction response block carrying the given
// setup, parameter and data areas, aligned to 4-byte boundaries the way
// clients expect.
func EncodeTrans(c *Composer, setup []uint16, params, data []byte) int {
	wordLen := 20 + len(setup)*2
	words := make([]byte, wordLen)
	binary.LittleEndian.PutUint16(words[0:2], uint16(len(params)))
	binary.LittleEndian.PutUint16(words[2:4], uint16(len(data)))

	// Block layout: wordcount byte, words, bytecount, then pad + params +
	// pad + data.
	blockOff := c.Len()
	areaOff := blockOff + 1 + wordLen + 2
	paramOff := utils.Roundup(areaOff, 4)
	dataOff := utils.Roundup(paramOff+len(params), 4)

	binary.LittleEndian.PutUint16(words[6:8], uint16(len(params)))
	binary.LittleEndian.PutUint16(words[8:10], uint16(paramOff))
	binary.LittleEndian.PutUint16(words[12:14], uint16(len(data)))
	binary.LittleEndian.PutUint16(words[14:16], uint16(dataOff))
	words[18] = uint8(len(setup))
	for i, s := range setup {
		binary.LittleEndian.PutUint16(words[20+i*2:22+i*2], s)
	}

	payload := make([]byte, dataOff+len(data)-areaOff)
	copy(payload[paramOff-areaOff:], params)
	copy(payload[dataOff-areaOff:], data)
	return c.PutBlock(words, payload)
}
