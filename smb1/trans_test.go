package smb1

import (
	"encoding/binary"
	"testing"

	"github.com/dmarenin/smb1d/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTrans assembles a TRANSACTION or TRANSACTION2 request message with
// the byte area laid out as name, params, data at 4-aligned offsets.
func buildTrans(name string, setup []uint16, params, data []byte) []byte {
	wordLen := 28 + len(setup)*2
	words := make([]byte, wordLen)

	areaOff := HeaderSize + 1 + wordLen + 2
	nameLen := 0
	if name != "" {
		nameLen = len(name) + 1
	}
	paramOff := utils.Roundup(areaOff+nameLen, 4)
	dataOff := utils.Roundup(paramOff+len(params), 4)

	binary.LittleEndian.PutUint16(words[0:2], uint16(len(params)))
	binary.LittleEndian.PutUint16(words[2:4], uint16(len(data)))
	binary.LittleEndian.PutUint16(words[4:6], 16)    // MaxParameterCount
	binary.LittleEndian.PutUint16(words[6:8], 4096)  // MaxDataCount
	words[8] = 1                                     // MaxSetupCount
	binary.LittleEndian.PutUint32(words[12:16], 500) // Timeout
	binary.LittleEndian.PutUint16(words[18:20], uint16(len(params)))
	binary.LittleEndian.PutUint16(words[20:22], uint16(paramOff))
	binary.LittleEndian.PutUint16(words[22:24], uint16(len(data)))
	binary.LittleEndian.PutUint16(words[24:26], uint16(dataOff))
	words[26] = uint8(len(setup))
	for i, s := range setup {
		binary.LittleEndian.PutUint16(words[28+i*2:30+i*2], s)
	}

	payload := make([]byte, dataOff+len(data)-areaOff)
	if name != "" {
		copy(payload, name)
	}
	copy(payload[paramOff-areaOff:], params)
	copy(payload[dataOff-areaOff:], data)

	msg := make([]byte, HeaderSize)
	NewHeader(msg)
	msg = append(msg, byte(wordLen/2))
	msg = append(msg, words...)
	var bc [2]byte
	binary.LittleEndian.PutUint16(bc[:], uint16(len(payload)))
	msg = append(msg, bc[:]...)
	return append(msg, payload...)
}

func TestParseTrans2(t *testing.T) {
	setup := []uint16{TRANS2_FIND_FIRST2}
	params := []byte{1, 2, 3, 4, 5}
	data := []byte{0xaa, 0xbb}
	req := NewRequest(buildTrans("", setup, params, data))

	tr, err := ParseTrans(req, false)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), tr.TotalParamCount)
	assert.Equal(t, uint16(2), tr.TotalDataCount)
	assert.Equal(t, uint16(16), tr.MaxParamCount)
	assert.Equal(t, uint16(4096), tr.MaxDataCount)
	assert.Equal(t, uint8(1), tr.MaxSetupCount)
	assert.Equal(t, uint32(500), tr.Timeout)
	assert.Equal(t, setup, tr.Setup)
	assert.Equal(t, params, tr.Params)
	assert.Equal(t, data, tr.Data)

	sub, err := tr.SubCommand()
	require.NoError(t, err)
	assert.Equal(t, uint16(TRANS2_FIND_FIRST2), sub)
}

func TestParseTransWithName(t *testing.T) {
	setup := []uint16{TRANS_TRANSACT_NMPIPE, 0x4001}
	req := NewRequest(buildTrans("\\PIPE\\", setup, []byte{9, 9}, nil))

	tr, err := ParseTrans(req, true)
	require.NoError(t, err)
	assert.Equal(t, "\\PIPE\\", tr.Name)
	assert.Equal(t, setup, tr.Setup)
	assert.Equal(t, []byte{9, 9}, tr.Params)
	assert.Nil(t, tr.Data)
}

func TestParseTransEmptyAreas(t *testing.T) {
	req := NewRequest(buildTrans("", nil, nil, nil))
	tr, err := ParseTrans(req, false)
	require.NoError(t, err)
	assert.Nil(t, tr.Params)
	assert.Nil(t, tr.Data)
	_, err = tr.SubCommand()
	assert.ErrorIs(t, err, ErrWrongFormat)
}

func TestParseTransShortWords(t *testing.T) {
	msg := make([]byte, HeaderSize)
	NewHeader(msg)
	msg = append(msg, 5) // word count too small for the envelope
	msg = append(msg, make([]byte, 12)...)
	_, err := ParseTrans(NewRequest(msg), false)
	assert.ErrorIs(t, err, ErrWrongFormat)
}

func TestParseTransBadOffsets(t *testing.T) {
	msg := buildTrans("", []uint16{1}, []byte{1, 2, 3}, nil)

	// Point the parameter area past the end of the message.
	bad := make([]byte, len(msg))
	copy(bad, msg)
	binary.LittleEndian.PutUint16(bad[HeaderSize+1+20:], uint16(len(bad)))
	_, err := ParseTrans(NewRequest(bad), false)
	assert.ErrorIs(t, err, ErrWrongLength)

	// Point it into the header.
	copy(bad, msg)
	binary.LittleEndian.PutUint16(bad[HeaderSize+1+20:], 4)
	_, err = ParseTrans(NewRequest(bad), false)
	assert.ErrorIs(t, err, ErrWrongLength)
}

// buildNTTrans assembles an NT_TRANSACT request message.
func buildNTTrans(function uint16, setup []uint16, params, data []byte) []byte {
	wordLen := 38 + len(setup)*2
	words := make([]byte, wordLen)

	areaOff := HeaderSize + 1 + wordLen + 2
	paramOff := utils.Roundup(areaOff, 4)
	dataOff := utils.Roundup(paramOff+len(params), 4)

	words[0] = 0 // MaxSetupCount
	binary.LittleEndian.PutUint32(words[3:7], uint32(len(params)))
	binary.LittleEndian.PutUint32(words[7:11], uint32(len(data)))
	binary.LittleEndian.PutUint32(words[11:15], 256)    // MaxParameterCount
	binary.LittleEndian.PutUint32(words[15:19], 0x8000) // MaxDataCount
	binary.LittleEndian.PutUint32(words[19:23], uint32(len(params)))
	binary.LittleEndian.PutUint32(words[23:27], uint32(paramOff))
	binary.LittleEndian.PutUint32(words[27:31], uint32(len(data)))
	binary.LittleEndian.PutUint32(words[31:35], uint32(dataOff))
	words[35] = uint8(len(setup))
	binary.LittleEndian.PutUint16(words[36:38], function)
	for i, s := range setup {
		binary.LittleEndian.PutUint16(words[38+i*2:40+i*2], s)
	}

	payload := make([]byte, dataOff+len(data)-areaOff)
	copy(payload[paramOff-areaOff:], params)
	copy(payload[dataOff-areaOff:], data)

	msg := make([]byte, HeaderSize)
	NewHeader(msg)
	msg = append(msg, byte(wordLen/2))
	msg = append(msg, words...)
	var bc [2]byte
	binary.LittleEndian.PutUint16(bc[:], uint16(len(payload)))
	msg = append(msg, bc[:]...)
	return append(msg, payload...)
}

func TestParseNTTrans(t *testing.T) {
	params := []byte{0x10, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00}
	req := NewRequest(buildNTTrans(NT_TRANSACT_QUERY_SECURITY_DESC, nil, params, nil))

	tr, err := ParseNTTrans(req)
	require.NoError(t, err)
	assert.Equal(t, uint16(NT_TRANSACT_QUERY_SECURITY_DESC), tr.Function)
	assert.Equal(t, uint32(256), tr.MaxParamCount)
	assert.Equal(t, uint32(0x8000), tr.MaxDataCount)
	assert.Equal(t, params, tr.Params)
	assert.Empty(t, tr.Setup)
}

func TestParseNTTransBadOffsets(t *testing.T) {
	msg := buildNTTrans(NT_TRANSACT_SET_SECURITY_DESC, nil, nil, []byte{1, 2, 3})
	binary.LittleEndian.PutUint32(msg[HeaderSize+1+31:], uint32(len(msg)+1))
	_, err := ParseNTTrans(NewRequest(msg))
	assert.ErrorIs(t, err, ErrWrongLength)
}

func TestEncodeTransLayout(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	NewHeader(hdr)
	c := NewComposer(Header(hdr))

	setup := []uint16{TRANS_TRANSACT_NMPIPE}
	params := []byte{1, 2, 3}
	data := []byte{9, 8, 7, 6}
	EncodeTrans(c, setup, params, data)
	msg := c.Bytes()

	words, err := ParamWords(msg, HeaderSize)
	require.NoError(t, err)
	require.Len(t, words, 22)

	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(words[0:2]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(words[2:4]))

	paramOff := int(binary.LittleEndian.Uint16(words[8:10]))
	dataOff := int(binary.LittleEndian.Uint16(words[14:16]))
	assert.Zero(t, paramOff%4)
	assert.Zero(t, dataOff%4)
	assert.Equal(t, params, msg[paramOff:paramOff+len(params)])
	assert.Equal(t, data, msg[dataOff:dataOff+len(data)])
	assert.Equal(t, uint8(1), words[18])
	assert.Equal(t, uint16(TRANS_TRANSACT_NMPIPE), binary.LittleEndian.Uint16(words[20:22]))
}

func TestEncodeNTTransLayout(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	NewHeader(hdr)
	c := NewComposer(Header(hdr))

	params := []byte{0xde, 0xad, 0xbe, 0xef}
	data := make([]byte, 13)
	for i := range data {
		data[i] = byte(i)
	}
	EncodeNTTrans(c, nil, params, data)
	msg := c.Bytes()

	words, err := ParamWords(msg, HeaderSize)
	require.NoError(t, err)
	require.Len(t, words, 36)

	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(words[3:7]))
	assert.Equal(t, uint32(13), binary.LittleEndian.Uint32(words[7:11]))

	paramOff := int(binary.LittleEndian.Uint32(words[15:19]))
	dataOff := int(binary.LittleEndian.Uint32(words[27:31]))
	assert.Zero(t, paramOff%4)
	assert.Zero(t, dataOff%4)
	assert.Equal(t, params, msg[paramOff:paramOff+len(params)])
	assert.Equal(t, data, msg[dataOff:dataOff+len(data)])
}
