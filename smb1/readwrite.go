package smb1

import (
	"encoding/binary"
	"time"
)

// WRITE_ANDX write mode bits.
const (
	WriteThroughMode = 0x0001
	WriteMsgStart    = 0x0008
)

// ReadRequest is the parsed READ_ANDX request.
type ReadRequest struct {
	FID      uint16
	Offset   uint64
	MaxCount uint32
	MinCount uint16
}

// ParseReadAndX decodes a READ_ANDX request block. The 12-word form carries
// the upper half of the offset.
func ParseReadAndX(req Request) (ReadRequest, error) {
	words, err := req.Words()
	if err != nil {
		return ReadRequest{}, err
	}
	if len(words) < 20 {
		return ReadRequest{}, ErrWrongFormat
	}
	var rr ReadRequest
	rr.FID = binary.LittleEndian.Uint16(words[4:6])
	rr.Offset = uint64(binary.LittleEndian.Uint32(words[6:10]))
	rr.MaxCount = uint32(binary.LittleEndian.Uint16(words[10:12]))
	rr.MinCount = binary.LittleEndian.Uint16(words[12:14])
	maxHigh := binary.LittleEndian.Uint32(words[14:18])
	if maxHigh != 0 && maxHigh != 0xffffffff {
		rr.MaxCount |= maxHigh << 16
	}
	if len(words) >= 24 {
		rr.Offset |= uint64(binary.LittleEndian.Uint32(words[20:24])) << 32
	}
	return rr, nil
}

// EncodeReadAndX appends the READ_ANDX response carrying data.
func EncodeReadAndX(c *Composer, data []byte) int {
	words := make([]byte, 20)
	binary.LittleEndian.PutUint16(words[0:2], 0xffff) // Available, pipes only
	// DataOffset points past the header, word and byte counts of this block.
	blockOff := c.Len()
	dataOff := blockOff + 1 + 4 + len(words) + 2
	binary.LittleEndian.PutUint16(words[6:8], uint16(len(data)&0xffff))
	binary.LittleEndian.PutUint16(words[8:10], uint16(dataOff))
	binary.LittleEndian.PutUint16(words[10:12], uint16(len(data)>>16))
	return c.PutAndXBlock(SMB_COM_READ_ANDX, words, data)
}

// WriteRequest is the parsed WRITE_ANDX request.
type WriteRequest struct {
	FID       uint16
	Offset    uint64
	WriteMode uint16
	Data      []byte
}

// ParseWriteAndX decodes a WRITE_ANDX request block. The data area is
// located by the explicit DataOffset field, which may leave a pad gap
// after the byte count.
func ParseWriteAndX(req Request) (WriteRequest, error) {
	words, err := req.Words()
	if err != nil {
		return WriteRequest{}, err
	}
	if len(words) < 24 {
		return WriteRequest{}, ErrWrongFormat
	}
	var wr WriteRequest
	wr.FID = binary.LittleEndian.Uint16(words[4:6])
	wr.Offset = uint64(binary.LittleEndian.Uint32(words[6:10]))
	wr.WriteMode = binary.LittleEndian.Uint16(words[14:16])
	dataLen := uint32(binary.LittleEndian.Uint16(words[20:22]))
	dataLen |= uint32(binary.LittleEndian.Uint16(words[18:20])) << 16
	dataOff := int(binary.LittleEndian.Uint16(words[22:24]))
	if len(words) >= 28 {
		wr.Offset |= uint64(binary.LittleEndian.Uint32(words[24:28])) << 32
	}
	if dataOff < HeaderSize || dataOff+int(dataLen) > len(req.Msg) {
		return WriteRequest{}, ErrWrongLength
	}
	wr.Data = req.Msg[dataOff : dataOff+int(dataLen)]
	return wr, nil
}

// EncodeWriteAndX appends the WRITE_ANDX response reporting written bytes.
func EncodeWriteAndX(c *Composer, count int) int {
	words := make([]byte, 8)
	binary.LittleEndian.PutUint16(words[0:2], uint16(count&0xffff))
	binary.LittleEndian.PutUint16(words[2:4], 0xffff) // Remaining, pipes only
	binary.LittleEndian.PutUint16(words[4:6], uint16(count>>16))
	return c.PutAndXBlock(SMB_COM_WRITE_ANDX, words, nil)
}

// LegacyReadRequest is the parsed core READ request.
type LegacyReadRequest struct {
	FID    uint16
	Count  uint16
	Offset uint32
}

// ParseRead decodes a core READ request block.
func ParseRead(req Request) (LegacyReadRequest, error) {
	words, err := req.Words()
	if err != nil {
		return LegacyReadRequest{}, err
	}
	if len(words) < 10 {
		return LegacyReadRequest{}, ErrWrongFormat
	}
	return LegacyReadRequest{
		FID:    binary.LittleEndian.Uint16(words[0:2]),
		Count:  binary.LittleEndian.Uint16(words[2:4]),
		Offset: binary.LittleEndian.Uint32(words[4:8]),
	}, nil
}

// EncodeRead appends the core READ response with its data block payload.
func EncodeRead(c *Composer, data []byte) int {
	words := make([]byte, 10)
	binary.LittleEndian.PutUint16(words[0:2], uint16(len(data)))
	payload := make([]byte, 3+len(data))
	payload[0] = BufferFormatDataBlock
	binary.LittleEndian.PutUint16(payload[1:3], uint16(len(data)))
	copy(payload[3:], data)
	return c.PutBlock(words, payload)
}

// LegacyWriteRequest is the parsed core WRITE or WRITE_AND_CLOSE request.
type LegacyWriteRequest struct {
	FID           uint16
	Offset        uint32
	LastWriteTime time.Time
	Data          []byte
}

// ParseWrite decodes a core WRITE request block. The data is wrapped in a
// BufferFormatDataBlock envelope.
func ParseWrite(req Request) (LegacyWriteRequest, error) {
	words, err := req.Words()
	if err != nil {
		return LegacyWriteRequest{}, err
	}
	if len(words) < 10 {
		return LegacyWriteRequest{}, ErrWrongFormat
	}
	var wr LegacyWriteRequest
	wr.FID = binary.LittleEndian.Uint16(words[0:2])
	count := int(binary.LittleEndian.Uint16(words[2:4]))
	wr.Offset = binary.LittleEndian.Uint32(words[4:8])

	data, err := req.Bytes()
	if err != nil {
		return LegacyWriteRequest{}, err
	}
	if len(data) < 3 || data[0] != BufferFormatDataBlock {
		return LegacyWriteRequest{}, ErrWrongFormat
	}
	dlen := int(binary.LittleEndian.Uint16(data[1:3]))
	if dlen > len(data)-3 || count > dlen {
		return LegacyWriteRequest{}, ErrWrongLength
	}
	wr.Data = data[3 : 3+count]
	return wr, nil
}

// ParseWriteAndClose decodes a WRITE_AND_CLOSE request block.
func ParseWriteAndClose(req Request) (LegacyWriteRequest, error) {
	words, err := req.Words()
	if err != nil {
		return LegacyWriteRequest{}, err
	}
	if len(words) < 12 {
		return LegacyWriteRequest{}, ErrWrongFormat
	}
	var wr LegacyWriteRequest
	wr.FID = binary.LittleEndian.Uint16(words[0:2])
	count := int(binary.LittleEndian.Uint16(words[2:4]))
	wr.Offset = binary.LittleEndian.Uint32(words[4:8])
	if mtime := binary.LittleEndian.Uint32(words[8:12]); mtime != 0 {
		wr.LastWriteTime = time.Unix(int64(mtime), 0)
	}

	data, err := req.Bytes()
	if err != nil {
		return LegacyWriteRequest{}, err
	}
	// One pad byte precedes the raw data.
	if len(data) < 1+count {
		return LegacyWriteRequest{}, ErrWrongLength
	}
	wr.Data = data[1 : 1+count]
	return wr, nil
}

// EncodeWriteCount appends the single-word response shared by the core
// WRITE and WRITE_AND_CLOSE commands.
func EncodeWriteCount(c *Composer, count int) int {
	words := make([]byte, 2)
	binary.LittleEndian.PutUint16(words, uint16(count))
	return c.PutBlock(words, nil)
}
