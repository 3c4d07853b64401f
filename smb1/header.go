package smb1

import (
	"encoding/binary"
	"errors"
)

const (
	// ProtocolID is the 4-byte marker every SMB1 message starts with.
	ProtocolID = 0x424d53ff
)

const (
	HeaderSize = 32

	// MinMessageSize is a header plus an empty parameter/data block.
	MinMessageSize = HeaderSize + 3
)

var (
	ErrWrongLength   = errors.New("wrong data length")
	ErrWrongFormat   = errors.New("wrong data format")
	ErrWrongProtocol = errors.New("unsupported protocol")
)

// Header extends the raw byte sequence with SMB1 functionality.
type Header []byte

// NewHeader stamps the SMB1 protocol marker onto a byte sequence.
func NewHeader(data []byte) Header {
	binary.LittleEndian.PutUint32(data[:4], ProtocolID)
	return Header(data)
}

// CopyFrom copies the identifying fields from a request header into a
// response header: command, flags, PID, TID, UID and MID. The RESPONSE
// flag is set and the status is cleared.
func (h Header) CopyFrom(src Header) {
	copy(h[:HeaderSize], src[:HeaderSize])
	h.SetStatus(StatusOK)
	h.SetFlags(src.Flags() | FlagsResponse)
	h.WipeSignature()
}

// IsSmb returns true if the SMB1 signature is detected in the header.
func (h Header) IsSmb() bool {
	return len(h) >= 4 && binary.LittleEndian.Uint32(h[:4]) == ProtocolID
}

// Validate returns an error if the header is malformed, nil otherwise.
func (h Header) Validate() error {
	if len(h) < 4 {
		return ErrWrongLength
	}
	if !h.IsSmb() {
		return ErrWrongProtocol
	}
	if len(h) < MinMessageSize {
		return ErrWrongLength
	}
	return nil
}

// Command returns the Command field of the header.
func (h Header) Command() uint8 {
	return h[4]
}

// SetCommand sets the Command field of the header.
func (h Header) SetCommand(command uint8) {
	h[4] = command
}

// Status returns the Status field of the header.
func (h Header) Status() uint32 {
	return binary.LittleEndian.Uint32(h[5:9])
}

// SetStatus sets the Status field of the header.
func (h Header) SetStatus(status uint32) {
	binary.LittleEndian.PutUint32(h[5:9], status)
}

// SetDosStatus sets the Status field as a DOS class/error pair for clients
// that did not negotiate Flags2.ERR_STATUS.
func (h Header) SetDosStatus(class uint8, code uint16) {
	h[5] = class
	h[6] = 0
	binary.LittleEndian.PutUint16(h[7:9], code)
}

// Flags returns the Flags field of the header.
func (h Header) Flags() uint8 {
	return h[9]
}

// SetFlags sets the Flags field of the header.
func (h Header) SetFlags(flags uint8) {
	h[9] = flags
}

// IsFlagSet returns true if the specified bit(s) is (are) set in the Flags
// field of the header.
func (h Header) IsFlagSet(flag uint8) bool {
	return h.Flags()&flag > 0
}

// Flags2 returns the Flags2 field of the header.
func (h Header) Flags2() uint16 {
	return binary.LittleEndian.Uint16(h[10:12])
}

// SetFlags2 sets the Flags2 field of the header.
func (h Header) SetFlags2(flags uint16) {
	binary.LittleEndian.PutUint16(h[10:12], flags)
}

// IsFlag2Set returns true if the specified bit(s) is (are) set in the Flags2
// field of the header.
func (h Header) IsFlag2Set(flag uint16) bool {
	return h.Flags2()&flag > 0
}

// IsUnicode reports whether string fields of the message are UTF-16LE.
func (h Header) IsUnicode() bool {
	return h.IsFlag2Set(Flags2Unicode)
}

// PidHigh returns the PIDHigh field of the header.
func (h Header) PidHigh() uint16 {
	return binary.LittleEndian.Uint16(h[12:14])
}

// Signature returns the SecuritySignature field of the header.
func (h Header) Signature() []byte {
	signature := make([]byte, 8)
	copy(signature, h[14:22])
	return signature
}

// SetSignature sets the SecuritySignature field of the header.
func (h Header) SetSignature(signature []byte) {
	copy(h[14:22], signature)
}

// WipeSignature clears the SecuritySignature field of the header.
func (h Header) WipeSignature() {
	var zero [8]byte
	h.SetSignature(zero[:])
}

// Tid returns the TID field of the header.
func (h Header) Tid() uint16 {
	return binary.LittleEndian.Uint16(h[24:26])
}

// SetTid sets the TID field of the header.
func (h Header) SetTid(tid uint16) {
	binary.LittleEndian.PutUint16(h[24:26], tid)
}

// PidLow returns the PIDLow field of the header.
func (h Header) PidLow() uint16 {
	return binary.LittleEndian.Uint16(h[26:28])
}

// Uid returns the UID field of the header.
func (h Header) Uid() uint16 {
	return binary.LittleEndian.Uint16(h[28:30])
}

// SetUid sets the UID field of the header.
func (h Header) SetUid(uid uint16) {
	binary.LittleEndian.PutUint16(h[28:30], uid)
}

// Mid returns the MID field of the header.
func (h Header) Mid() uint16 {
	return binary.LittleEndian.Uint16(h[30:32])
}

// WordCount returns the WordCount field of the parameter block starting at
// the given offset. The first block of a message starts at HeaderSize.
func WordCount(buf []byte, off int) (int, error) {
	if off < 0 || off >= len(buf) {
		return 0, ErrWrongLength
	}
	return int(buf[off]), nil
}

// ParamWords returns the parameter words of the block starting at off.
func ParamWords(buf []byte, off int) ([]byte, error) {
	wc, err := WordCount(buf, off)
	if err != nil {
		return nil, err
	}
	if off+1+wc*2 > len(buf) {
		return nil, ErrWrongLength
	}
	return buf[off+1 : off+1+wc*2], nil
}

// ByteCount returns the ByteCount field of the block starting at off.
func ByteCount(buf []byte, off int) (int, error) {
	wc, err := WordCount(buf, off)
	if err != nil {
		return 0, err
	}
	p := off + 1 + wc*2
	if p+2 > len(buf) {
		return 0, ErrWrongLength
	}
	return int(binary.LittleEndian.Uint16(buf[p : p+2])), nil
}

// DataBytes returns the data bytes of the block starting at off.
func DataBytes(buf []byte, off int) ([]byte, error) {
	wc, err := WordCount(buf, off)
	if err != nil {
		return nil, err
	}
	bc, err := ByteCount(buf, off)
	if err != nil {
		return nil, err
	}
	p := off + 1 + wc*2 + 2
	if p+bc > len(buf) {
		return nil, ErrWrongLength
	}
	return buf[p : p+bc], nil
}

// BlockEnd returns the offset just past the block starting at off.
func BlockEnd(buf []byte, off int) (int, error) {
	wc, err := WordCount(buf, off)
	if err != nil {
		return 0, err
	}
	bc, err := ByteCount(buf, off)
	if err != nil {
		return 0, err
	}
	return off + 1 + wc*2 + 2 + bc, nil
}
