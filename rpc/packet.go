// Package rpc is the DCE/RPC endpoint behind the IPC$ named pipes. It
// speaks just enough of the protocol for share enumeration, workstation
// info and LSA name lookup: connection-oriented bind plus request and
// response PDUs, NDR32 transfer syntax only.
package rpc

import (
	"bytes"
	"encoding/binary"
	"io"
)

const HeaderSize = 16

// NDR32 is the only transfer syntax the endpoint accepts.
var NDR32 = [16]byte{
	0x04, 0x5d, 0x88, 0x8a, 0xeb, 0x1c, 0xc9, 0x11,
	0x9f, 0xe8, 0x08, 0x00, 0x2b, 0x10, 0x48, 0x60,
}

// Abstract interface UUIDs of the exposed pipe services, in wire order.
var (
	SRVSVC = [16]byte{
		0xc8, 0x4f, 0x32, 0x4b, 0x70, 0x16, 0xd3, 0x01,
		0x12, 0x78, 0x5a, 0x47, 0xbf, 0x6e, 0xe1, 0x88,
	}
	WKSSVC = [16]byte{
		0x98, 0xd0, 0xff, 0x6b, 0x12, 0xa1, 0x10, 0x36,
		0x98, 0x33, 0x46, 0xc3, 0xf8, 0x7e, 0x34, 0x5a,
	}
	LSARPC = [16]byte{
		0x78, 0x57, 0x34, 0x12, 0x34, 0x12, 0xcd, 0xab,
		0xef, 0x00, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab,
	}
	WINREG = [16]byte{
		0x01, 0xd0, 0x8c, 0x33, 0x44, 0x22, 0xf1, 0x31,
		0xaa, 0xaa, 0x90, 0x00, 0x38, 0x00, 0x10, 0x03,
	}
)

// PDU types.
const (
	PacketTypeRequest  = 0x00
	PacketTypeResponse = 0x02
	PacketTypeFault    = 0x03
	PacketTypeBind     = 0x0b
	PacketTypeBindAck  = 0x0c
	PacketTypeBindNak  = 0x0d
)

// PDU flags.
const (
	FlagFirstFrag = 0x01
	FlagLastFrag  = 0x02
)

// Fault status for an out-of-range or unimplemented operation.
const FaultOpRangeError = 0x1c010002

// Header is the fixed 16-byte PDU header.
type Header struct {
	VersionMajor       uint8
	VersionMinor       uint8
	PacketType         uint8
	PacketFlags        uint8
	DataRepresentation uint32
	FragLength         uint16
	AuthLength         uint16
	CallID             uint32
}

// Encode writes the header in wire order.
func (h *Header) Encode(w io.Writer) {
	buf := make([]byte, HeaderSize)
	buf[0] = h.VersionMajor
	buf[1] = h.VersionMinor
	buf[2] = h.PacketType
	buf[3] = h.PacketFlags
	binary.LittleEndian.PutUint32(buf[4:8], h.DataRepresentation)
	binary.LittleEndian.PutUint16(buf[8:10], h.FragLength)
	binary.LittleEndian.PutUint16(buf[10:12], h.AuthLength)
	binary.LittleEndian.PutUint32(buf[12:], h.CallID)
	w.Write(buf)
}

// Decode reads the header from wire order.
func (h *Header) Decode(r io.Reader) error {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	h.VersionMajor = buf[0]
	h.VersionMinor = buf[1]
	h.PacketType = buf[2]
	h.PacketFlags = buf[3]
	h.DataRepresentation = binary.LittleEndian.Uint32(buf[4:8])
	h.FragLength = binary.LittleEndian.Uint16(buf[8:10])
	h.AuthLength = binary.LittleEndian.Uint16(buf[10:12])
	h.CallID = binary.LittleEndian.Uint32(buf[12:])
	return nil
}

// NewHeader returns a single-fragment v5.0 header with little-endian data
// representation.
func NewHeader(packetType uint8, callID uint32) *Header {
	return &Header{
		VersionMajor:       5,
		PacketType:         packetType,
		PacketFlags:        FlagFirstFrag | FlagLastFrag,
		DataRepresentation: 0x00000010,
		CallID:             callID,
	}
}

// InboundPacket is one decoded request PDU.
type InboundPacket struct {
	Header  Header
	Bind    *Bind
	Request *Request
	Stub    []byte
}

// ReadPacket decodes a single PDU from r.
func ReadPacket(r io.Reader) (*InboundPacket, error) {
	var ip InboundPacket
	if err := ip.Header.Decode(r); err != nil {
		return nil, err
	}
	switch ip.Header.PacketType {
	case PacketTypeBind:
		ip.Bind = &Bind{}
		if err := ip.Bind.Decode(r); err != nil {
			return nil, err
		}
	case PacketTypeRequest:
		ip.Request = &Request{}
		if err := ip.Request.Decode(r); err != nil {
			return nil, err
		}
		var stub bytes.Buffer
		if _, err := stub.ReadFrom(r); err == nil && stub.Len() > 0 {
			ip.Stub = stub.Bytes()
		}
	}
	return &ip, nil
}

// Encoder is one PDU body.
type Encoder interface {
	Encode(w io.Writer)
}

// OutboundPacket is one response PDU ready for framing.
type OutboundPacket struct {
	Header *Header
	Body   Encoder
}

// Write frames the body, stamps the fragment length and emits the PDU.
func (op *OutboundPacket) Write(w io.Writer) {
	var body bytes.Buffer
	op.Body.Encode(&body)
	op.Header.FragLength = uint16(body.Len()) + HeaderSize
	op.Header.Encode(w)
	w.Write(body.Bytes())
}
