package rpc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHost struct{}

func (testHost) ServerName() string { return "FILESERVER" }
func (testHost) Domain() string     { return "WORKGROUP" }
func (testHost) Shares() []ShareInfo1 {
	return []ShareInfo1{
		{Name: "public", Type: ShareTypeDisk, Comment: "Public files"},
		{Name: "IPC$", Type: ShareTypeIPC | ShareTypeHidden},
	}
}

// bindPDU builds a bind request presenting NDR32 for the given abstract
// syntax.
func bindPDU(callID uint32, abstract [16]byte) []byte {
	var body []byte
	body = binary.LittleEndian.AppendUint16(body, 4280) // max xmit
	body = binary.LittleEndian.AppendUint16(body, 4280) // max recv
	body = binary.LittleEndian.AppendUint32(body, 0)    // assoc group
	body = append(body, 1, 0, 0, 0)                     // one context

	body = binary.LittleEndian.AppendUint16(body, 0) // context id
	body = append(body, 1, 0)                        // one transfer syntax
	ctx := SyntaxID{IfUUID: abstract, IfVersionMajor: 3}
	var sb bytes.Buffer
	ctx.Encode(&sb)
	(&SyntaxID{IfUUID: NDR32, IfVersionMajor: 2}).Encode(&sb)
	body = append(body, sb.Bytes()...)

	return framePDU(PacketTypeBind, callID, body)
}

func requestPDU(callID uint32, opNum uint16, stub []byte) []byte {
	var body []byte
	body = binary.LittleEndian.AppendUint32(body, uint32(len(stub)))
	body = binary.LittleEndian.AppendUint16(body, 0)
	body = binary.LittleEndian.AppendUint16(body, opNum)
	return framePDU(PacketTypeRequest, callID, append(body, stub...))
}

func framePDU(packetType uint8, callID uint32, body []byte) []byte {
	hdr := NewHeader(packetType, callID)
	hdr.FragLength = uint16(HeaderSize + len(body))
	var buf bytes.Buffer
	hdr.Encode(&buf)
	buf.Write(body)
	return buf.Bytes()
}

func TestPipeBindAck(t *testing.T) {
	p := NewPipe("srvsvc", testHost{}, Identity{})

	rsp := p.Transact(bindPDU(7, SRVSVC), 4096)
	require.GreaterOrEqual(t, len(rsp), HeaderSize)

	var hdr Header
	require.NoError(t, hdr.Decode(bytes.NewReader(rsp)))
	assert.Equal(t, uint8(PacketTypeBindAck), hdr.PacketType)
	assert.Equal(t, uint32(7), hdr.CallID)
	assert.Equal(t, uint16(len(rsp)), hdr.FragLength)
	assert.Contains(t, string(rsp), "\\PIPE\\srvsvc")

	// One accepted result carrying the NDR32 syntax at the tail.
	res := rsp[len(rsp)-24:]
	assert.Zero(t, binary.LittleEndian.Uint16(res[:2]))
	assert.Equal(t, NDR32[:], res[4:20])
}

func TestPipeBindRejectsUnknownSyntax(t *testing.T) {
	p := NewPipe("srvsvc", testHost{}, Identity{})

	var bogus [16]byte
	bogus[0] = 0xff
	pdu := bindPDU(1, SRVSVC)
	// Swap the transfer syntax for one the endpoint does not speak.
	copy(pdu[len(pdu)-20:], bogus[:])

	rsp := p.Transact(pdu, 4096)
	require.GreaterOrEqual(t, len(rsp), HeaderSize+24)
	res := rsp[len(rsp)-24:]
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(res[:2]))
}

func TestPipeShareEnum(t *testing.T) {
	p := NewPipe("srvsvc", testHost{}, Identity{})
	p.Write(bindPDU(1, SRVSVC))
	p.Read(make([]byte, 4096))

	rsp := p.Transact(requestPDU(2, SrvNetShareEnum, nil), 4096)
	require.Greater(t, len(rsp), HeaderSize+8)

	var hdr Header
	require.NoError(t, hdr.Decode(bytes.NewReader(rsp)))
	assert.Equal(t, uint8(PacketTypeResponse), hdr.PacketType)
	assert.Equal(t, uint32(2), hdr.CallID)

	payload := rsp[HeaderSize+8:]
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(payload[:4]))  // level
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(payload[12:])) // count
	assert.Equal(t, uint32(ErrorSuccess), binary.LittleEndian.Uint32(payload[len(payload)-4:]))
}

func TestPipeShareGetInfo(t *testing.T) {
	p := NewPipe("srvsvc", testHost{}, Identity{})
	p.Write(bindPDU(1, SRVSVC))
	p.Read(make([]byte, 4096))

	var stub []byte
	stub = binary.LittleEndian.AppendUint32(stub, 0x00020000)
	stub = ndrStr(stub, "\\\\FILESERVER")
	stub = ndrStr(stub, "public")
	stub = binary.LittleEndian.AppendUint32(stub, 1)

	rsp := p.Transact(requestPDU(3, SrvNetShareGetInfo, stub), 4096)
	require.Greater(t, len(rsp), HeaderSize+8)
	payload := rsp[HeaderSize+8:]
	assert.Equal(t, uint32(ErrorSuccess), binary.LittleEndian.Uint32(payload[len(payload)-4:]))
}

func TestPipeUnknownOpFaults(t *testing.T) {
	p := NewPipe("srvsvc", testHost{}, Identity{})
	p.Write(bindPDU(1, SRVSVC))
	p.Read(make([]byte, 4096))

	rsp := p.Transact(requestPDU(4, 99, nil), 4096)
	require.GreaterOrEqual(t, len(rsp), HeaderSize+16)

	var hdr Header
	require.NoError(t, hdr.Decode(bytes.NewReader(rsp)))
	assert.Equal(t, uint8(PacketTypeFault), hdr.PacketType)
	assert.Equal(t, uint32(FaultOpRangeError), binary.LittleEndian.Uint32(rsp[HeaderSize+8:]))
}

func TestPipeWkstaGetInfo(t *testing.T) {
	p := NewPipe("wkssvc", testHost{}, Identity{})
	p.Write(bindPDU(1, WKSSVC))
	p.Read(make([]byte, 4096))

	rsp := p.Transact(requestPDU(5, WkstaGetInfo, nil), 4096)
	require.Greater(t, len(rsp), HeaderSize+8)
	payload := rsp[HeaderSize+8:]
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(payload[:4]))
	assert.Equal(t, uint32(ErrorSuccess), binary.LittleEndian.Uint32(payload[len(payload)-4:]))
}

func TestPipePartialWrites(t *testing.T) {
	// A PDU delivered a byte at a time produces exactly one response once
	// the final byte lands.
	p := NewPipe("srvsvc", testHost{}, Identity{})
	pdu := bindPDU(9, SRVSVC)
	for _, b := range pdu {
		p.Write([]byte{b})
	}
	assert.NotZero(t, p.Available())

	buf := make([]byte, p.Available())
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Zero(t, p.Available())
}

func TestPipeTransactRespectsMaxOut(t *testing.T) {
	p := NewPipe("srvsvc", testHost{}, Identity{})
	rsp := p.Transact(bindPDU(1, SRVSVC), 10)
	assert.Len(t, rsp, 10)
	assert.NotZero(t, p.Available())
}

func TestDecodeShareGetInfo(t *testing.T) {
	var stub []byte
	stub = binary.LittleEndian.AppendUint32(stub, 0x00020000)
	stub = ndrStr(stub, "\\\\SRV")
	stub = ndrStr(stub, "finance")
	stub = binary.LittleEndian.AppendUint32(stub, 1)

	req, ok := DecodeShareGetInfo(stub)
	require.True(t, ok)
	assert.Equal(t, "\\\\SRV", req.Server)
	assert.Equal(t, "finance", req.Share)
	assert.Equal(t, uint32(1), req.Level)
}

func TestDecodeShareGetInfoTruncated(t *testing.T) {
	var stub []byte
	stub = binary.LittleEndian.AppendUint32(stub, 0x00020000)
	stub = ndrStr(stub, "\\\\SRV")
	for _, n := range []int{0, 3, 8, len(stub)} {
		_, ok := DecodeShareGetInfo(stub[:n])
		assert.False(t, ok, "length %d", n)
	}
}
