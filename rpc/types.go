package rpc

import (
	"encoding/binary"
	"io"

	"github.com/oiweiwei/go-msrpc/ndr"

	"github.com/dmarenin/smb1d/utils"
)

// SyntaxID is an interface or transfer syntax identifier.
type SyntaxID struct {
	IfUUID         [16]byte
	IfVersionMajor uint16
	IfVersionMinor uint16
}

// Encode writes the syntax identifier.
func (sid *SyntaxID) Encode(w io.Writer) {
	buf := make([]byte, 20)
	copy(buf, sid.IfUUID[:])
	binary.LittleEndian.PutUint16(buf[16:18], sid.IfVersionMajor)
	binary.LittleEndian.PutUint16(buf[18:20], sid.IfVersionMinor)
	w.Write(buf)
}

// Decode reads the syntax identifier.
func (sid *SyntaxID) Decode(r io.Reader) error {
	buf := make([]byte, 20)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	copy(sid.IfUUID[:], buf[:16])
	sid.IfVersionMajor = binary.LittleEndian.Uint16(buf[16:18])
	sid.IfVersionMinor = binary.LittleEndian.Uint16(buf[18:20])
	return nil
}

// Context is one presentation context of a bind.
type Context struct {
	ContextID        uint16
	AbstractSyntax   SyntaxID
	TransferSyntaxes []SyntaxID
}

// Decode reads the presentation context.
func (c *Context) Decode(r io.Reader) error {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	c.ContextID = binary.LittleEndian.Uint16(buf[:2])
	c.TransferSyntaxes = make([]SyntaxID, buf[2])
	if err := c.AbstractSyntax.Decode(r); err != nil {
		return err
	}
	for i := range c.TransferSyntaxes {
		if err := c.TransferSyntaxes[i].Decode(r); err != nil {
			return err
		}
	}
	return nil
}

// Bind is a decoded bind PDU body.
type Bind struct {
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
	ContextList  []Context
}

// Decode reads the bind body.
func (b *Bind) Decode(r io.Reader) error {
	buf := make([]byte, 12)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	b.MaxXmitFrag = binary.LittleEndian.Uint16(buf[:2])
	b.MaxRecvFrag = binary.LittleEndian.Uint16(buf[2:4])
	b.AssocGroupID = binary.LittleEndian.Uint32(buf[4:8])
	b.ContextList = make([]Context, buf[8])
	for i := range b.ContextList {
		if err := b.ContextList[i].Decode(r); err != nil {
			return err
		}
	}
	return nil
}

// Result is one per-context acceptance in a bind_ack.
type Result struct {
	DefResult      uint16
	ProviderReason uint16
	TransferSyntax SyntaxID
}

// Encode writes the bind result.
func (res *Result) Encode(w io.Writer) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint16(buf, res.DefResult)
	buf = binary.LittleEndian.AppendUint16(buf, res.ProviderReason)
	w.Write(buf)
	res.TransferSyntax.Encode(w)
}

// BindAck is an encoded bind_ack PDU body.
type BindAck struct {
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
	PortSpec     string
	ResultList   []Result
}

// Encode writes the bind_ack body.
func (ba *BindAck) Encode(w io.Writer) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint16(buf, ba.MaxXmitFrag)
	buf = binary.LittleEndian.AppendUint16(buf, ba.MaxRecvFrag)
	buf = binary.LittleEndian.AppendUint32(buf, ba.AssocGroupID)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(ba.PortSpec)+1))
	buf = append(buf, []byte(ba.PortSpec)...)
	buf = append(buf, 0)
	buf = append(buf, make([]byte, utils.Roundup(len(buf), 4)-len(buf))...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ba.ResultList)))
	w.Write(buf)
	for i := range ba.ResultList {
		ba.ResultList[i].Encode(w)
	}
}

// Request is a decoded request PDU body (the stub follows separately).
type Request struct {
	AllocHint uint32
	ContextID uint16
	OpNum     uint16
}

// Decode reads the request body.
func (req *Request) Decode(r io.Reader) error {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	req.AllocHint = binary.LittleEndian.Uint32(buf[:4])
	req.ContextID = binary.LittleEndian.Uint16(buf[4:6])
	req.OpNum = binary.LittleEndian.Uint16(buf[6:8])
	return nil
}

// Response is an encoded response PDU body followed by its NDR payload.
type Response struct {
	AllocHint   uint32
	ContextID   uint16
	CancelCount uint16
}

func (resp *Response) encodeHeader(w io.Writer) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, resp.AllocHint)
	buf = binary.LittleEndian.AppendUint16(buf, resp.ContextID)
	buf = binary.LittleEndian.AppendUint16(buf, resp.CancelCount)
	w.Write(buf)
}

// ResponseBody pairs the response header with an NDR-marshaled payload.
type ResponseBody struct {
	Header  Response
	Payload ndr.Marshaler
}

// Encode marshals the payload and writes the response body.
func (rb *ResponseBody) Encode(w io.Writer) {
	payload, err := ndr.Marshal(rb.Payload)
	if err != nil {
		return
	}
	rb.Header.AllocHint = uint32(len(payload))
	rb.Header.encodeHeader(w)
	w.Write(payload)
}

// RawResponse pairs the response header with a pre-marshaled stub.
type RawResponse struct {
	Header  Response
	Payload []byte
}

// Encode writes the response body.
func (rr *RawResponse) Encode(w io.Writer) {
	rr.Header.AllocHint = uint32(len(rr.Payload))
	rr.Header.encodeHeader(w)
	w.Write(rr.Payload)
}

// Fault is an encoded fault PDU body.
type Fault struct {
	ContextID uint16
	Status    uint32
}

// Encode writes the fault body.
func (f *Fault) Encode(w io.Writer) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[4:6], f.ContextID)
	binary.LittleEndian.PutUint32(buf[8:12], f.Status)
	w.Write(buf)
}

// ndrStr appends an NDR conformant varying string: max count, offset,
// actual count, UTF-16LE data with terminator, 4-byte alignment pad.
func ndrStr(buf []byte, s string) []byte {
	n := uint32(len(s) + 1)
	buf = binary.LittleEndian.AppendUint32(buf, n)
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, n)
	buf = append(buf, utils.EncodeStringToBytes(s)...)
	buf = append(buf, 0, 0)
	return append(buf, make([]byte, utils.Roundup(len(buf), 4)-len(buf))...)
}

// ndrConformantStr reads a conformant varying string at off and returns
// the string plus the 4-byte aligned offset past it.
func ndrConformantStr(buf []byte, off int) (string, int, bool) {
	if off+12 > len(buf) {
		return "", 0, false
	}
	actual := int(binary.LittleEndian.Uint32(buf[off+8 : off+12]))
	end := off + 12 + actual*2
	if actual == 0 || end > len(buf) {
		return "", 0, false
	}
	s := utils.DecodeToString(buf[off+12 : end-2])
	return s, utils.Roundup(end, 4), true
}

// ShareGetInfoRequest is the decoded NetrShareGetInfo stub.
type ShareGetInfoRequest struct {
	Server string
	Share  string
	Level  uint32
}

// DecodeShareGetInfo parses a NetrShareGetInfo request stub.
func DecodeShareGetInfo(buf []byte) (ShareGetInfoRequest, bool) {
	var req ShareGetInfoRequest
	off := 0
	if len(buf) < 4 {
		return req, false
	}
	// Referent pointer precedes the server name.
	if binary.LittleEndian.Uint32(buf[:4]) != 0 {
		off = 4
	}
	var ok bool
	req.Server, off, ok = ndrConformantStr(buf, off)
	if !ok {
		return req, false
	}
	req.Share, off, ok = ndrConformantStr(buf, off)
	if !ok {
		return req, false
	}
	if off+4 > len(buf) {
		return req, false
	}
	req.Level = binary.LittleEndian.Uint32(buf[off : off+4])
	return req, true
}

// ShareInfo1 is one SHARE_INFO_1 entry.
type ShareInfo1 struct {
	Name    string
	Type    uint32
	Comment string
}

// ShareGetInfoResponse is the NetrShareGetInfo level-1 response.
type ShareGetInfoResponse struct {
	ShareInfo1
	Result uint32
}

// MarshalNDR returns the hand-marshaled NDR32 stub.
func (resp *ShareGetInfoResponse) MarshalNDR() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 0x00020004)
	buf = binary.LittleEndian.AppendUint32(buf, 0x00020008)
	buf = binary.LittleEndian.AppendUint32(buf, resp.Type)
	buf = binary.LittleEndian.AppendUint32(buf, 0x0002000c)
	buf = ndrStr(buf, resp.Name)
	buf = ndrStr(buf, resp.Comment)
	return binary.LittleEndian.AppendUint32(buf, resp.Result)
}

// ShareEnumResponse is the NetrShareEnum level-1 response.
type ShareEnumResponse struct {
	Shares []ShareInfo1
	Result uint32
}

// MarshalNDR returns the hand-marshaled NDR32 stub.
func (resp *ShareEnumResponse) MarshalNDR() []byte {
	count := uint32(len(resp.Shares))
	ref := uint32(0x00020000)
	next := func() uint32 { ref += 4; return ref }

	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, next())
	buf = binary.LittleEndian.AppendUint32(buf, count)
	buf = binary.LittleEndian.AppendUint32(buf, next())
	buf = binary.LittleEndian.AppendUint32(buf, count)
	for _, sh := range resp.Shares {
		buf = binary.LittleEndian.AppendUint32(buf, next())
		buf = binary.LittleEndian.AppendUint32(buf, sh.Type)
		buf = binary.LittleEndian.AppendUint32(buf, next())
	}
	for _, sh := range resp.Shares {
		buf = ndrStr(buf, sh.Name)
		buf = ndrStr(buf, sh.Comment)
	}
	buf = binary.LittleEndian.AppendUint32(buf, count)
	// Resume handle: present, zero.
	buf = binary.LittleEndian.AppendUint32(buf, next())
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	return binary.LittleEndian.AppendUint32(buf, resp.Result)
}

// WkstaGetInfoResponse is the NetrWkstaGetInfo level-100 response.
type WkstaGetInfoResponse struct {
	ServerName   string
	Domain       string
	VersionMajor uint32
	VersionMinor uint32
	Result       uint32
}

// MarshalNDR returns the hand-marshaled NDR32 stub.
func (resp *WkstaGetInfoResponse) MarshalNDR() []byte {
	const platformNT = 500
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, 100)
	buf = binary.LittleEndian.AppendUint32(buf, 0x00020004)
	buf = binary.LittleEndian.AppendUint32(buf, platformNT)
	buf = binary.LittleEndian.AppendUint32(buf, 0x00020008)
	buf = binary.LittleEndian.AppendUint32(buf, 0x0002000c)
	buf = binary.LittleEndian.AppendUint32(buf, resp.VersionMajor)
	buf = binary.LittleEndian.AppendUint32(buf, resp.VersionMinor)
	buf = ndrStr(buf, resp.ServerName)
	buf = ndrStr(buf, resp.Domain)
	return binary.LittleEndian.AppendUint32(buf, resp.Result)
}
