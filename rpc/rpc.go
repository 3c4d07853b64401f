package rpc

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/oiweiwei/go-msrpc/msrpc/dtyp"
	"github.com/oiweiwei/go-msrpc/msrpc/lsat/lsarpc/v0"
)

// lsarpc operation numbers.
const (
	LsaClose       = 0x0000
	LsaLookupNames = 0x000e
	LsaOpenPolicy2 = 0x002c
	LsaGetUserName = 0x002d
)

// srvsvc operation numbers.
const (
	SrvNetShareEnum    = 15
	SrvNetShareGetInfo = 16
)

// wkssvc operation numbers.
const WkstaGetInfo = 0

// Share type bits for ShareInfo1.
const (
	ShareTypeDisk   = 0x00000000
	ShareTypeIPC    = 0x00000003
	ShareTypeHidden = 0x80000000
)

// Win32 status values returned in the NDR payloads.
const (
	ErrorSuccess      = 0x00000000
	ErrorInvalidLevel = 0x0000007c
	NTStatusOK        = 0x00000000
)

// Host supplies the server-side data the pipe services expose.
type Host interface {
	ServerName() string
	Domain() string
	Shares() []ShareInfo1
}

// Identity is the authenticated principal behind the pipe, used by the
// lsarpc lookups.
type Identity struct {
	User      string
	Domain    string
	UserRID   uint32
	DomainSID *dtyp.SID
}

// Pipe is one open named pipe endpoint. Writes feed the inbound PDU
// stream; complete PDUs are processed and their responses buffered for
// subsequent reads.
type Pipe struct {
	Name string

	host Host
	id   Identity

	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	policy *lsarpc.Handle
}

// NewPipe returns a pipe endpoint for the named service.
func NewPipe(name string, host Host, id Identity) *Pipe {
	return &Pipe{Name: name, host: host, id: id}
}

// syntax returns the abstract interface UUID the pipe name binds to.
func (p *Pipe) syntax() [16]byte {
	switch p.Name {
	case "srvsvc":
		return SRVSVC
	case "wkssvc":
		return WKSSVC
	case "winreg":
		return WINREG
	default:
		return LSARPC
	}
}

// Write feeds client bytes into the pipe and processes any complete PDU.
func (p *Pipe) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Write(buf)
	p.pump()
	return len(buf), nil
}

// Read drains up to len(buf) bytes of buffered response data.
func (p *Pipe) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out.Len() == 0 {
		return 0, io.EOF
	}
	return p.out.Read(buf)
}

// Available reports how many response bytes are buffered.
func (p *Pipe) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Len()
}

// Transact writes a request and returns up to maxOut bytes of the
// response in one round trip.
func (p *Pipe) Transact(in []byte, maxOut int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Write(in)
	p.pump()
	n := p.out.Len()
	if n > maxOut {
		n = maxOut
	}
	return p.out.Next(n)
}

// pump processes buffered PDUs while complete ones remain. Callers hold
// the mutex.
func (p *Pipe) pump() {
	for {
		buf := p.in.Bytes()
		if len(buf) < HeaderSize {
			return
		}
		fragLen := int(uint16(buf[8]) | uint16(buf[9])<<8)
		if fragLen < HeaderSize || len(buf) < fragLen {
			return
		}
		frag := make([]byte, fragLen)
		p.in.Read(frag)
		ip, err := ReadPacket(bytes.NewReader(frag))
		if err != nil {
			return
		}
		p.process(ip)
	}
}

func (p *Pipe) process(ip *InboundPacket) {
	switch ip.Header.PacketType {
	case PacketTypeBind:
		p.bind(ip)
	case PacketTypeRequest:
		p.request(ip)
	}
}

// bind accepts any presented context that carries the NDR32 transfer
// syntax and acknowledges the association.
func (p *Pipe) bind(ip *InboundPacket) {
	ack := &BindAck{
		MaxXmitFrag:  0xffff,
		MaxRecvFrag:  0xffff,
		AssocGroupID: 0x53f0,
		PortSpec:     "\\PIPE\\" + p.Name,
	}
	for _, ctx := range ip.Bind.ContextList {
		res := Result{DefResult: 2, ProviderReason: 2}
		for _, ts := range ctx.TransferSyntaxes {
			if ts.IfUUID == NDR32 {
				res = Result{TransferSyntax: SyntaxID{
					IfUUID:         NDR32,
					IfVersionMajor: 2,
				}}
				break
			}
		}
		ack.ResultList = append(ack.ResultList, res)
	}
	op := &OutboundPacket{
		Header: NewHeader(PacketTypeBindAck, ip.Header.CallID),
		Body:   ack,
	}
	op.Write(&p.out)
}

func (p *Pipe) request(ip *InboundPacket) {
	var body Encoder
	switch p.syntax() {
	case SRVSVC:
		body = p.srvsvc(ip.Request.OpNum, ip.Stub)
	case WKSSVC:
		body = p.wkssvc(ip.Request.OpNum, ip.Stub)
	case LSARPC:
		body = p.lsarpc(ip.Request.OpNum)
	}
	packetType := uint8(PacketTypeResponse)
	if body == nil {
		packetType = PacketTypeFault
		body = &Fault{ContextID: ip.Request.ContextID, Status: FaultOpRangeError}
	}
	op := &OutboundPacket{
		Header: NewHeader(packetType, ip.Header.CallID),
		Body:   body,
	}
	op.Write(&p.out)
}

func (p *Pipe) srvsvc(opNum uint16, stub []byte) Encoder {
	switch opNum {
	case SrvNetShareEnum:
		return &RawResponse{
			Payload: (&ShareEnumResponse{
				Shares: p.host.Shares(),
				Result: ErrorSuccess,
			}).MarshalNDR(),
		}
	case SrvNetShareGetInfo:
		req, ok := DecodeShareGetInfo(stub)
		if !ok {
			return nil
		}
		rsp := &ShareGetInfoResponse{Result: ErrorSuccess}
		if req.Level != 1 {
			rsp.Result = ErrorInvalidLevel
		} else {
			found := false
			for _, si := range p.host.Shares() {
				if strings.EqualFold(si.Name, req.Share) {
					rsp.ShareInfo1 = si
					found = true
					break
				}
			}
			if !found {
				// NERR_NetNameNotFound
				rsp.Result = 2310
			}
		}
		return &RawResponse{Payload: rsp.MarshalNDR()}
	}
	return nil
}

func (p *Pipe) wkssvc(opNum uint16, stub []byte) Encoder {
	if opNum != WkstaGetInfo {
		return nil
	}
	return &RawResponse{
		Payload: (&WkstaGetInfoResponse{
			ServerName:   p.host.ServerName(),
			Domain:       p.host.Domain(),
			VersionMajor: 5,
			VersionMinor: 0,
			Result:       ErrorSuccess,
		}).MarshalNDR(),
	}
}

func (p *Pipe) lsarpc(opNum uint16) Encoder {
	switch opNum {
	case LsaGetUserName:
		return &ResponseBody{
			Payload: &lsarpc.GetUserNameResponse{
				UserName: &dtyp.UnicodeString{
					Length:        uint16(len(p.id.User) * 2),
					MaximumLength: uint16(len(p.id.User) * 2),
					Buffer:        p.id.User,
				},
				DomainName: &dtyp.UnicodeString{
					Length:        uint16(len(p.id.Domain) * 2),
					MaximumLength: uint16(len(p.id.Domain) * 2),
					Buffer:        p.id.Domain,
				},
				Return: int32(NTStatusOK),
			},
		}
	case LsaOpenPolicy2:
		id := uuid.New()
		p.policy = &lsarpc.Handle{UUID: &dtyp.GUID{
			Data1: uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3]),
			Data2: uint16(id[4])<<8 | uint16(id[5]),
			Data3: uint16(id[6])<<8 | uint16(id[7]),
			Data4: []byte(id[8:]),
		}}
		return &ResponseBody{
			Payload: &lsarpc.OpenPolicy2Response{
				Policy: p.policy,
				Return: int32(NTStatusOK),
			},
		}
	case LsaLookupNames:
		return &ResponseBody{
			Payload: &lsarpc.LookupNamesResponse{
				ReferencedDomains: &lsarpc.ReferencedDomainList{
					Entries:    1,
					MaxEntries: 32,
					Domains: []*lsarpc.TrustInformation{
						{
							Name: &dtyp.UnicodeString{
								Length:        uint16(len(p.id.Domain) * 2),
								MaximumLength: uint16(len(p.id.Domain)*2 + 2),
								Buffer:        p.id.Domain,
							},
							SID: p.id.DomainSID,
						},
					},
				},
				TranslatedSIDs: &lsarpc.TranslatedSIDs{
					Entries: 1,
					SIDs: []*lsarpc.TranslatedSID{
						{
							Use:         lsarpc.SIDNameUseTypeUser,
							RelativeID:  p.id.UserRID,
							DomainIndex: 0,
						},
					},
				},
				MappedCount: 1,
				Return:      int32(NTStatusOK),
			},
		}
	case LsaClose:
		p.policy = nil
		return &ResponseBody{
			Payload: &lsarpc.CloseResponse{Return: int32(NTStatusOK)},
		}
	}
	return nil
}
