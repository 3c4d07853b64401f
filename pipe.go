package main

import (
	"sort"
	"strings"
	"sync"

	"github.com/dmarenin/smb1d/internal/logger"
	"github.com/dmarenin/smb1d/ntsec"
	"github.com/dmarenin/smb1d/rpc"
	"github.com/dmarenin/smb1d/smb1"
	"github.com/oiweiwei/go-msrpc/msrpc/dtyp"
)

// pipeTable tracks the open named-pipe endpoints of one connection. Pipe
// FIDs live in their own namespace; the disk FID table never sees them.
type pipeTable struct {
	mu     sync.Mutex
	nextID uint16
	pipes  map[uint16]*rpc.Pipe
}

func newPipeTable() *pipeTable {
	return &pipeTable{nextID: 1, pipes: make(map[uint16]*rpc.Pipe)}
}

func (pt *pipeTable) add(p *rpc.Pipe) (uint16, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	for i := 0; i < 0xfffe; i++ {
		id := pt.nextID
		pt.nextID++
		if pt.nextID == 0xffff {
			pt.nextID = 1
		}
		if _, ok := pt.pipes[id]; !ok {
			pt.pipes[id] = p
			return id, true
		}
	}
	return 0, false
}

func (pt *pipeTable) get(id uint16) *rpc.Pipe {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.pipes[id]
}

func (pt *pipeTable) remove(id uint16) bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if _, ok := pt.pipes[id]; !ok {
		return false
	}
	delete(pt.pipes, id)
	return true
}

// pipeHost adapts the server to the data the pipe services publish.
type pipeHost struct {
	s *server
}

func (h pipeHost) ServerName() string { return h.s.serverName }

func (h pipeHost) Domain() string { return h.s.workgroup }

func (h pipeHost) Shares() []rpc.ShareInfo1 {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	shares := make([]rpc.ShareInfo1, 0, len(h.s.shareList))
	for _, sh := range h.s.shareList {
		t := uint32(rpc.ShareTypeDisk)
		if sh.shareType == shareTypePipe {
			t = rpc.ShareTypeIPC | rpc.ShareTypeHidden
		}
		shares = append(shares, rpc.ShareInfo1{
			Name:    sh.name,
			Type:    t,
			Comment: sh.remark,
		})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Name < shares[j].Name })
	return shares
}

// Well-known RIDs reported by the lsarpc lookups.
const (
	ridGuest = 501
	ridUser  = 1000
)

func pipeIdentity(s *server, ss *session) rpc.Identity {
	domain := ss.domain
	if domain == "" {
		domain = s.workgroup
	}
	rid := uint32(ridUser)
	if ss.isGuest {
		rid = ridGuest
	}
	machine := machineSID(s.serverGuid)
	return rpc.Identity{
		User:      ss.userName,
		Domain:    domain,
		UserRID:   rid,
		DomainSID: dtypSID(machine),
	}
}

// dtypSID converts a native SID into the go-msrpc representation the
// lsarpc payloads marshal.
func dtypSID(s *ntsec.SID) *dtyp.SID {
	auth := make([]byte, 6)
	for i := 0; i < 6; i++ {
		auth[5-i] = byte(s.Authority >> (8 * i))
	}
	return &dtyp.SID{
		Revision:          s.Revision,
		SubAuthorityCount: uint8(len(s.SubAuths)),
		IDAuthority:       &dtyp.SIDIDAuthority{Value: auth},
		SubAuthority:      s.SubAuths,
	}
}

// pipeServiceName normalizes a create path to a pipe service name.
func pipeServiceName(name string) (string, bool) {
	n := strings.ToLower(strings.Trim(strings.ReplaceAll(name, "/", "\\"), "\\"))
	n = strings.TrimPrefix(n, "pipe\\")
	switch n {
	case "srvsvc", "wkssvc", "lsarpc", "winreg":
		return n, true
	}
	return "", false
}

// Message-mode pipe, readable, 255 instances. Reported in the create
// response device state word.
const pipeDeviceState = 0x05ff

func openPipe(c *connection, ss *session, tc *treeConnect, name string, rsp *smb1.Composer) uint32 {
	svc, ok := pipeServiceName(name)
	if !ok {
		return smb1.StatusObjectNameNotFound
	}
	p := rpc.NewPipe(svc, pipeHost{s: c.server}, pipeIdentity(c.server, ss))
	id, ok := c.pipes.add(p)
	if !ok {
		return smb1.StatusInsufficientResources
	}
	logger.Debug("pipe open", "client", c.clientName, "pipe", svc, "fid", id)

	nrsp := smb1.NTCreateResponse{
		FID:          id,
		CreateAction: smb1.FileOpened,
		FileType:     smb1.FileTypeMessageModePipe,
		DeviceState:  pipeDeviceState,
	}
	nrsp.Encode(rsp)
	return smb1.StatusOK
}

func closePipe(c *connection, ss *session, tc *treeConnect, id uint16, rsp *smb1.Composer) uint32 {
	if !c.pipes.remove(id) {
		return smb1.StatusInvalidHandle
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func readPipe(c *connection, ss *session, tc *treeConnect, rr smb1.ReadRequest, rsp *smb1.Composer) uint32 {
	p := c.pipes.get(rr.FID)
	if p == nil {
		return smb1.StatusInvalidHandle
	}
	buf := make([]byte, rr.MaxCount)
	n, _ := p.Read(buf)
	smb1.EncodeReadAndX(rsp, buf[:n])
	if p.Available() > 0 {
		return smb1.StatusBufferOverflow
	}
	return smb1.StatusOK
}

func writePipe(c *connection, ss *session, tc *treeConnect, wr smb1.WriteRequest, rsp *smb1.Composer) uint32 {
	p := c.pipes.get(wr.FID)
	if p == nil {
		return smb1.StatusInvalidHandle
	}
	n, err := p.Write(wr.Data)
	if err != nil {
		return smb1.StatusPipeDisconnected
	}
	smb1.EncodeWriteAndX(rsp, n)
	return smb1.StatusOK
}

// handleTransaction serves SMB_COM_TRANSACTION, which only carries
// named-pipe traffic here.
func handleTransaction(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.treeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	if tc.share.shareType != shareTypePipe {
		return smb1.StatusNotSupported
	}
	tr, err := smb1.ParseTrans(req, true)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	sub, err := tr.SubCommand()
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	switch sub {
	case smb1.TRANS_TRANSACT_NMPIPE:
		if len(tr.Setup) < 2 {
			return smb1.StatusInvalidSMB
		}
		p := c.pipes.get(tr.Setup[1])
		if p == nil {
			return smb1.StatusInvalidHandle
		}
		data := p.Transact(tr.Data, int(tr.MaxDataCount))
		smb1.EncodeTrans(rsp, nil, nil, data)
		if p.Available() > 0 {
			return smb1.StatusBufferOverflow
		}
		return smb1.StatusOK

	case smb1.TRANS_READ_NMPIPE:
		if len(tr.Setup) < 2 {
			return smb1.StatusInvalidSMB
		}
		p := c.pipes.get(tr.Setup[1])
		if p == nil {
			return smb1.StatusInvalidHandle
		}
		buf := make([]byte, tr.MaxDataCount)
		n, _ := p.Read(buf)
		smb1.EncodeTrans(rsp, nil, nil, buf[:n])
		if p.Available() > 0 {
			return smb1.StatusBufferOverflow
		}
		return smb1.StatusOK

	case smb1.TRANS_WRITE_NMPIPE:
		if len(tr.Setup) < 2 {
			return smb1.StatusInvalidSMB
		}
		p := c.pipes.get(tr.Setup[1])
		if p == nil {
			return smb1.StatusInvalidHandle
		}
		n, err := p.Write(tr.Data)
		if err != nil {
			return smb1.StatusPipeDisconnected
		}
		params := []byte{byte(n), byte(n >> 8)}
		smb1.EncodeTrans(rsp, nil, params, nil)
		return smb1.StatusOK

	case smb1.TRANS_SET_NMPIPE_STATE:
		// Read mode and blocking flags are accepted and ignored; the
		// endpoint always behaves as a blocking message pipe.
		smb1.EncodeTrans(rsp, nil, nil, nil)
		return smb1.StatusOK
	}
	return smb1.StatusNotImplemented
}
