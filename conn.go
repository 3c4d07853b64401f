package main

import (
	"crypto/md5"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmarenin/smb1d/internal/logger"
	"github.com/dmarenin/smb1d/smb1"
)

const (
	// defaultMaxBufferSize is announced in NEGOTIATE and used for a
	// client until its SESSION_SETUP overrides it.
	defaultMaxBufferSize = 65535

	// maxMpxCount bounds the requests a client may keep in flight.
	maxMpxCount = 50

	// staleConnectionTimeout is how long a connection may sit idle with
	// no requests in flight before the maintenance pass drops it.
	staleConnectionTimeout = 15 * time.Minute

	// maxRawSize is the legacy raw-mode buffer size reported in
	// NEGOTIATE; raw mode itself is never granted.
	maxRawSize = 65536
)

// connection is one TCP connection from a client. Requests are read and
// sequenced by serve, processed concurrently, and responses are funneled
// through a single writer goroutine.
type connection struct {
	conn       net.Conn
	server     *server
	clientName string

	sessionTable map[uint16]*session
	nextUID      uint16
	searches     *searchTable
	pipes        *pipeTable

	// Blocked requests indexed by MID so NT_CANCEL can find them.
	// Guarded by mu.
	pending map[uint16]*pendingRequest

	creationTime time.Time
	lastActive   time.Time

	// Negotiated state.
	negotiated    bool
	smb2          bool
	maxBufferSize uint32
	capabilities  uint32
	challenge     []byte

	// SMB1 signing. The sequence counter is claimed in arrival order by
	// serve; responses use the request number plus one.
	seqMu         sync.Mutex
	signingActive bool
	signingKey    []byte
	seq           uint32

	inFlight  atomic.Int64
	loginFail int

	writeChan chan []byte
	closeChan chan struct{}
	once      sync.Once
	mu        sync.Mutex
}

// smbHandler processes one command block and appends its response blocks.
type smbHandler func(c *connection, req smb1.Request, rsp *smb1.Composer) uint32

// statusDropResponse tells process the handler already sent (or chose to
// suppress) the response.
const statusDropResponse uint32 = 0xfffffffe

var smbHandlers = map[uint8]smbHandler{
	smb1.SMB_COM_NEGOTIATE:          handleNegotiate,
	smb1.SMB_COM_SESSION_SETUP_ANDX: handleSessionSetup,
	smb1.SMB_COM_LOGOFF_ANDX:        handleLogoff,
	smb1.SMB_COM_TREE_CONNECT_ANDX:  handleTreeConnect,
	smb1.SMB_COM_TREE_DISCONNECT:    handleTreeDisconnect,
	smb1.SMB_COM_ECHO:               handleEcho,
	smb1.SMB_COM_PROCESS_EXIT:       handleProcessExit,
	smb1.SMB_COM_NT_CREATE_ANDX:     handleNTCreate,
	smb1.SMB_COM_OPEN_ANDX:          handleOpenAndX,
	smb1.SMB_COM_OPEN:               handleOpenLegacy,
	smb1.SMB_COM_CREATE:             handleCreateLegacy,
	smb1.SMB_COM_CLOSE:              handleClose,
	smb1.SMB_COM_FLUSH:              handleFlush,
	smb1.SMB_COM_READ_ANDX:          handleReadAndX,
	smb1.SMB_COM_READ:               handleReadLegacy,
	smb1.SMB_COM_WRITE_ANDX:         handleWriteAndX,
	smb1.SMB_COM_WRITE:              handleWriteLegacy,
	smb1.SMB_COM_WRITE_AND_CLOSE:    handleWriteAndClose,
	smb1.SMB_COM_LOCKING_ANDX:       handleLocking,
	smb1.SMB_COM_CREATE_DIRECTORY:   handleCreateDirectory,
	smb1.SMB_COM_DELETE_DIRECTORY:   handleDeleteDirectory,
	smb1.SMB_COM_CHECK_DIRECTORY:    handleCheckDirectory,
	smb1.SMB_COM_DELETE:             handleDelete,
	smb1.SMB_COM_RENAME:             handleRename,
	smb1.SMB_COM_NT_RENAME:          handleNTRename,
	smb1.SMB_COM_QUERY_INFORMATION:  handleQueryInformation,
	smb1.SMB_COM_SET_INFORMATION:    handleSetInformation,
	smb1.SMB_COM_FIND_CLOSE2:        handleFindClose2,
	smb1.SMB_COM_TRANSACTION:        handleTransaction,
	smb1.SMB_COM_TRANSACTION2:       handleTransaction2,
	smb1.SMB_COM_NT_TRANSACT:        handleNTTransact,
}

// andxChained marks the commands whose parameter block starts with an
// AndX prefix and may carry a follow-up command.
var andxChained = map[uint8]bool{
	smb1.SMB_COM_SESSION_SETUP_ANDX: true,
	smb1.SMB_COM_LOGOFF_ANDX:        true,
	smb1.SMB_COM_TREE_CONNECT_ANDX:  true,
	smb1.SMB_COM_OPEN_ANDX:          true,
	smb1.SMB_COM_READ_ANDX:          true,
	smb1.SMB_COM_WRITE_ANDX:         true,
	smb1.SMB_COM_LOCKING_ANDX:       true,
	smb1.SMB_COM_NT_CREATE_ANDX:     true,
}

// sendResponses is the writer goroutine: it serializes all responses of
// the connection onto the socket.
func (c *connection) sendResponses() {
	for {
		select {
		case msg := <-c.writeChan:
			if err := writeMessage(c.conn, msg); err != nil {
				logger.Debug("write failed", "client", c.clientName, "err", err)
				c.server.closeConnection(c)
				return
			}
			c.server.countSent(len(msg) + 4)
		case <-c.closeChan:
			return
		}
	}
}

// send queues a response for the writer goroutine.
func (c *connection) send(msg []byte) {
	select {
	case c.writeChan <- msg:
	case <-c.closeChan:
	}
}

// pendingRequest is one in-flight request parked on a blocking wait. Its
// cancel channel closes when an NT_CANCEL names the request's MID.
type pendingRequest struct {
	mid    uint16
	cancel chan struct{}
	once   sync.Once
}

// trackRequest registers a request that is about to block. The caller
// must untrack it before responding.
func (c *connection) trackRequest(mid uint16) *pendingRequest {
	p := &pendingRequest{mid: mid, cancel: make(chan struct{})}
	c.mu.Lock()
	c.pending[mid] = p
	c.mu.Unlock()
	return p
}

func (c *connection) untrackRequest(p *pendingRequest) {
	c.mu.Lock()
	if c.pending[p.mid] == p {
		delete(c.pending, p.mid)
	}
	c.mu.Unlock()
}

// cancelRequest wakes the blocked request with the given MID, if any. The
// woken request sends no response.
func (c *connection) cancelRequest(mid uint16) bool {
	c.mu.Lock()
	p := c.pending[mid]
	c.mu.Unlock()
	if p == nil {
		return false
	}
	p.once.Do(func() { close(p.cancel) })
	return true
}

// isStale reports whether the connection has been idle past the timeout
// with nothing in flight.
func (c *connection) isStale() bool {
	c.mu.Lock()
	last := c.lastActive
	c.mu.Unlock()
	return c.inFlight.Load() == 0 && time.Since(last) > staleConnectionTimeout
}

// serve reads requests until the connection dies. Each message claims its
// signing sequence numbers in arrival order and is processed concurrently.
func (c *connection) serve() {
	defer c.server.closeConnection(c)
	for {
		msg, err := readMessage(c.conn)
		if err != nil {
			if err != io.EOF {
				logger.Debug("read failed", "client", c.clientName, "err", err)
			}
			return
		}
		c.server.countReceived(len(msg) + 4)
		c.mu.Lock()
		c.lastActive = time.Now()
		smb2 := c.smb2
		c.mu.Unlock()
		if smb2 {
			// The client renegotiated to SMB2; nothing here speaks it.
			return
		}
		if len(msg) < smb1.MinMessageSize {
			continue
		}
		seq, signed := c.claimSequence(msg[4])
		c.inFlight.Add(1)
		go func(msg []byte, seq uint32, signed bool) {
			defer c.inFlight.Add(-1)
			c.process(msg, seq, signed)
		}(msg, seq, signed)
	}
}

// claimSequence hands out signing sequence numbers in arrival order.
// NT_CANCEL gets no response, so it consumes a single number.
func (c *connection) claimSequence(cmd uint8) (uint32, bool) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	if !c.signingActive {
		return 0, false
	}
	seq := c.seq
	if cmd == smb1.SMB_COM_NT_CANCEL {
		c.seq++
	} else {
		c.seq += 2
	}
	return seq, true
}

// activateSigning arms signing with the session key. The session setup
// that armed it was request 0, its response is 1; the next request
// starts at 2.
func (c *connection) activateSigning(key []byte) {
	c.seqMu.Lock()
	c.signingKey = key
	c.signingActive = true
	c.seq = 2
	c.seqMu.Unlock()
}

// signature computes the SMB1 message signature: the first 8 bytes of
// MD5 over the session key and the message with the sequence number in
// the signature field.
func signature(key, msg []byte, seq uint32) []byte {
	var seqField [8]byte
	binary.LittleEndian.PutUint32(seqField[:4], seq)
	h := md5.New()
	h.Write(key)
	h.Write(msg[:14])
	h.Write(seqField[:])
	h.Write(msg[22:])
	return h.Sum(nil)[:8]
}

func (c *connection) verifySignature(msg []byte, seq uint32) bool {
	h := smb1.Header(msg)
	want := signature(c.signingKey, msg, seq)
	got := h.Signature()
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// process validates, dispatches and answers a single request message.
func (c *connection) process(msg []byte, seq uint32, signed bool) {
	req := smb1.NewRequest(msg)
	if err := req.Header().Validate(); err != nil {
		logger.Debug("malformed message", "client", c.clientName, "err", err)
		return
	}
	cmd := req.Header().Command()

	if signed && !c.verifySignature(msg, seq) {
		logger.Warn("bad signature", "client", c.clientName, "command", cmd)
		rsp := smb1.NewComposer(req.Header())
		rsp.PutEmptyBlock()
		rsp.SetStatus(smb1.StatusAccessDenied)
		c.finish(rsp, seq, signed)
		return
	}

	if cmd == smb1.SMB_COM_NT_CANCEL {
		// NT_CANCEL never gets a response of its own; the sequence
		// number was already claimed in arrival order.
		if !c.cancelRequest(req.Header().Mid()) {
			logger.Debug("cancel for idle mid", "client", c.clientName, "mid", req.Header().Mid())
		}
		return
	}

	rsp := smb1.NewComposer(req.Header())
	status := c.dispatch(cmd, req, rsp)
	if status == statusDropResponse {
		return
	}
	if rsp.Len() == smb1.HeaderSize {
		rsp.PutEmptyBlock()
	}
	rsp.SetStatus(status)
	c.finish(rsp, seq, signed)
}

// finish signs and queues a composed response.
func (c *connection) finish(rsp *smb1.Composer, reqSeq uint32, signed bool) {
	msg := rsp.Bytes()
	c.seqMu.Lock()
	if !signed && c.signingActive {
		// Signing was armed by this very request; its response is
		// number one.
		signed, reqSeq = true, 0
	}
	key := c.signingKey
	c.seqMu.Unlock()
	if signed {
		h := smb1.Header(msg)
		h.SetFlags2(h.Flags2() | smb1.Flags2SecuritySignature)
		h.SetSignature(signature(key, msg, reqSeq+1))
	}
	c.send(msg)
}

// dispatch runs the command and every AndX follow-up chained behind it.
// The chain stops at the first error; blocks already appended stay in
// the response.
func (c *connection) dispatch(cmd uint8, req smb1.Request, rsp *smb1.Composer) uint32 {
	for {
		fn, ok := smbHandlers[cmd]
		if !ok {
			logger.Warn("unsupported command", "client", c.clientName, "command", cmd)
			return smb1.StatusNotImplemented
		}
		if cmd != smb1.SMB_COM_NEGOTIATE && !c.isNegotiated() {
			return smb1.StatusInvalidSMB
		}
		status := fn(c, req, rsp)
		if status != smb1.StatusOK {
			return status
		}
		if !andxChained[cmd] {
			return smb1.StatusOK
		}
		next, chained, more, err := req.AndX()
		if err != nil {
			return smb1.StatusInvalidSMB
		}
		if !more {
			return smb1.StatusOK
		}
		cmd, req = next, chained
	}
}

func (c *connection) isNegotiated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiated
}

// sessionFor resolves the UID of a request header to a live session.
func (c *connection) sessionFor(req smb1.Request) (*session, uint32) {
	ss, err := c.findSession(req.Header().Uid())
	if err != nil || ss.needReconnect.Load() {
		return nil, smb1.StatusSMBBadUid
	}
	ss.mu.Lock()
	ss.idleTime = time.Now()
	ss.mu.Unlock()
	return ss, smb1.StatusOK
}

// treeFor resolves the UID and TID of a request header.
func (c *connection) treeFor(req smb1.Request) (*session, *treeConnect, uint32) {
	ss, status := c.sessionFor(req)
	if status != smb1.StatusOK {
		return nil, nil, status
	}
	tc, err := ss.findTree(req.Header().Tid())
	if err != nil {
		return nil, nil, smb1.StatusSMBBadTid
	}
	return ss, tc, smb1.StatusOK
}

// diskTreeFor resolves the header like treeFor and additionally rejects
// pipe trees.
func (c *connection) diskTreeFor(req smb1.Request) (*session, *treeConnect, uint32) {
	ss, tc, status := c.treeFor(req)
	if status != smb1.StatusOK {
		return nil, nil, status
	}
	if tc.share.shareType != shareTypeDisk {
		return nil, nil, smb1.StatusAccessDenied
	}
	return ss, tc, smb1.StatusOK
}
