package main

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmarenin/smb1d/fid"
	"github.com/dmarenin/smb1d/internal/logger"
	"github.com/dmarenin/smb1d/ntlm"
	"github.com/dmarenin/smb1d/ntsec"
	"github.com/dmarenin/smb1d/stores"
)

type serverStats struct {
	start      time.Time
	fOpens     uint32
	sOpens     uint32
	sTimedOut  uint32
	pwErrors   uint32
	permErrors uint32
	bytesSent  uint64
	bytesRcvd  uint64
}

type server struct {
	enabled            bool
	stats              serverStats
	serverName         string
	workgroup          string
	shareList          map[string]*share
	globalSessionTable map[*session]struct{}
	connectionList     map[string]*connection
	connectionCount    map[string]int
	serverGuid         [16]byte

	// Process-wide open-file state: the dense FID table, the inode index
	// behind it, and parked durable handles.
	fids     *fid.Table
	inodes   *fid.InodeTable
	durables *fid.DurableTable

	idmap      *ntsec.Mapper
	ntlmServer *ntlm.Server
	bs         *stores.JSONBansStore
	db         *stores.Database
	oplocks    Oplock

	requireSigning bool
	guestOK        bool

	listener net.Listener
	mu       sync.Mutex
}

func newServer(l net.Listener, bs *stores.JSONBansStore, cfg *stores.Config) *server {
	s := &server{
		enabled:            true,
		serverName:         cfg.ServerName,
		workgroup:          cfg.Workgroup,
		shareList:          make(map[string]*share),
		globalSessionTable: make(map[*session]struct{}),
		connectionList:     make(map[string]*connection),
		connectionCount:    make(map[string]int),
		serverGuid:         [16]byte(uuid.New()),
		fids:               fid.NewTable(),
		inodes:             fid.NewInodeTable(),
		durables:           fid.NewDurableTable(),
		bs:                 bs,
		oplocks:            noOplocks{},
		requireSigning:     cfg.RequireSigning,
		guestOK:            cfg.GuestOK,
		listener:           l,
	}
	machine := machineSID(s.serverGuid)
	s.idmap = &ntsec.Mapper{Oracle: &ntsec.LocalOracle{Machine: machine}}
	s.stats.start = time.Now()
	return s
}

// machineSID derives a stable S-1-5-21 machine SID from the server GUID.
func machineSID(guid [16]byte) *ntsec.SID {
	sub := func(off int) uint32 {
		return uint32(guid[off]) | uint32(guid[off+1])<<8 |
			uint32(guid[off+2])<<16 | uint32(guid[off+3])<<24
	}
	return &ntsec.SID{
		Revision:  1,
		Authority: 5,
		SubAuths:  []uint32{21, sub(0), sub(4), sub(8)},
	}
}

func (s *server) newConnection(conn net.Conn) *connection {
	c := &connection{
		conn:          conn,
		server:        s,
		clientName:    conn.RemoteAddr().String(),
		sessionTable:  make(map[uint16]*session),
		nextUID:       1,
		searches:      newSearchTable(),
		pipes:         newPipeTable(),
		pending:       make(map[uint16]*pendingRequest),
		creationTime:  time.Now(),
		lastActive:    time.Now(),
		maxBufferSize: defaultMaxBufferSize,
		writeChan:     make(chan []byte),
		closeChan:     make(chan struct{}),
	}

	s.mu.Lock()
	s.connectionList[c.clientName] = c
	s.mu.Unlock()

	go c.sendResponses()

	return c
}

func (s *server) closeConnection(c *connection) {
	s.mu.Lock()
	delete(s.connectionList, c.clientName)
	s.mu.Unlock()
	s.dropConnectionSessions(c)
	c.searches.closeAll()
	c.conn.Close()
	c.once.Do(func() { close(c.closeChan) })
}

func (s *server) countSent(n int) {
	s.mu.Lock()
	s.stats.bytesSent += uint64(n)
	s.mu.Unlock()
}

func (s *server) countReceived(n int) {
	s.mu.Lock()
	s.stats.bytesRcvd += uint64(n)
	s.mu.Unlock()
}

// blockHost puts a host on the ban list, mirroring the record to the
// database when one is configured.
func (s *server) blockHost(host, reason string) {
	ban := stores.Ban{At: time.Now(), Reason: reason}
	s.bs.Mu.Lock()
	s.bs.Bans[host] = ban
	s.bs.Mu.Unlock()
	if s.db != nil {
		if err := s.db.SaveBan(host, ban); err != nil {
			logger.Error("couldn't save ban", "host", host, "err", err)
		}
	}

	s.mu.Lock()
	var doomed []*connection
	for addr, c := range s.connectionList {
		if h, _, err := net.SplitHostPort(addr); err == nil && h == host {
			doomed = append(doomed, c)
		}
	}
	s.mu.Unlock()
	for _, c := range doomed {
		s.closeConnection(c)
	}
}
