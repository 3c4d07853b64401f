package main

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const (
	sessionInProgress int = iota
	sessionValid
	sessionExpired
)

// maxSessions bounds the UIDs handed out per connection.
const maxSessions = 2048

var (
	errSessionNotFound = errors.New("session not found")
	errTooManySessions = errors.New("session limit reached")
)

// session is one authenticated user on a connection, identified by the
// 16-bit UID echoed in request headers.
type session struct {
	uid             uint16
	state           int
	isGuest         bool
	sessionKey      []byte
	signingRequired bool
	userName        string
	domain          string
	workstation     string
	unixCaps        uint32

	connection   *connection
	creationTime time.Time
	idleTime     time.Time

	// needReconnect tells in-flight requests the session is going away.
	needReconnect atomic.Bool

	mu        sync.Mutex
	treeTable map[uint16]*treeConnect
}

// registerSession allocates a UID and adds the session to the connection
// and the server-wide table.
func (s *server) registerSession(c *connection, userName string, guest bool) (*session, error) {
	c.mu.Lock()
	if len(c.sessionTable) >= maxSessions {
		c.mu.Unlock()
		return nil, errTooManySessions
	}
	uid := c.nextUID
	for {
		if uid == 0 {
			uid = 1
		}
		if _, taken := c.sessionTable[uid]; !taken {
			break
		}
		uid++
	}
	c.nextUID = uid + 1

	ss := &session{
		uid:          uid,
		state:        sessionInProgress,
		isGuest:      guest,
		userName:     userName,
		connection:   c,
		creationTime: time.Now(),
		idleTime:     time.Now(),
		treeTable:    make(map[uint16]*treeConnect),
	}
	c.sessionTable[uid] = ss
	c.mu.Unlock()

	s.mu.Lock()
	s.globalSessionTable[ss] = struct{}{}
	s.stats.sOpens++
	s.mu.Unlock()

	return ss, nil
}

// findSession resolves the UID of a request header.
func (c *connection) findSession(uid uint16) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ss, ok := c.sessionTable[uid]
	if !ok {
		return nil, errSessionNotFound
	}
	return ss, nil
}

// deregisterSession tears a session down: mark it for reconnect, wait
// until the only request still in flight is the one carrying the logoff,
// then drop every tree and open.
func (s *server) deregisterSession(c *connection, ss *session) {
	ss.needReconnect.Store(true)

	// The logoff itself holds one slot.
	for c.inFlight.Load() > 1 {
		time.Sleep(time.Millisecond)
	}

	ss.mu.Lock()
	trees := make([]*treeConnect, 0, len(ss.treeTable))
	for _, tc := range ss.treeTable {
		trees = append(trees, tc)
	}
	ss.treeTable = make(map[uint16]*treeConnect)
	ss.mu.Unlock()
	for _, tc := range trees {
		s.closeTree(tc)
	}

	c.mu.Lock()
	delete(c.sessionTable, ss.uid)
	c.mu.Unlock()

	s.mu.Lock()
	delete(s.globalSessionTable, ss)
	s.stats.sOpens--
	s.mu.Unlock()
}

// dropConnectionSessions tears down everything a closing connection still
// holds.
func (s *server) dropConnectionSessions(c *connection) {
	c.mu.Lock()
	sessions := make([]*session, 0, len(c.sessionTable))
	for _, ss := range c.sessionTable {
		sessions = append(sessions, ss)
	}
	c.sessionTable = make(map[uint16]*session)
	c.mu.Unlock()

	for _, ss := range sessions {
		ss.needReconnect.Store(true)
		ss.mu.Lock()
		trees := make([]*treeConnect, 0, len(ss.treeTable))
		for _, tc := range ss.treeTable {
			trees = append(trees, tc)
		}
		ss.treeTable = make(map[uint16]*treeConnect)
		ss.mu.Unlock()
		for _, tc := range trees {
			s.closeTree(tc)
		}
		s.mu.Lock()
		delete(s.globalSessionTable, ss)
		s.stats.sOpens--
		s.mu.Unlock()
	}
}
