package main

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmarenin/smb1d/fid"
)

var (
	errNoShare       = errors.New("no share name provided")
	errNoTreeConnect = errors.New("tree already disconnected")
)

// treeID is the process-wide TID counter. Wrapping is tolerable: the
// number of concurrent trees stays far below 16 bits.
var treeID atomic.Uint32

// treeConnect binds a session to a share under a 16-bit TID.
type treeConnect struct {
	tid          uint16
	session      *session
	share        *share
	writeable    bool
	openCount    atomic.Int64
	creationTime time.Time
}

// extractShareName pulls the share out of a \\server\share UNC path. A
// bare share name passes through unchanged.
func extractShareName(path string) string {
	if !strings.HasPrefix(path, "\\\\") {
		return path
	}
	rest := path[2:]
	pos := strings.Index(rest, "\\")
	if pos == -1 || pos == len(rest)-1 {
		return ""
	}
	return rest[pos+1:]
}

func nextTreeID() uint16 {
	for {
		id := uint16(treeID.Add(1))
		if id != 0 && id != 0xffff {
			return id
		}
	}
}

// newTreeConnect attaches a resolved share to the session under a fresh
// TID.
func (ss *session) newTreeConnect(sh *share, writeable bool) *treeConnect {
	tc := &treeConnect{
		tid:          nextTreeID(),
		session:      ss,
		share:        sh,
		writeable:    writeable,
		creationTime: time.Now(),
	}
	ss.mu.Lock()
	ss.treeTable[tc.tid] = tc
	ss.mu.Unlock()
	return tc
}

// findTree resolves the TID of a request header.
func (ss *session) findTree(tid uint16) (*treeConnect, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	tc, ok := ss.treeTable[tid]
	if !ok {
		return nil, errNoTreeConnect
	}
	return tc, nil
}

// disconnectTree removes the TID from the session and closes everything
// the tree still has open.
func (s *server) disconnectTree(ss *session, tid uint16) error {
	ss.mu.Lock()
	tc, ok := ss.treeTable[tid]
	if ok {
		delete(ss.treeTable, tid)
	}
	ss.mu.Unlock()
	if !ok {
		return errNoTreeConnect
	}
	s.closeTree(tc)
	return nil
}

// closeTree closes the tree's open handles and releases its share slot.
func (s *server) closeTree(tc *treeConnect) {
	var ids []uint16
	s.fids.Each(func(f *fid.File) {
		if f.SessionUID == tc.session.uid && f.TreeID == tc.tid {
			ids = append(ids, f.ID)
		}
	})
	for _, id := range ids {
		s.closeOpen(tc, id)
	}
	s.releaseShare(tc.share)
}
