package main

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/dmarenin/smb1d/smb1"
	"github.com/dmarenin/smb1d/stores"
	"github.com/dmarenin/smb1d/vfs"
)

const (
	shareTypeDisk = iota
	shareTypePipe
)

var (
	errShareNotFound    = errors.New("no such share")
	errShareAccess      = errors.New("access to share denied")
	errShareUnavailable = errors.New("share currently unavailable")
)

// share is one exported directory tree and its access policy.
type share struct {
	name      string
	shareType int
	remark    string
	writeable bool
	guestOK   bool
	browsable bool

	allowHosts []string
	denyHosts  []string

	validUsers   []string
	invalidUsers []string
	readList     []string
	writeList    []string

	maxUses     int
	currentUses int

	vetoFiles     []string
	createMask    uint32
	directoryMask uint32

	fs        *vfs.VFS
	createdAt time.Time
	volumeID  uint64
}

// registerShare adds a configured share to the server.
func (s *server) registerShare(cfg stores.Share) error {
	root, err := vfs.CheckRoot(cfg.Path)
	if err != nil {
		return errShareUnavailable
	}

	sh := &share{
		name:          cfg.Name,
		shareType:     shareTypeDisk,
		remark:        cfg.Remark,
		writeable:     cfg.Writeable,
		guestOK:       cfg.GuestOK,
		browsable:     cfg.Browsable,
		allowHosts:    cfg.AllowHosts,
		denyHosts:     cfg.DenyHosts,
		validUsers:    cfg.ValidUsers,
		invalidUsers:  cfg.InvalidUsers,
		readList:      cfg.ReadList,
		writeList:     cfg.WriteList,
		maxUses:       cfg.MaxConnections,
		createMask:    cfg.CreateMask,
		directoryMask: cfg.DirectoryMask,
		fs:            vfs.New(root, cfg.StoreDosAttributes),
		createdAt:     time.Now(),
	}
	if cfg.VetoFiles != "" {
		sh.vetoFiles = strings.Split(strings.Trim(cfg.VetoFiles, "/"), "/")
	}

	vid := make([]byte, 8)
	rand.Read(vid)
	sh.volumeID = binary.LittleEndian.Uint64(vid)

	s.mu.Lock()
	s.shareList[strings.ToLower(cfg.Name)] = sh
	s.mu.Unlock()

	return nil
}

// registerIPC adds the IPC$ endpoint used for named-pipe traffic.
func (s *server) registerIPC() {
	sh := &share{
		name:      "IPC$",
		shareType: shareTypePipe,
		remark:    "IPC Service",
		guestOK:   true,
	}
	s.mu.Lock()
	s.shareList["ipc$"] = sh
	s.mu.Unlock()
}

// lookupShare finds a share by its case-insensitive name.
func (s *server) lookupShare(name string) (*share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shareList[strings.ToLower(name)]
	if !ok {
		return nil, errShareNotFound
	}
	return sh, nil
}

// hostOf strips the port from a peer address.
func hostOf(peer net.Addr) string {
	if addrPort, err := netip.ParseAddrPort(peer.String()); err == nil {
		return addrPort.Addr().Unmap().String()
	}
	return peer.String()
}

func hostMatches(peer netip.Addr, entry string) bool {
	if pfx, err := netip.ParsePrefix(entry); err == nil {
		return pfx.Contains(peer)
	}
	if addr, err := netip.ParseAddr(entry); err == nil {
		return addr == peer
	}
	return false
}

func hostIn(peer netip.Addr, list []string) bool {
	for _, e := range list {
		if hostMatches(peer, e) {
			return true
		}
	}
	return false
}

// hostAllowed applies the allow/deny host policy. With both lists empty
// everything is allowed; an allow entry wins over a deny entry; a
// deny-only policy admits every peer it does not name.
func (sh *share) hostAllowed(peer netip.Addr) bool {
	if len(sh.allowHosts) == 0 && len(sh.denyHosts) == 0 {
		return true
	}
	if hostIn(peer, sh.allowHosts) {
		return true
	}
	if hostIn(peer, sh.denyHosts) {
		return false
	}
	return len(sh.allowHosts) == 0
}

func userIn(user string, list []string) bool {
	for _, u := range list {
		if strings.EqualFold(u, user) {
			return true
		}
	}
	return false
}

// userAccess applies the user policy and resolves the effective
// writability of the connection. An entry in the write list overrides the
// read list: explicit grants win.
func (sh *share) userAccess(user string) (writeable bool, err error) {
	if sh.guestOK {
		return sh.writeable, nil
	}
	if userIn(user, sh.invalidUsers) {
		return false, errShareAccess
	}
	writeable = sh.writeable
	if userIn(user, sh.readList) {
		writeable = false
	}
	if userIn(user, sh.writeList) {
		writeable = true
	}
	if len(sh.validUsers) > 0 && !userIn(user, sh.validUsers) {
		return false, errShareAccess
	}
	return writeable, nil
}

// resolveShare runs the full connect pipeline: name lookup, host policy,
// user policy, connection budget.
func (s *server) resolveShare(peer net.Addr, user, name string) (*share, bool, uint32) {
	sh, err := s.lookupShare(name)
	if err != nil {
		return nil, false, smb1.StatusBadNetworkName
	}

	if addrPort, err := netip.ParseAddrPort(peer.String()); err == nil {
		if !sh.hostAllowed(addrPort.Addr().Unmap()) {
			return nil, false, smb1.StatusAccessDenied
		}
	}

	writeable, err := sh.userAccess(user)
	if err != nil {
		return nil, false, smb1.StatusAccessDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sh.maxUses > 0 && sh.currentUses >= sh.maxUses {
		return nil, false, smb1.StatusRequestNotAccepted
	}
	sh.currentUses++
	return sh, writeable, smb1.StatusOK
}

// releaseShare gives back one connection slot.
func (s *server) releaseShare(sh *share) {
	s.mu.Lock()
	if sh.currentUses > 0 {
		sh.currentUses--
	}
	s.mu.Unlock()
}

// vetoed reports whether a path component is hidden by the share's veto
// list.
func (sh *share) vetoed(name string) bool {
	for _, v := range sh.vetoFiles {
		if vfs.MatchPattern(v, name) {
			return true
		}
	}
	return false
}

// serialNo derives the share's volume serial number from its volume ID.
func (sh *share) serialNo() uint32 {
	return uint32(sh.volumeID)
}
