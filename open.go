package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmarenin/smb1d/fid"
	"github.com/dmarenin/smb1d/internal/logger"
	"github.com/dmarenin/smb1d/smb1"
	"github.com/dmarenin/smb1d/vfs"
)

// Access bits implying reads or writes of file data and metadata.
const (
	readDataMask  = smb1.FileReadData | smb1.FileExecute
	writeDataMask = smb1.FileWriteData | smb1.FileAppendData
	writeMask     = smb1.FileWriteData | smb1.FileAppendData | smb1.FileWriteEA |
		smb1.FileWriteAttributes | smb1.Delete | smb1.FileDeleteChild |
		smb1.WriteDAC | smb1.WriteOwner
	deleteMask = smb1.Delete | smb1.FileDeleteChild
)

// expandAccess resolves the generic and maximal access bits against the
// tree's writability.
func expandAccess(desired uint32, writeable bool) uint32 {
	if desired&(smb1.MaximumAllowed|smb1.GenericAll) != 0 {
		desired |= smb1.FileReadData | smb1.FileExecute | smb1.FileReadEA |
			smb1.FileReadAttributes | smb1.ReadControl
		if writeable {
			desired |= smb1.FileWriteData | smb1.FileAppendData | smb1.FileWriteEA |
				smb1.FileWriteAttributes | smb1.Delete | smb1.FileDeleteChild
		}
	}
	if desired&smb1.GenericRead != 0 {
		desired |= smb1.FileReadData | smb1.FileReadAttributes | smb1.FileReadEA | smb1.ReadControl
	}
	if desired&smb1.GenericWrite != 0 {
		desired |= smb1.FileWriteData | smb1.FileAppendData | smb1.FileWriteEA | smb1.FileWriteAttributes
	}
	if desired&smb1.GenericExecute != 0 {
		desired |= smb1.FileExecute | smb1.FileReadAttributes
	}
	return desired &^ (smb1.MaximumAllowed | smb1.GenericAll |
		smb1.GenericRead | smb1.GenericWrite | smb1.GenericExecute)
}

// splitStreamName splits "name:stream:$DATA" into the base path and the
// stream name. A bare name returns an empty stream.
func splitStreamName(name string) (string, string) {
	base, rest, ok := strings.Cut(name, ":")
	if !ok {
		return name, ""
	}
	stream, _, _ := strings.Cut(rest, ":")
	return base, stream
}

// resolvePath maps a wire name to a host path, optionally relative to an
// open directory handle.
func (s *server) resolvePath(sh *share, rootFID uint32, name string) (string, uint32) {
	if rootFID == 0 {
		p, err := sh.fs.Resolve(name)
		if err != nil {
			return "", smb1.StatusObjectPathSyntaxBad
		}
		return p, smb1.StatusOK
	}
	base, err := s.fids.Lookup(uint16(rootFID))
	if err != nil {
		return "", smb1.StatusInvalidHandle
	}
	defer base.Release()
	if !base.IsDirectory {
		return "", smb1.StatusInvalidParameter
	}
	name = strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
	p := filepath.Clean(filepath.Join(base.Path, name))
	if p != sh.fs.Root && !strings.HasPrefix(p, sh.fs.Root+string(filepath.Separator)) {
		return "", smb1.StatusObjectPathSyntaxBad
	}
	return p, smb1.StatusOK
}

func snapshotOf(st vfs.Stat) fid.Snapshot {
	return fid.Snapshot{
		Ino:     st.Ino,
		Dev:     st.Dev,
		Mode:    st.Mode,
		Nlink:   st.Nlink,
		UID:     st.UID,
		GID:     st.GID,
		Rdev:    st.Rdev,
		Size:    st.Size,
		ATime:   st.ATime,
		MTime:   st.MTime,
		CTime:   st.CTime,
		Blksize: st.Blksize,
		Blocks:  st.Blocks,
	}
}

// sharingConflict checks the new open against every other open of the
// same data: each side's granted access must be admitted by the other
// side's share mode.
func sharingConflict(f *fid.File) bool {
	if f.Master == nil {
		return false
	}
	var conflict bool
	f.Master.Each(func(g *fid.File) {
		if g == f || g.StreamName != f.StreamName {
			return
		}
		if f.Access&readDataMask != 0 && g.ShareAccess&smb1.FileShareRead == 0 {
			conflict = true
		}
		if f.Access&writeDataMask != 0 && g.ShareAccess&smb1.FileShareWrite == 0 {
			conflict = true
		}
		if f.Access&deleteMask != 0 && g.ShareAccess&smb1.FileShareDelete == 0 {
			conflict = true
		}
		if g.Access&readDataMask != 0 && f.ShareAccess&smb1.FileShareRead == 0 {
			conflict = true
		}
		if g.Access&writeDataMask != 0 && f.ShareAccess&smb1.FileShareWrite == 0 {
			conflict = true
		}
		if g.Access&deleteMask != 0 && f.ShareAccess&smb1.FileShareDelete == 0 {
			conflict = true
		}
	})
	return conflict
}

// openParams is one open request after wire decoding, shared by the NT
// and legacy open commands.
type openParams struct {
	name        string
	rootFID     uint32
	desired     uint32
	shareAccess uint32
	disposition uint32
	options     uint32
	pid         uint16
	ntOpen      bool
	wantOplock  uint8
}

type openResult struct {
	file    *fid.File
	stat    vfs.Stat
	path    string
	action  uint32
	granted uint8
}

// openFile runs the disposition matrix, opens or creates the target, and
// installs the handle into the FID table and the master-file table.
func (s *server) openFile(ss *session, tc *treeConnect, p openParams) (openResult, uint32) {
	sh := tc.share

	base, streamName := splitStreamName(p.name)
	path, status := s.resolvePath(sh, p.rootFID, base)
	if status != smb1.StatusOK {
		return openResult{}, status
	}
	if sh.vetoed(filepath.Base(path)) {
		return openResult{}, smb1.StatusObjectNameNotFound
	}

	p.desired = expandAccess(p.desired, tc.writeable)
	deleteOnClose := p.options&smb1.FileDeleteOnClose != 0

	if !tc.writeable {
		if p.desired&writeMask != 0 || deleteOnClose ||
			p.disposition == smb1.FileCreate || p.disposition == smb1.FileOverwrite ||
			p.disposition == smb1.FileOverwriteIf || p.disposition == smb1.FileSupersede {
			return openResult{}, smb1.StatusAccessDenied
		}
		if p.disposition == smb1.FileOpenIf {
			// Degrades to a plain open; the create leg needs the tree
			// writable.
			if _, err := sh.fs.Stat(path); err != nil {
				return openResult{}, smb1.StatusAccessDenied
			}
			p.disposition = smb1.FileOpen
		}
	}
	if deleteOnClose && p.desired&deleteMask == 0 {
		return openResult{}, smb1.StatusInvalidParameter
	}

	creates := p.disposition != smb1.FileOpen
	truncates := p.disposition == smb1.FileOverwrite ||
		p.disposition == smb1.FileOverwriteIf || p.disposition == smb1.FileSupersede

	st, statErr := sh.fs.Lstat(path)
	exists := statErr == nil
	if streamName != "" && exists {
		if _, serr := sh.fs.ReadStream(path, streamName); serr != nil {
			// The base file is there but the stream is not; the
			// disposition matrix runs against the stream.
			exists = false
		}
	}
	if exists && st.IsSymlink() {
		// Symlinks are never followed on the DOS path namespace; the
		// UNIX extensions query them explicitly.
		st, statErr = sh.fs.Stat(path)
		if statErr != nil {
			return openResult{}, smb1.StatusObjectNameNotFound
		}
	}

	var action uint32
	flags := 0
	switch p.disposition {
	case smb1.FileOpen:
		if !exists {
			return openResult{}, smb1.StatusObjectNameNotFound
		}
		action = smb1.FileOpened
	case smb1.FileCreate:
		if exists {
			return openResult{}, smb1.StatusObjectNameCollision
		}
		flags |= os.O_CREATE | os.O_EXCL
		action = smb1.FileCreated
	case smb1.FileOpenIf:
		flags |= os.O_CREATE
		if exists {
			action = smb1.FileOpened
		} else {
			action = smb1.FileCreated
		}
	case smb1.FileOverwrite:
		if !exists {
			return openResult{}, smb1.StatusObjectNameNotFound
		}
		flags |= os.O_TRUNC
		action = smb1.FileOverwritten
	case smb1.FileOverwriteIf:
		flags |= os.O_CREATE | os.O_TRUNC
		if exists {
			action = smb1.FileOverwritten
		} else {
			action = smb1.FileCreated
		}
	case smb1.FileSupersede:
		flags |= os.O_CREATE | os.O_TRUNC
		if exists {
			action = smb1.FileSuperseded
		} else {
			action = smb1.FileCreated
		}
	default:
		return openResult{}, smb1.StatusInvalidParameter
	}

	wantDir := p.options&smb1.FileDirectoryFile != 0
	if exists {
		if wantDir && !st.IsDir() {
			return openResult{}, smb1.StatusNotADirectory
		}
		if st.IsDir() {
			if p.options&smb1.FileNonDirectoryFile != 0 {
				return openResult{}, smb1.StatusFileIsADirectory
			}
			if truncates {
				return openResult{}, smb1.StatusFileIsADirectory
			}
		}
	}
	isDir := wantDir || (exists && st.IsDir())

	var fd *os.File
	var err error
	if isDir {
		if !exists {
			perm := os.FileMode(sh.directoryMask & 0o777)
			if perm == 0 {
				perm = 0o755
			}
			if err = sh.fs.Mkdir(path, perm); err != nil {
				return openResult{}, smb1.ErrToStatus(err)
			}
		}
		fd, err = sh.fs.Open(path, os.O_RDONLY, 0)
	} else {
		acc := os.O_RDONLY
		write := p.desired&writeDataMask != 0
		if write || truncates {
			acc = os.O_RDWR
		}
		perm := os.FileMode(sh.createMask & 0o777)
		if perm == 0 {
			perm = 0o644
		}
		if streamName != "" {
			// The descriptor addresses the base file; stream I/O goes
			// through its xattr slot. O_EXCL and O_TRUNC stay off the
			// base: they apply to the stream only.
			fd, err = sh.fs.Open(path, acc|(flags&os.O_CREATE), perm)
		} else {
			fd, err = sh.fs.Open(path, acc|flags, perm)
		}
	}
	if err != nil {
		return openResult{}, smb1.ErrToStatus(err)
	}

	if streamName != "" {
		data, serr := sh.fs.ReadStream(path, streamName)
		switch {
		case serr == vfs.ErrNoStream && !creates:
			fd.Close()
			return openResult{}, smb1.StatusObjectNameNotFound
		case serr == vfs.ErrNoStream || truncates:
			if serr := sh.fs.WriteStream(path, streamName, nil); serr != nil {
				fd.Close()
				return openResult{}, smb1.ErrToStatus(serr)
			}
			data = nil
		case serr != nil:
			fd.Close()
			return openResult{}, smb1.ErrToStatus(serr)
		}
		st.Size = int64(len(data))
	}

	fst, err := sh.fs.Fstat(fd)
	if err != nil {
		fd.Close()
		return openResult{}, smb1.ErrToStatus(err)
	}
	if streamName == "" {
		st = fst
	} else {
		size := st.Size
		st = fst
		st.Size = size
	}

	f := fid.NewFile()
	f.SessionUID = ss.uid
	f.TreeID = tc.tid
	f.PID = p.pid
	f.Fd = fd
	f.Path = path
	f.StreamName = streamName
	f.Access = p.desired
	f.ShareAccess = p.shareAccess
	f.IsDirectory = isDir
	f.IsStream = streamName != ""
	f.IsNTOpen = p.ntOpen

	if _, err := s.fids.Bind(f); err != nil {
		fd.Close()
		return openResult{}, smb1.StatusTooManyOpenedFiles
	}
	in := s.inodes.Attach(fid.InodeKey{Dev: fst.Dev, Ino: fst.Ino}, f)

	rollback := func() {
		s.inodes.Detach(f)
		s.fids.Unbind(f.ID)
		fd.Close()
	}

	if in.HasFlags(fid.DeleteOnClose) {
		rollback()
		return openResult{}, smb1.StatusDeletePending
	}
	if sharingConflict(f) {
		rollback()
		return openResult{}, smb1.StatusSharingViolation
	}

	if deleteOnClose {
		if f.IsStream {
			in.SetFlags(fid.DeleteOnCloseStream)
		} else {
			in.SetFlags(fid.DeleteOnClose)
		}
	}

	granted := s.oplocks.Grant(f, p.wantOplock)
	if p.wantOplock == smb1.OplockBatch && st.IsRegular() {
		if _, err := s.durables.Register(f, ss.uid, snapshotOf(fst)); err != nil {
			logger.Debug("durable registration failed", "path", path, "err", err)
		}
	}

	f.MarkReady()
	tc.openCount.Add(1)
	s.mu.Lock()
	s.stats.fOpens++
	s.mu.Unlock()

	return openResult{file: f, stat: st, path: path, action: action, granted: granted}, smb1.StatusOK
}

// closeOpen tears down one handle: locks, directory cursor, durable
// record, master-file reference and the delete-on-close unlink.
func (s *server) closeOpen(tc *treeConnect, id uint16) uint32 {
	f, err := s.fids.Unbind(id)
	if f == nil {
		return smb1.StatusInvalidHandle
	}
	if err != nil {
		logger.Error("internal error: handle teardown timed out", "fid", id, "err", err)
	}

	f.UnlockAll()
	if f.Dir != nil {
		f.Dir.Close()
		f.Dir = nil
	}
	if f.IsDurable {
		s.durables.Remove(uint16(f.PersistentID))
	}

	sh := tc.share
	if f.IsStream && f.Master != nil && f.Master.HasFlags(fid.DeleteOnCloseStream) {
		sh.fs.RemoveStream(f.Path, f.StreamName)
	}
	deleteOnClose, last := s.inodes.Detach(f)
	if deleteOnClose && last {
		if f.IsDirectory {
			err = sh.fs.Rmdir(f.Path)
		} else {
			err = sh.fs.Unlink(f.Path)
		}
		if err != nil {
			logger.Warn("delete on close failed", "path", f.Path, "err", err)
		}
	}

	if f.Fd != nil {
		f.Fd.Close()
	}

	tc.openCount.Add(-1)
	s.mu.Lock()
	if s.stats.fOpens > 0 {
		s.stats.fOpens--
	}
	s.mu.Unlock()
	return smb1.StatusOK
}

// closeMatchingOpens closes every handle of the session the predicate
// selects.
func closeMatchingOpens(s *server, ss *session, pred func(tid, fileID, filePID uint16) bool) {
	type openRef struct{ tid, id uint16 }
	var refs []openRef
	s.fids.Each(func(f *fid.File) {
		if f.SessionUID == ss.uid && pred(f.TreeID, f.ID, f.PID) {
			refs = append(refs, openRef{tid: f.TreeID, id: f.ID})
		}
	})
	for _, r := range refs {
		tc, err := ss.findTree(r.tid)
		if err != nil {
			continue
		}
		s.closeOpen(tc, r.id)
	}
}

// fileFor resolves a FID to a handle owned by the request's session and
// tree, with a reference taken. The caller releases it.
func fileFor(s *server, ss *session, tc *treeConnect, id uint16) (*fid.File, uint32) {
	f, err := s.fids.Lookup(id)
	if err != nil {
		return nil, smb1.StatusInvalidHandle
	}
	if f.SessionUID != ss.uid || f.TreeID != tc.tid {
		f.Release()
		return nil, smb1.StatusInvalidHandle
	}
	return f, smb1.StatusOK
}

func handleNTCreate(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.treeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	cr, err := smb1.ParseNTCreate(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	if tc.share.shareType == shareTypePipe {
		return openPipe(c, ss, tc, cr.Name, rsp)
	}

	var wantOplock uint8
	if cr.Flags&smb1.CreateRequestOplockBatch != 0 {
		wantOplock = smb1.OplockBatch
	} else if cr.Flags&smb1.CreateRequestOplock != 0 {
		wantOplock = smb1.OplockExclusive
	}

	res, status := c.server.openFile(ss, tc, openParams{
		name:        cr.Name,
		rootFID:     cr.RootDirectoryFID,
		desired:     cr.DesiredAccess,
		shareAccess: cr.ShareAccess,
		disposition: cr.CreateDisposition,
		options:     cr.CreateOptions,
		pid:         req.Header().PidLow(),
		ntOpen:      true,
		wantOplock:  wantOplock,
	})
	if status != smb1.StatusOK {
		return status
	}

	sh := tc.share
	st := res.stat
	logger.Debug("nt create", "client", c.clientName, "name", cr.Name, "fid", res.file.ID, "action", res.action)

	nrsp := smb1.NTCreateResponse{
		OplockLevel:    res.granted,
		FID:            res.file.ID,
		CreateAction:   res.action,
		CreationTime:   sh.fs.CreationTime(res.path, st.CTime),
		LastAccessTime: st.ATime,
		LastWriteTime:  st.MTime,
		ChangeTime:     st.CTime,
		FileAttributes: uint32(dosAttributes(sh, res.path, filepath.Base(res.path), st)),
		AllocationSize: st.AllocationSize(),
		EndOfFile:      uint64(st.Size),
		FileType:       smb1.FileTypeDisk,
		Directory:      res.file.IsDirectory,
	}
	nrsp.Encode(rsp)
	return smb1.StatusOK
}

// legacyShareAccess maps the OPEN_ANDX deny bits to share access.
func legacyShareAccess(mode uint16) uint32 {
	switch mode & 0x0070 {
	case smb1.OpenShareDenyRW:
		return 0
	case smb1.OpenShareDenyWrite:
		return smb1.FileShareRead
	case smb1.OpenShareDenyRead:
		return smb1.FileShareWrite
	default:
		return smb1.FileShareRead | smb1.FileShareWrite
	}
}

// legacyDesiredAccess maps the OPEN_ANDX access mode to an NT access
// mask.
func legacyDesiredAccess(mode uint16) uint32 {
	switch mode & 0x0007 {
	case smb1.OpenAccessWrite:
		return smb1.FileWriteData | smb1.FileAppendData | smb1.FileWriteAttributes
	case smb1.OpenAccessReadWrite:
		return smb1.FileReadData | smb1.FileWriteData | smb1.FileAppendData |
			smb1.FileReadAttributes | smb1.FileWriteAttributes
	case smb1.OpenAccessExecute:
		return smb1.FileReadData | smb1.FileExecute | smb1.FileReadAttributes
	default:
		return smb1.FileReadData | smb1.FileReadAttributes
	}
}

// legacyDisposition maps the OPEN_ANDX open function to an NT create
// disposition.
func legacyDisposition(fn uint16) (uint32, uint32) {
	create := fn&smb1.OpenFnCreateIfAbsent != 0
	switch fn & 0x0003 {
	case smb1.OpenFnOpenIfExists:
		if create {
			return smb1.FileOpenIf, smb1.StatusOK
		}
		return smb1.FileOpen, smb1.StatusOK
	case smb1.OpenFnTruncateIfExists:
		if create {
			return smb1.FileOverwriteIf, smb1.StatusOK
		}
		return smb1.FileOverwrite, smb1.StatusOK
	case 0:
		// Open must fail when the target exists.
		if create {
			return smb1.FileCreate, smb1.StatusOK
		}
		return 0, smb1.StatusInvalidParameter
	}
	return 0, smb1.StatusInvalidParameter
}

// legacyOpenAction maps a create action to the legacy open action word.
func legacyOpenAction(action uint32) uint16 {
	switch action {
	case smb1.FileCreated:
		return 2
	case smb1.FileOverwritten, smb1.FileSuperseded:
		return 3
	default:
		return 1
	}
}

func handleOpenAndX(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	or, err := smb1.ParseOpen(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	disposition, status := legacyDisposition(or.OpenFunction)
	if status != smb1.StatusOK {
		return status
	}

	res, status := c.server.openFile(ss, tc, openParams{
		name:        or.Name,
		desired:     legacyDesiredAccess(or.AccessMode),
		shareAccess: legacyShareAccess(or.AccessMode),
		disposition: disposition,
		pid:         req.Header().PidLow(),
	})
	if status != smb1.StatusOK {
		return status
	}

	st := res.stat
	orsp := smb1.OpenResponse{
		FID:            res.file.ID,
		FileAttributes: dosAttributes(tc.share, res.path, filepath.Base(res.path), st),
		LastWriteTime:  st.MTime,
		FileSize:       uint32(st.Size),
		AccessRights:   or.AccessMode & 0x0007,
		FileType:       smb1.FileTypeDisk,
		OpenAction:     legacyOpenAction(res.action),
	}
	orsp.Encode(rsp)
	return smb1.StatusOK
}

// handleOpenLegacy serves the core OPEN command.
func handleOpenLegacy(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	mode, err := req.Word(0)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	name, err := smb1.ParsePathname(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	res, status := c.server.openFile(ss, tc, openParams{
		name:        name,
		desired:     legacyDesiredAccess(mode),
		shareAccess: legacyShareAccess(mode),
		disposition: smb1.FileOpen,
		pid:         req.Header().PidLow(),
	})
	if status != smb1.StatusOK {
		return status
	}

	st := res.stat
	words := make([]byte, 14)
	binary.LittleEndian.PutUint16(words[0:2], res.file.ID)
	binary.LittleEndian.PutUint16(words[2:4], dosAttributes(tc.share, res.path, filepath.Base(res.path), st))
	binary.LittleEndian.PutUint32(words[4:8], smb1.SeekTime(st.MTime))
	binary.LittleEndian.PutUint32(words[8:12], uint32(st.Size))
	binary.LittleEndian.PutUint16(words[12:14], mode&0x0007)
	rsp.PutBlock(words, nil)
	return smb1.StatusOK
}

// handleCreateLegacy serves the core CREATE command: create or truncate,
// then open for read/write.
func handleCreateLegacy(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	attrs, err := req.Word(0)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	name, err := smb1.ParsePathname(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	res, status := c.server.openFile(ss, tc, openParams{
		name: name,
		desired: smb1.FileReadData | smb1.FileWriteData | smb1.FileAppendData |
			smb1.FileReadAttributes | smb1.FileWriteAttributes,
		shareAccess: smb1.FileShareRead | smb1.FileShareWrite,
		disposition: smb1.FileOverwriteIf,
		pid:         req.Header().PidLow(),
	})
	if status != smb1.StatusOK {
		return status
	}
	if attrs != 0 {
		tc.share.fs.SetDosAttributes(res.path, uint32(attrs))
	}

	words := []byte{byte(res.file.ID), byte(res.file.ID >> 8)}
	rsp.PutBlock(words, nil)
	return smb1.StatusOK
}

func handleClose(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.treeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	cr, err := smb1.ParseClose(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	if tc.share.shareType == shareTypePipe {
		return closePipe(c, ss, tc, cr.FID, rsp)
	}

	f, status := fileFor(c.server, ss, tc, cr.FID)
	if status != smb1.StatusOK {
		return status
	}
	path := f.Path
	f.Release()

	if !cr.LastWriteTime.IsZero() {
		tc.share.fs.SetTimes(path, time.Time{}, cr.LastWriteTime)
	}
	if status := c.server.closeOpen(tc, cr.FID); status != smb1.StatusOK {
		return status
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func handleFlush(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	id, err := smb1.ParseFid(req, 0)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	if id == 0xffff {
		// Flush everything the session has open.
		var ids []uint16
		c.server.fids.Each(func(f *fid.File) {
			if f.SessionUID == ss.uid {
				ids = append(ids, f.ID)
			}
		})
		for _, fd := range ids {
			if f, err := c.server.fids.Lookup(fd); err == nil {
				if f.Fd != nil {
					f.Fd.Sync()
				}
				f.Release()
			}
		}
		rsp.PutEmptyBlock()
		return smb1.StatusOK
	}

	f, status := fileFor(c.server, ss, tc, id)
	if status != smb1.StatusOK {
		return status
	}
	defer f.Release()
	if f.Fd != nil {
		if err := f.Fd.Sync(); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}
