package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmarenin/smb1d/fid"
	"github.com/dmarenin/smb1d/smb1"
	"github.com/dmarenin/smb1d/vfs"
)

func handleCreateDirectory(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	name, err := smb1.ParsePathname(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if !tc.writeable {
		return smb1.StatusAccessDenied
	}
	sh := tc.share
	if sh.vetoed(name) {
		return smb1.StatusAccessDenied
	}
	path, err := sh.fs.Resolve(name)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	perm := os.FileMode(sh.directoryMask & 0o777)
	if perm == 0 {
		perm = 0o755
	}
	if err := sh.fs.Mkdir(path, perm); err != nil {
		return smb1.ErrToStatus(err)
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func handleDeleteDirectory(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	name, err := smb1.ParsePathname(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if !tc.writeable {
		return smb1.StatusAccessDenied
	}
	sh := tc.share
	path, err := sh.fs.Resolve(name)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	st, err := sh.fs.Stat(path)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	if !st.IsDir() {
		return smb1.StatusNotADirectory
	}
	if status := deleteConflict(c.server, st); status != smb1.StatusOK {
		return status
	}
	if err := sh.fs.Rmdir(path); err != nil {
		return smb1.ErrToStatus(err)
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func handleCheckDirectory(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	name, err := smb1.ParsePathname(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	sh := tc.share
	if sh.vetoed(name) {
		return smb1.StatusObjectNameNotFound
	}
	path, err := sh.fs.Resolve(name)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	st, err := sh.fs.Stat(path)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	if !st.IsDir() {
		return smb1.StatusNotADirectory
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

// deleteConflict reports whether any live open of the target denies
// removal through its share mode.
func deleteConflict(s *server, st vfs.Stat) uint32 {
	in := s.inodes.Lookup(fid.InodeKey{Dev: st.Dev, Ino: st.Ino})
	if in == nil {
		return smb1.StatusOK
	}
	conflict := false
	in.Each(func(f *fid.File) {
		if f.ShareAccess&smb1.FileShareDelete == 0 {
			conflict = true
		}
	})
	if conflict {
		return smb1.StatusSharingViolation
	}
	return smb1.StatusOK
}

// renameConflict checks the share modes of the target like deleteConflict
// and additionally refuses to move a directory while any file below it is
// open: the open handles hold paths that the rename would invalidate.
func renameConflict(s *server, st vfs.Stat, oldPath string) uint32 {
	if status := deleteConflict(s, st); status != smb1.StatusOK {
		return status
	}
	if !st.IsDir() {
		return smb1.StatusOK
	}
	prefix := oldPath + "/"
	busy := false
	s.fids.Each(func(f *fid.File) {
		if strings.HasPrefix(f.Path, prefix) {
			busy = true
		}
	})
	if busy {
		return smb1.StatusAccessDenied
	}
	return smb1.StatusOK
}

func unlinkOne(s *server, sh *share, path string) uint32 {
	st, err := sh.fs.Lstat(path)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	if st.IsDir() {
		return smb1.StatusFileIsADirectory
	}
	if st.Mode&0o200 == 0 {
		return smb1.StatusCannotDelete
	}
	if status := deleteConflict(s, st); status != smb1.StatusOK {
		return status
	}
	if err := sh.fs.Unlink(path); err != nil {
		return smb1.ErrToStatus(err)
	}
	return smb1.StatusOK
}

func handleDelete(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	dr, err := smb1.ParseDelete(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if !tc.writeable {
		return smb1.StatusAccessDenied
	}
	sh := tc.share
	if sh.vetoed(dr.Name) {
		return smb1.StatusObjectNameNotFound
	}

	dir, pattern := filepath.Split(strings.ReplaceAll(dr.Name, "\\", "/"))
	if !strings.ContainsAny(pattern, "*?") {
		path, err := sh.fs.Resolve(dr.Name)
		if err != nil {
			return smb1.ErrToStatus(err)
		}
		if status := unlinkOne(c.server, sh, path); status != smb1.StatusOK {
			return status
		}
		rsp.PutEmptyBlock()
		return smb1.StatusOK
	}

	dirPath, err := sh.fs.Resolve(dir)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	ds, err := sh.fs.OpenDir(dirPath, pattern)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	defer ds.Close()

	deleted := 0
	for {
		name, st, err := ds.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return smb1.ErrToStatus(err)
		}
		if name == "." || name == ".." || st.IsDir() {
			continue
		}
		path := filepath.Join(dirPath, name)
		attrs := dosAttributes(sh, path, name, st)
		if !attrsWanted(dr.SearchAttributes, attrs) {
			continue
		}
		if status := unlinkOne(c.server, sh, path); status != smb1.StatusOK {
			return status
		}
		deleted++
	}
	if deleted == 0 {
		return smb1.StatusNoSuchFile
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func renamePaths(sh *share, oldName, newName string) (oldPath, newPath string, status uint32) {
	if sh.vetoed(oldName) || sh.vetoed(newName) {
		return "", "", smb1.StatusObjectNameNotFound
	}
	oldPath, err := sh.fs.Resolve(oldName)
	if err != nil {
		return "", "", smb1.ErrToStatus(err)
	}
	newPath, err = sh.fs.Resolve(newName)
	if err != nil {
		return "", "", smb1.ErrToStatus(err)
	}
	return oldPath, newPath, smb1.StatusOK
}

func handleRename(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	rr, err := smb1.ParseRename(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if !tc.writeable {
		return smb1.StatusAccessDenied
	}
	sh := tc.share
	oldPath, newPath, status := renamePaths(sh, rr.OldName, rr.NewName)
	if status != smb1.StatusOK {
		return status
	}
	st, err := sh.fs.Lstat(oldPath)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	if status := renameConflict(c.server, st, oldPath); status != smb1.StatusOK {
		return status
	}
	// RENAME never overwrites an existing target.
	if _, err := sh.fs.Lstat(newPath); err == nil {
		return smb1.StatusObjectNameCollision
	}
	if err := sh.fs.Rename(oldPath, newPath); err != nil {
		return smb1.ErrToStatus(err)
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func handleNTRename(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	rr, err := smb1.ParseNTRename(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if !tc.writeable {
		return smb1.StatusAccessDenied
	}
	sh := tc.share
	oldPath, newPath, status := renamePaths(sh, rr.OldName, rr.NewName)
	if status != smb1.StatusOK {
		return status
	}

	switch rr.InformationLevel {
	case smb1.NTRenameSetLinkInfo:
		if err := sh.fs.Link(oldPath, newPath); err != nil {
			return smb1.ErrToStatus(err)
		}
	case smb1.NTRenameMoveFile:
		st, err := sh.fs.Lstat(oldPath)
		if err != nil {
			return smb1.ErrToStatus(err)
		}
		if status := renameConflict(c.server, st, oldPath); status != smb1.StatusOK {
			return status
		}
		if _, err := sh.fs.Lstat(newPath); err == nil {
			return smb1.StatusObjectNameCollision
		}
		if err := sh.fs.Rename(oldPath, newPath); err != nil {
			return smb1.ErrToStatus(err)
		}
	default:
		return smb1.StatusNotSupported
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func handleQueryInformation(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	name, err := smb1.ParsePathname(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	sh := tc.share
	if sh.vetoed(name) {
		return smb1.StatusObjectNameNotFound
	}
	path, err := sh.fs.Resolve(name)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	st, err := sh.fs.Stat(path)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	qr := smb1.QueryInformationResponse{
		FileAttributes: dosAttributes(sh, path, filepath.Base(path), st),
		LastWriteTime:  st.MTime,
		FileSize:       uint32(st.Size),
	}
	qr.Encode(rsp)
	return smb1.StatusOK
}

func handleSetInformation(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	sr, err := smb1.ParseSetInformation(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if !tc.writeable {
		return smb1.StatusAccessDenied
	}
	sh := tc.share
	if sh.vetoed(sr.Name) {
		return smb1.StatusObjectNameNotFound
	}
	path, err := sh.fs.Resolve(sr.Name)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	st, err := sh.fs.Stat(path)
	if err != nil {
		return smb1.ErrToStatus(err)
	}

	// The read-only bit maps onto the write permission bits; the rest of
	// the attribute word is persisted as an xattr when configured.
	mode := st.Mode & 0o777
	if sr.FileAttributes&smb1.AttrReadonly != 0 {
		mode &^= 0o222
	} else if st.Mode&0o200 == 0 {
		mode |= 0o200
	}
	if mode != st.Mode&0o777 {
		if err := sh.fs.Chmod(path, os.FileMode(mode)); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	stored := uint32(sr.FileAttributes) & uint32(smb1.AttrHidden|smb1.AttrSystem|smb1.AttrArchive)
	if err := sh.fs.SetDosAttributes(path, stored); err != nil {
		return smb1.ErrToStatus(err)
	}
	if !sr.LastWriteTime.IsZero() {
		if err := sh.fs.SetTimes(path, st.ATime, sr.LastWriteTime); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}
