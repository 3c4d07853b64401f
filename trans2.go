package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmarenin/smb1d/fid"
	"github.com/dmarenin/smb1d/smb1"
	"github.com/dmarenin/smb1d/vfs"
)

func handleFindClose2(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	_, _, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	sid, err := smb1.ParseFid(req, 0)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if _, ok := c.searches.get(sid); !ok {
		return smb1.StatusInvalidHandle
	}
	c.searches.remove(sid)
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func handleTransaction2(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	tr, err := smb1.ParseTrans(req, false)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	sub, err := tr.SubCommand()
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	switch sub {
	case smb1.TRANS2_FIND_FIRST2:
		return trans2FindFirst(c, tc, req, tr, rsp)
	case smb1.TRANS2_FIND_NEXT2:
		return trans2FindNext(c, req, tr, rsp)
	case smb1.TRANS2_QUERY_FS_INFORMATION:
		return trans2QueryFS(c, tc, req, tr, rsp)
	case smb1.TRANS2_SET_FS_INFORMATION:
		return trans2SetFS(tr, rsp)
	case smb1.TRANS2_QUERY_PATH_INFORMATION:
		return trans2QueryPath(c, tc, req, tr, rsp)
	case smb1.TRANS2_QUERY_FILE_INFORMATION:
		return trans2QueryFile(c, ss, tc, req, tr, rsp)
	case smb1.TRANS2_SET_PATH_INFORMATION:
		return trans2SetPath(c, ss, tc, req, tr, rsp)
	case smb1.TRANS2_SET_FILE_INFORMATION:
		return trans2SetFile(c, ss, tc, req, tr, rsp)
	case smb1.TRANS2_CREATE_DIRECTORY:
		return trans2Mkdir(tc, req, tr, rsp)
	case smb1.TRANS2_GET_DFS_REFERRAL:
		return smb1.StatusNotSupported
	default:
		return smb1.StatusNotImplemented
	}
}

func trans2FindFirst(c *connection, tc *treeConnect, req smb1.Request, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	fr, err := smb1.ParseFindFirst(req, tr.Params)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if fr.SearchCount == 0 {
		return smb1.StatusInvalidParameter
	}
	sh := tc.share

	dir, pattern := filepath.Split(strings.ReplaceAll(fr.Pattern, "\\", "/"))
	if pattern == "" {
		pattern = "*"
	}
	dirPath, err := sh.fs.Resolve(dir)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	ds, err := sh.fs.OpenDir(dirPath, pattern)
	if err != nil {
		return smb1.ErrToStatus(err)
	}

	sr := &search{
		tree:    tc,
		stream:  ds,
		level:   fr.InformationLevel,
		unicode: req.Msg.IsUnicode(),
		attrs:   fr.SearchAttributes,
	}
	sid, ok := c.searches.add(sr)
	if !ok {
		ds.Close()
		return smb1.StatusInsufficientResources
	}

	data, count, lastNameOff, end, err := sr.emitBatch(fr.SearchCount, int(tr.MaxDataCount))
	if err != nil {
		c.searches.remove(sid)
		return smb1.ErrToStatus(err)
	}
	if count == 0 && end {
		c.searches.remove(sid)
		return smb1.StatusNoSuchFile
	}
	if fr.Flags&smb1.FindCloseAfterRequest != 0 || (end && fr.Flags&smb1.FindCloseAtEOS != 0) {
		c.searches.remove(sid)
	}
	params := smb1.EncodeFindFirstParams(sid, count, end, lastNameOff)
	smb1.EncodeTrans(rsp, nil, params, data)
	return smb1.StatusOK
}

func trans2FindNext(c *connection, req smb1.Request, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	fr, err := smb1.ParseFindNext(req, tr.Params)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	sr, ok := c.searches.get(fr.SID)
	if !ok {
		return smb1.StatusInvalidHandle
	}

	data, count, lastNameOff, end, err := sr.emitBatch(fr.SearchCount, int(tr.MaxDataCount))
	if err != nil {
		c.searches.remove(fr.SID)
		return smb1.ErrToStatus(err)
	}
	if fr.Flags&smb1.FindCloseAfterRequest != 0 || (end && fr.Flags&smb1.FindCloseAtEOS != 0) {
		c.searches.remove(fr.SID)
	}
	params := smb1.EncodeFindNextParams(count, end, lastNameOff)
	smb1.EncodeTrans(rsp, nil, params, data)
	return smb1.StatusOK
}

// unixCaps is the UNIX extension capability set announced via QUERY_FS.
const unixCaps = smb1.UnixCapFcntlLocks | smb1.UnixCapXattr |
	smb1.UnixCapLargeRead | smb1.UnixCapLargeWrite

func trans2QueryFS(c *connection, tc *treeConnect, req smb1.Request, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 2 {
		return smb1.StatusInvalidParameter
	}
	level := binary.LittleEndian.Uint16(tr.Params[0:2])
	sh := tc.share
	fsstat, err := sh.fs.Statfs()
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	fi := smb1.FSInfo{
		BlockSize:    fsstat.BlockSize,
		TotalBlocks:  fsstat.TotalBlocks,
		FreeBlocks:   fsstat.FreeBlocks,
		AvailBlocks:  fsstat.AvailBlocks,
		TotalFiles:   fsstat.TotalFiles,
		FreeFiles:    fsstat.FreeFiles,
		SerialNumber: sh.serialNo(),
		VolumeLabel:  sh.name,
		Created:      c.server.stats.start,
	}
	unicode := req.Msg.IsUnicode()

	var data []byte
	switch level {
	case smb1.SMB_INFO_ALLOCATION:
		data = smb1.EncodeFSAllocation(fi)
	case smb1.SMB_QUERY_FS_VOLUME_INFO:
		data = smb1.EncodeFSVolume(fi, unicode)
	case smb1.SMB_QUERY_FS_SIZE_INFO:
		data = smb1.EncodeFSSize(fi)
	case smb1.SMB_QUERY_FS_DEVICE_INFO:
		data = smb1.EncodeFSDevice()
	case smb1.SMB_QUERY_FS_ATTRIBUTE_INFO:
		data = smb1.EncodeFSAttribute(unicode)
	case smb1.SMB_QUERY_CIFS_UNIX_INFO:
		data = smb1.EncodeCIFSUnixInfo(unixCaps)
	case smb1.SMB_QUERY_POSIX_FS_INFO:
		data = smb1.EncodePosixFSInfo(fi)
	default:
		return smb1.StatusInvalidLevel
	}
	smb1.EncodeTrans(rsp, nil, nil, data)
	return smb1.StatusOK
}

func trans2SetFS(tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 4 {
		return smb1.StatusInvalidParameter
	}
	level := binary.LittleEndian.Uint16(tr.Params[2:4])
	if level != smb1.SMB_SET_CIFS_UNIX_INFO {
		return smb1.StatusInvalidLevel
	}
	// The client announces its UNIX capability set; nothing to record.
	smb1.EncodeTrans(rsp, nil, nil, nil)
	return smb1.StatusOK
}

func trans2QueryPath(c *connection, tc *treeConnect, req smb1.Request, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 6 {
		return smb1.StatusInvalidParameter
	}
	level := binary.LittleEndian.Uint16(tr.Params[0:2])
	name, _, err := req.String(tr.Params, 6)
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
	st, err := sh.fs.Lstat(path)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	return emitQueryInfo(c, sh, path, name, st, level, req.Msg.IsUnicode(), rsp)
}

func trans2QueryFile(c *connection, ss *session, tc *treeConnect, req smb1.Request, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 4 {
		return smb1.StatusInvalidParameter
	}
	id := binary.LittleEndian.Uint16(tr.Params[0:2])
	level := binary.LittleEndian.Uint16(tr.Params[2:4])

	f, status := fileFor(c.server, ss, tc, id)
	if status != smb1.StatusOK {
		return status
	}
	defer f.Release()

	sh := tc.share
	st, err := sh.fs.Lstat(f.Path)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	return emitQueryInfo(c, sh, f.Path, filepath.Base(f.Path), st, level, req.Msg.IsUnicode(), rsp)
}

func fileInfoOf(c *connection, sh *share, path, name string, st vfs.Stat) smb1.FileInfo {
	fi := smb1.FileInfo{
		CreationTime:   sh.fs.CreationTime(path, st.CTime),
		LastAccessTime: st.ATime,
		LastWriteTime:  st.MTime,
		ChangeTime:     st.CTime,
		Attributes:     uint32(dosAttributes(sh, path, filepath.Base(path), st)),
		AllocationSize: st.AllocationSize(),
		EndOfFile:      uint64(st.Size),
		NumberOfLinks:  uint32(st.Nlink),
		Directory:      st.IsDir(),
		Ino:            st.Ino,
		Name:           name,
	}
	if in := c.server.inodes.Lookup(fid.InodeKey{Dev: st.Dev, Ino: st.Ino}); in != nil {
		fi.DeletePending = in.HasFlags(fid.DeleteOnClose)
	}
	return fi
}

func emitQueryInfo(c *connection, sh *share, path, name string, st vfs.Stat, level uint16, unicode bool, rsp *smb1.Composer) uint32 {
	fi := fileInfoOf(c, sh, path, name, st)

	var data []byte
	switch level {
	case smb1.SMB_INFO_STANDARD:
		data = smb1.EncodeInfoStandard(fi, false)
	case smb1.SMB_INFO_QUERY_EA_SIZE:
		data = smb1.EncodeInfoStandard(fi, true)
	case smb1.SMB_QUERY_FILE_BASIC_INFO:
		data = smb1.EncodeBasicInfo(fi)
	case smb1.SMB_QUERY_FILE_STANDARD_INFO:
		data = smb1.EncodeStandardInfo(fi)
	case smb1.SMB_QUERY_FILE_EA_INFO:
		data = smb1.EncodeEAInfo(fi)
	case smb1.SMB_QUERY_FILE_NAME_INFO:
		data = smb1.EncodeNameInfo(fi, unicode)
	case smb1.SMB_QUERY_FILE_ALL_INFO:
		data = smb1.EncodeAllInfo(fi)
	case smb1.SMB_QUERY_ALT_NAME_INFO:
		data = smb1.EncodeAltNameInfo(fi)
	case smb1.SMB_QUERY_FILE_STREAM_INFO:
		streams, err := sh.fs.ListStreams(path)
		if err != nil {
			streams = nil
		}
		data = smb1.EncodeStreamInfo(fi, streams)
	case smb1.SMB_QUERY_FILE_INTERNAL_INFO:
		data = smb1.EncodeInternalInfo(fi)
	case smb1.SMB_QUERY_FILE_UNIX_BASIC:
		data = unixBasicFromStat(st).Encode()
	case smb1.SMB_QUERY_FILE_UNIX_LINK:
		if !st.IsSymlink() {
			return smb1.StatusInvalidParameter
		}
		target, err := sh.fs.Readlink(path)
		if err != nil {
			return smb1.ErrToStatus(err)
		}
		data = smb1.EncodeUnixLink(target, unicode)
	default:
		return smb1.StatusInvalidLevel
	}
	// A two-byte EA error offset leads the response parameters.
	smb1.EncodeTrans(rsp, nil, []byte{0, 0}, data)
	return smb1.StatusOK
}

// unixNoChange is the sentinel the UNIX_BASIC set payload carries in
// fields that are to be left alone.
const unixNoChange = 0xffffffffffffffff

func applyUnixBasic(sh *share, path string, ub smb1.UnixBasic) uint32 {
	if ub.Permissions != unixNoChange {
		if err := sh.fs.Chmod(path, os.FileMode(ub.Permissions&0o7777)); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	if ub.UID != unixNoChange || ub.GID != unixNoChange {
		uid, gid := -1, -1
		if ub.UID != unixNoChange {
			uid = int(ub.UID)
		}
		if ub.GID != unixNoChange {
			gid = int(ub.GID)
		}
		if err := sh.fs.Chown(path, uid, gid); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	if ub.EndOfFile != unixNoChange {
		if err := sh.fs.Truncate(path, int64(ub.EndOfFile)); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	if !ub.LastAccess.IsZero() || !ub.LastModify.IsZero() {
		if err := sh.fs.SetTimes(path, ub.LastAccess, ub.LastModify); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	return smb1.StatusOK
}

func applyBasicInfo(sh *share, path string, sb smb1.SetBasicInfo) uint32 {
	if sb.Attributes != 0 {
		st, err := sh.fs.Stat(path)
		if err != nil {
			return smb1.ErrToStatus(err)
		}
		mode := st.Mode & 0o777
		if sb.Attributes&smb1.AttrReadonly != 0 {
			mode &^= 0o222
		} else if st.Mode&0o200 == 0 {
			mode |= 0o200
		}
		if mode != st.Mode&0o777 {
			if err := sh.fs.Chmod(path, os.FileMode(mode)); err != nil {
				return smb1.ErrToStatus(err)
			}
		}
		stored := sb.Attributes & uint32(smb1.AttrHidden|smb1.AttrSystem|smb1.AttrArchive)
		if err := sh.fs.SetDosAttributes(path, stored); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	if !sb.CreationTime.IsZero() {
		sh.fs.SetCreationTime(path, sb.CreationTime)
	}
	if !sb.LastAccessTime.IsZero() || !sb.LastWriteTime.IsZero() {
		if err := sh.fs.SetTimes(path, sb.LastAccessTime, sb.LastWriteTime); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	return smb1.StatusOK
}

func trans2SetPath(c *connection, ss *session, tc *treeConnect, req smb1.Request, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 6 {
		return smb1.StatusInvalidParameter
	}
	level := binary.LittleEndian.Uint16(tr.Params[0:2])
	name, _, err := req.String(tr.Params, 6)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if !tc.writeable {
		return smb1.StatusAccessDenied
	}
	sh := tc.share
	if sh.vetoed(name) {
		return smb1.StatusObjectNameNotFound
	}
	path, err := sh.fs.Resolve(name)
	if err != nil {
		return smb1.ErrToStatus(err)
	}

	switch level {
	case smb1.SMB_SET_FILE_BASIC_INFO, smb1.SMB_SET_FILE_BASIC_INFO2:
		sb, err := smb1.DecodeSetBasicInfo(tr.Data)
		if err != nil {
			return smb1.StatusInvalidParameter
		}
		if status := applyBasicInfo(sh, path, sb); status != smb1.StatusOK {
			return status
		}
	case smb1.SMB_SET_FILE_ALLOCATION_INFO, smb1.SMB_SET_FILE_END_OF_FILE_INFO:
		size, err := smb1.DecodeSetSize(tr.Data)
		if err != nil {
			return smb1.StatusInvalidParameter
		}
		if err := sh.fs.Truncate(path, int64(size)); err != nil {
			return smb1.ErrToStatus(err)
		}
	case smb1.SMB_SET_FILE_UNIX_BASIC:
		ub, err := smb1.DecodeUnixBasic(tr.Data)
		if err != nil {
			return smb1.StatusInvalidParameter
		}
		if status := applyUnixBasic(sh, path, ub); status != smb1.StatusOK {
			return status
		}
	case smb1.SMB_SET_FILE_UNIX_LINK:
		target, _, err := req.String(tr.Data, 0)
		if err != nil {
			return smb1.StatusInvalidSMB
		}
		if err := sh.fs.Symlink(target, path); err != nil {
			return smb1.ErrToStatus(err)
		}
	case smb1.SMB_SET_FILE_UNIX_HLINK:
		target, _, err := req.String(tr.Data, 0)
		if err != nil {
			return smb1.StatusInvalidSMB
		}
		oldPath, err := sh.fs.Resolve(target)
		if err != nil {
			return smb1.ErrToStatus(err)
		}
		if err := sh.fs.Link(oldPath, path); err != nil {
			return smb1.ErrToStatus(err)
		}
	case smb1.SMB_POSIX_OPEN:
		return posixOpen(c, ss, tc, req, tr, name, rsp)
	case smb1.SMB_POSIX_UNLINK:
		return posixUnlink(c, sh, path, tr, rsp)
	default:
		return smb1.StatusInvalidLevel
	}
	smb1.EncodeTrans(rsp, nil, []byte{0, 0}, nil)
	return smb1.StatusOK
}

func trans2SetFile(c *connection, ss *session, tc *treeConnect, req smb1.Request, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 4 {
		return smb1.StatusInvalidParameter
	}
	id := binary.LittleEndian.Uint16(tr.Params[0:2])
	level := binary.LittleEndian.Uint16(tr.Params[2:4])
	if !tc.writeable {
		return smb1.StatusAccessDenied
	}

	f, status := fileFor(c.server, ss, tc, id)
	if status != smb1.StatusOK {
		return status
	}
	defer f.Release()
	sh := tc.share

	switch level {
	case smb1.SMB_SET_FILE_BASIC_INFO, smb1.SMB_SET_FILE_BASIC_INFO2:
		sb, err := smb1.DecodeSetBasicInfo(tr.Data)
		if err != nil {
			return smb1.StatusInvalidParameter
		}
		if status := applyBasicInfo(sh, f.Path, sb); status != smb1.StatusOK {
			return status
		}
	case smb1.SMB_SET_FILE_DISPOSITION_INFO, smb1.SMB_SET_FILE_DISPOSITION_INFO2:
		del, err := smb1.DecodeSetDisposition(tr.Data)
		if err != nil {
			return smb1.StatusInvalidParameter
		}
		if f.Access&deleteMask == 0 {
			return smb1.StatusAccessDenied
		}
		flag := uint32(fid.DeleteOnClose)
		if f.IsStream {
			flag = fid.DeleteOnCloseStream
		}
		if del {
			f.Master.SetFlags(flag)
		} else {
			f.Master.ClearFlags(flag)
		}
	case smb1.SMB_SET_FILE_ALLOCATION_INFO, smb1.SMB_SET_FILE_ALLOCATION_INFO2,
		smb1.SMB_SET_FILE_END_OF_FILE_INFO, smb1.SMB_SET_FILE_END_OF_FILE_INFO2:
		size, err := smb1.DecodeSetSize(tr.Data)
		if err != nil {
			return smb1.StatusInvalidParameter
		}
		if f.Access&writeDataMask == 0 {
			return smb1.StatusAccessDenied
		}
		if err := f.Fd.Truncate(int64(size)); err != nil {
			return smb1.ErrToStatus(err)
		}
	case smb1.SMB_SET_FILE_RENAME_INFORMATION:
		sr, err := smb1.DecodeSetRename(tr.Data, req.Msg.IsUnicode())
		if err != nil {
			return smb1.StatusInvalidParameter
		}
		newPath, err := sh.fs.Resolve(sr.Name)
		if err != nil {
			return smb1.ErrToStatus(err)
		}
		if _, err := sh.fs.Lstat(newPath); err == nil && !sr.Overwrite {
			return smb1.StatusObjectNameCollision
		}
		if f.IsDirectory {
			// Moving a directory would invalidate the paths of any
			// handle open below it.
			prefix := f.Path + "/"
			busy := false
			c.server.fids.Each(func(g *fid.File) {
				if strings.HasPrefix(g.Path, prefix) {
					busy = true
				}
			})
			if busy {
				return smb1.StatusAccessDenied
			}
		}
		if err := sh.fs.Rename(f.Path, newPath); err != nil {
			return smb1.ErrToStatus(err)
		}
	case smb1.SMB_SET_FILE_UNIX_BASIC:
		ub, err := smb1.DecodeUnixBasic(tr.Data)
		if err != nil {
			return smb1.StatusInvalidParameter
		}
		if status := applyUnixBasic(sh, f.Path, ub); status != smb1.StatusOK {
			return status
		}
	default:
		return smb1.StatusInvalidLevel
	}
	smb1.EncodeTrans(rsp, nil, []byte{0, 0}, nil)
	return smb1.StatusOK
}

func posixOpen(c *connection, ss *session, tc *treeConnect, req smb1.Request, tr smb1.TransRequest, name string, rsp *smb1.Composer) uint32 {
	po, err := smb1.DecodePosixOpen(tr.Data)
	if err != nil {
		return smb1.StatusInvalidParameter
	}

	disposition := uint32(smb1.FileOpen)
	switch {
	case po.Flags&smb1.PosixOpenFlagCreate != 0 && po.Flags&smb1.PosixOpenFlagExcl != 0:
		disposition = smb1.FileCreate
	case po.Flags&smb1.PosixOpenFlagCreate != 0 && po.Flags&smb1.PosixOpenFlagTruncate != 0:
		disposition = smb1.FileOverwriteIf
	case po.Flags&smb1.PosixOpenFlagCreate != 0:
		disposition = smb1.FileOpenIf
	case po.Flags&smb1.PosixOpenFlagTruncate != 0:
		disposition = smb1.FileOverwrite
	}
	desired := uint32(smb1.GenericRead)
	if tc.writeable {
		desired |= smb1.GenericWrite
	}
	options := uint32(0)
	if po.Flags&smb1.PosixOpenFlagDirectory != 0 {
		options |= smb1.FileDirectoryFile
	}

	res, status := c.server.openFile(ss, tc, openParams{
		name:        name,
		desired:     desired,
		shareAccess: smb1.FileShareRead | smb1.FileShareWrite | smb1.FileShareDelete,
		disposition: disposition,
		options:     options,
		pid:         req.Header().PidLow(),
	})
	if status != smb1.StatusOK {
		return status
	}
	data := smb1.EncodePosixOpenReply(0, res.file.ID, legacyOpenAction(res.action))
	smb1.EncodeTrans(rsp, nil, []byte{0, 0}, data)
	return smb1.StatusOK
}

func posixUnlink(c *connection, sh *share, path string, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	isDir := len(tr.Data) >= 2 && binary.LittleEndian.Uint16(tr.Data[0:2]) == 1
	if isDir {
		if err := sh.fs.Rmdir(path); err != nil {
			return smb1.ErrToStatus(err)
		}
	} else {
		st, err := sh.fs.Lstat(path)
		if err != nil {
			return smb1.ErrToStatus(err)
		}
		if status := deleteConflict(c.server, st); status != smb1.StatusOK {
			return status
		}
		if err := sh.fs.Unlink(path); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	smb1.EncodeTrans(rsp, nil, []byte{0, 0}, nil)
	return smb1.StatusOK
}

func trans2Mkdir(tc *treeConnect, req smb1.Request, tr smb1.TransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 4 {
		return smb1.StatusInvalidParameter
	}
	name, _, err := req.String(tr.Params, 4)
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
	perm := os.FileMode(sh.directoryMask & 0o777)
	if perm == 0 {
		perm = 0o755
	}
	if err := sh.fs.Mkdir(path, perm); err != nil {
		return smb1.ErrToStatus(err)
	}
	smb1.EncodeTrans(rsp, nil, []byte{0, 0}, nil)
	return smb1.StatusOK
}
