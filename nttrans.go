package main

import (
	"encoding/binary"
	"os"

	"github.com/dmarenin/smb1d/ntsec"
	"github.com/dmarenin/smb1d/smb1"
)

func handleNTTransact(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	tr, err := smb1.ParseNTTrans(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	switch tr.Function {
	case smb1.NT_TRANSACT_QUERY_SECURITY_DESC:
		return ntQuerySecurity(c, ss, tc, tr, rsp)
	case smb1.NT_TRANSACT_SET_SECURITY_DESC:
		return ntSetSecurity(c, ss, tc, tr, rsp)
	case smb1.NT_TRANSACT_IOCTL, smb1.NT_TRANSACT_NOTIFY_CHANGE:
		return smb1.StatusNotSupported
	}
	return smb1.StatusNotImplemented
}

func ntQuerySecurity(c *connection, ss *session, tc *treeConnect, tr smb1.NTTransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 8 {
		return smb1.StatusInvalidSMB
	}
	id := binary.LittleEndian.Uint16(tr.Params[0:2])
	secinfo := binary.LittleEndian.Uint32(tr.Params[4:8])

	f, status := fileFor(c.server, ss, tc, id)
	if status != smb1.StatusOK {
		return status
	}
	path := f.Path
	f.Release()

	st, err := tc.share.fs.Stat(path)
	if err != nil {
		return smb1.ErrToStatus(err)
	}
	d, err := ntsec.BuildDescriptor(c.server.idmap, st.UID, st.GID, uint32(st.Mode&0o777), secinfo)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	blob := d.Encode()

	length := make([]byte, 4)
	binary.LittleEndian.PutUint32(length, uint32(len(blob)))
	if uint32(len(blob)) > tr.MaxDataCount {
		// The client retries with the length reported here.
		smb1.EncodeNTTrans(rsp, nil, length, nil)
		return smb1.StatusBufferTooSmall
	}
	smb1.EncodeNTTrans(rsp, nil, length, blob)
	return smb1.StatusOK
}

func ntSetSecurity(c *connection, ss *session, tc *treeConnect, tr smb1.NTTransRequest, rsp *smb1.Composer) uint32 {
	if len(tr.Params) < 8 {
		return smb1.StatusInvalidSMB
	}
	id := binary.LittleEndian.Uint16(tr.Params[0:2])

	if !tc.writeable {
		return smb1.StatusAccessDenied
	}
	f, status := fileFor(c.server, ss, tc, id)
	if status != smb1.StatusOK {
		return status
	}
	path := f.Path
	f.Release()

	d, err := ntsec.DecodeDescriptor(tr.Data)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	sec := ntsec.ParseDescriptor(c.server.idmap, d)
	sh := tc.share

	if sec.HasMode {
		if err := sh.fs.Chmod(path, os.FileMode(sec.Mode&0o777)); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	if sec.HasUID || sec.HasGID {
		uid, gid := -1, -1
		if sec.HasUID {
			uid = int(sec.UID)
		}
		if sec.HasGID {
			gid = int(sec.GID)
		}
		if err := sh.fs.Chown(path, uid, gid); err != nil {
			return smb1.ErrToStatus(err)
		}
	}
	smb1.EncodeNTTrans(rsp, nil, nil, nil)
	return smb1.StatusOK
}
