package main

import (
	"errors"
	"io"
	"time"

	"github.com/dmarenin/smb1d/fid"
	"github.com/dmarenin/smb1d/smb1"
)

// maxReadSize bounds a single READ_ANDX; CapLargeReadX lets clients ask
// past their negotiated buffer size.
const maxReadSize = 64 * 1024

func readAt(sh *share, f *fid.File, offset uint64, count uint32) ([]byte, uint32) {
	if f.Access&readDataMask == 0 {
		return nil, smb1.StatusAccessDenied
	}
	if f.IsDirectory {
		return nil, smb1.StatusFileIsADirectory
	}
	if count > maxReadSize {
		count = maxReadSize
	}
	if err := f.CheckIO(offset, uint64(count), false); err != nil {
		return nil, smb1.StatusFileLockConflict
	}

	if f.IsStream {
		data, err := sh.fs.ReadStream(f.Path, f.StreamName)
		if err != nil {
			return nil, smb1.ErrToStatus(err)
		}
		if offset >= uint64(len(data)) {
			return nil, smb1.StatusOK
		}
		end := offset + uint64(count)
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		return data[offset:end], smb1.StatusOK
	}

	buf := make([]byte, count)
	n, err := f.Fd.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, smb1.ErrToStatus(err)
	}
	return buf[:n], smb1.StatusOK
}

func writeAt(s *server, sh *share, f *fid.File, offset uint64, data []byte) (int, uint32) {
	if f.Access&writeDataMask == 0 {
		return 0, smb1.StatusAccessDenied
	}
	if f.IsDirectory {
		return 0, smb1.StatusFileIsADirectory
	}
	if err := f.CheckIO(offset, uint64(len(data)), true); err != nil {
		return 0, smb1.StatusFileLockConflict
	}
	if f.Master != nil {
		s.oplocks.BreakAllLevel2(f.Master)
	}

	if f.IsStream {
		// A write past the stream cap is truncated, not rejected.
		n, err := sh.fs.WriteStreamAt(f.Path, f.StreamName, int64(offset), data)
		if err != nil {
			return 0, smb1.ErrToStatus(err)
		}
		return n, smb1.StatusOK
	}

	n, err := f.Fd.WriteAt(data, int64(offset))
	if err != nil {
		return n, smb1.ErrToStatus(err)
	}
	return n, smb1.StatusOK
}

func handleReadAndX(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.treeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	rr, err := smb1.ParseReadAndX(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	if tc.share.shareType == shareTypePipe {
		return readPipe(c, ss, tc, rr, rsp)
	}

	f, status := fileFor(c.server, ss, tc, rr.FID)
	if status != smb1.StatusOK {
		return status
	}
	defer f.Release()

	data, status := readAt(tc.share, f, rr.Offset, rr.MaxCount)
	if status != smb1.StatusOK {
		return status
	}
	smb1.EncodeReadAndX(rsp, data)
	return smb1.StatusOK
}

func handleReadLegacy(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	rr, err := smb1.ParseRead(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	f, status := fileFor(c.server, ss, tc, rr.FID)
	if status != smb1.StatusOK {
		return status
	}
	defer f.Release()

	data, status := readAt(tc.share, f, uint64(rr.Offset), uint32(rr.Count))
	if status != smb1.StatusOK {
		return status
	}
	smb1.EncodeRead(rsp, data)
	return smb1.StatusOK
}

func handleWriteAndX(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.treeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	wr, err := smb1.ParseWriteAndX(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	if tc.share.shareType == shareTypePipe {
		return writePipe(c, ss, tc, wr, rsp)
	}

	f, status := fileFor(c.server, ss, tc, wr.FID)
	if status != smb1.StatusOK {
		return status
	}
	defer f.Release()

	n, status := writeAt(c.server, tc.share, f, wr.Offset, wr.Data)
	if status != smb1.StatusOK {
		return status
	}
	if wr.WriteMode&smb1.WriteThroughMode != 0 && f.Fd != nil {
		f.Fd.Sync()
	}
	smb1.EncodeWriteAndX(rsp, n)
	return smb1.StatusOK
}

func handleWriteLegacy(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	wr, err := smb1.ParseWrite(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	f, status := fileFor(c.server, ss, tc, wr.FID)
	if status != smb1.StatusOK {
		return status
	}
	defer f.Release()

	// A zero-length core WRITE truncates the file at the offset.
	if len(wr.Data) == 0 {
		if f.Access&writeDataMask == 0 {
			return smb1.StatusAccessDenied
		}
		if err := f.Fd.Truncate(int64(wr.Offset)); err != nil {
			return smb1.ErrToStatus(err)
		}
		smb1.EncodeWriteCount(rsp, 0)
		return smb1.StatusOK
	}

	n, status := writeAt(c.server, tc.share, f, uint64(wr.Offset), wr.Data)
	if status != smb1.StatusOK {
		return status
	}
	smb1.EncodeWriteCount(rsp, n)
	return smb1.StatusOK
}

func handleWriteAndClose(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	wr, err := smb1.ParseWriteAndClose(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	f, status := fileFor(c.server, ss, tc, wr.FID)
	if status != smb1.StatusOK {
		return status
	}
	path := f.Path

	n, status := writeAt(c.server, tc.share, f, uint64(wr.Offset), wr.Data)
	f.Release()
	if status != smb1.StatusOK {
		return status
	}

	if !wr.LastWriteTime.IsZero() {
		tc.share.fs.SetTimes(path, time.Time{}, wr.LastWriteTime)
	}
	if status := c.server.closeOpen(tc, wr.FID); status != smb1.StatusOK {
		return status
	}
	smb1.EncodeWriteCount(rsp, n)
	return smb1.StatusOK
}

func handleLocking(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, tc, status := c.diskTreeFor(req)
	if status != smb1.StatusOK {
		return status
	}
	lr, err := smb1.ParseLocking(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	// An oplock release ack carries no ranges and gets no response.
	if lr.LockType&smb1.LockTypeOplockRelease != 0 {
		return statusDropResponse
	}
	if lr.LockType&(smb1.LockTypeChangeLock|smb1.LockTypeCancelLock) != 0 {
		return smb1.StatusNotSupported
	}

	f, status := fileFor(c.server, ss, tc, lr.FID)
	if status != smb1.StatusOK {
		return status
	}
	defer f.Release()

	for _, r := range lr.Unlocks {
		if err := f.RemoveLock(r.Offset, r.Length, r.PID); err != nil {
			return smb1.StatusRangeNotLocked
		}
	}

	shared := lr.LockType&smb1.LockTypeShared != 0
	for i, r := range lr.Locks {
		err := f.AddLock(r.Offset, r.Length, r.PID, shared)
		if err != nil && lr.Timeout != 0 {
			err = c.waitLock(req.Header().Mid(), f, r, shared, lr.Timeout)
		}
		if err != nil {
			// Locks already granted by this request are rolled back.
			for _, g := range lr.Locks[:i] {
				f.RemoveLock(g.Offset, g.Length, g.PID)
			}
			if err == errLockCancelled {
				return statusDropResponse
			}
			if lr.Timeout == 0 {
				return smb1.StatusLockNotGranted
			}
			return smb1.StatusFileLockConflict
		}
	}

	smb1.EncodeLocking(rsp)
	return smb1.StatusOK
}

const (
	// lockTimeoutInfinite in the LOCKING_ANDX timeout field means the
	// request blocks until the range frees up or it is cancelled.
	lockTimeoutInfinite = 0xffffffff

	lockRetryInterval = 10 * time.Millisecond
)

var errLockCancelled = errors.New("lock wait cancelled")

// waitLock parks a conflicting byte-range lock until the range frees up,
// the client timeout runs out, or an NT_CANCEL names the request's MID.
func (c *connection) waitLock(mid uint16, f *fid.File, r smb1.LockRange, shared bool, timeoutMs uint32) error {
	p := c.trackRequest(mid)
	defer c.untrackRequest(p)

	var expire <-chan time.Time
	if timeoutMs != lockTimeoutInfinite {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		expire = timer.C
	}
	retry := time.NewTicker(lockRetryInterval)
	defer retry.Stop()
	for {
		select {
		case <-retry.C:
			if f.AddLock(r.Offset, r.Length, r.PID, shared) == nil {
				return nil
			}
		case <-expire:
			return fid.ErrLockConflict
		case <-p.cancel:
			return errLockCancelled
		case <-c.closeChan:
			return errLockCancelled
		}
	}
}
