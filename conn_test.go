package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarenin/smb1d/fid"
	"github.com/dmarenin/smb1d/smb1"
)

func TestCancelRequest(t *testing.T) {
	c := &connection{pending: make(map[uint16]*pendingRequest)}

	p := c.trackRequest(7)
	assert.False(t, c.cancelRequest(3))
	require.True(t, c.cancelRequest(7))
	select {
	case <-p.cancel:
	default:
		t.Fatal("cancel channel not closed")
	}

	// Cancelling the same MID again is harmless.
	assert.True(t, c.cancelRequest(7))

	c.untrackRequest(p)
	assert.False(t, c.cancelRequest(7))
}

func lockedPair(t *testing.T) (holder, waiter *fid.File) {
	t.Helper()
	inodes := fid.NewInodeTable()
	key := fid.InodeKey{Dev: 1, Ino: 2}
	holder = fid.NewFile()
	inodes.Attach(key, holder)
	waiter = fid.NewFile()
	inodes.Attach(key, waiter)
	require.NoError(t, holder.AddLock(0, 10, 1, false))
	return holder, waiter
}

func TestWaitLockCancelled(t *testing.T) {
	c := &connection{
		pending:   make(map[uint16]*pendingRequest),
		closeChan: make(chan struct{}),
	}
	_, waiter := lockedPair(t)

	done := make(chan error, 1)
	go func() {
		done <- c.waitLock(9, waiter, smb1.LockRange{PID: 2, Offset: 0, Length: 10}, false, lockTimeoutInfinite)
	}()

	require.Eventually(t, func() bool {
		return c.cancelRequest(9)
	}, time.Second, time.Millisecond)
	assert.Equal(t, errLockCancelled, <-done)
}

func TestWaitLockGrantedAfterRelease(t *testing.T) {
	c := &connection{
		pending:   make(map[uint16]*pendingRequest),
		closeChan: make(chan struct{}),
	}
	holder, waiter := lockedPair(t)

	done := make(chan error, 1)
	go func() {
		done <- c.waitLock(9, waiter, smb1.LockRange{PID: 2, Offset: 0, Length: 10}, false, lockTimeoutInfinite)
	}()

	time.Sleep(3 * lockRetryInterval)
	require.NoError(t, holder.RemoveLock(0, 10, 1))
	assert.NoError(t, <-done)
	assert.NoError(t, waiter.RemoveLock(0, 10, 2))
}

func TestWaitLockTimeout(t *testing.T) {
	c := &connection{
		pending:   make(map[uint16]*pendingRequest),
		closeChan: make(chan struct{}),
	}
	_, waiter := lockedPair(t)

	err := c.waitLock(9, waiter, smb1.LockRange{PID: 2, Offset: 0, Length: 10}, false, 30)
	assert.Equal(t, fid.ErrLockConflict, err)
}
