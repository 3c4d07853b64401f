package fid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attachedPair(t *testing.T) (*InodeTable, *File, *File) {
	t.Helper()
	mft := NewInodeTable()
	key := InodeKey{Dev: 8, Ino: 12345}
	a, b := readyFile(), readyFile()
	mft.Attach(key, a)
	mft.Attach(key, b)
	return mft, a, b
}

func TestAddLockConflict(t *testing.T) {
	_, a, b := attachedPair(t)

	require.NoError(t, a.AddLock(0, 100, 1, false))
	assert.ErrorIs(t, b.AddLock(50, 100, 2, false), ErrLockConflict)
	assert.ErrorIs(t, b.AddLock(99, 1, 2, true), ErrLockConflict)

	// Past the end of the held range.
	assert.NoError(t, b.AddLock(100, 10, 2, false))
}

func TestSharedLocksCoexist(t *testing.T) {
	_, a, b := attachedPair(t)

	require.NoError(t, a.AddLock(0, 100, 1, true))
	assert.NoError(t, b.AddLock(0, 100, 2, true))
	assert.ErrorIs(t, b.AddLock(10, 10, 2, false), ErrLockConflict)
}

func TestZeroLengthLockIsNoop(t *testing.T) {
	_, a, b := attachedPair(t)

	require.NoError(t, a.AddLock(0, ^uint64(0), 1, false))
	assert.NoError(t, b.AddLock(50, 0, 2, false))
	assert.Empty(t, b.Locks())
}

func TestRemoveLockExactMatch(t *testing.T) {
	_, a, _ := attachedPair(t)

	require.NoError(t, a.AddLock(10, 20, 1, false))
	assert.ErrorIs(t, a.RemoveLock(10, 21, 1), ErrNotLocked)
	assert.ErrorIs(t, a.RemoveLock(10, 20, 2), ErrNotLocked)
	assert.NoError(t, a.RemoveLock(10, 20, 1))
	assert.Empty(t, a.Locks())
}

func TestUnlockAll(t *testing.T) {
	_, a, b := attachedPair(t)

	require.NoError(t, a.AddLock(0, 10, 1, false))
	require.NoError(t, a.AddLock(20, 10, 1, false))
	a.UnlockAll()
	assert.Empty(t, a.Locks())
	assert.NoError(t, b.AddLock(0, 30, 2, false))
}

func TestCheckIO(t *testing.T) {
	_, a, b := attachedPair(t)

	require.NoError(t, a.AddLock(0, 100, 1, true))

	// Reads pass through shared locks, writes do not.
	assert.NoError(t, b.CheckIO(0, 10, false))
	assert.ErrorIs(t, b.CheckIO(0, 10, true), ErrLockConflict)

	// The holder itself is never blocked.
	assert.NoError(t, a.CheckIO(0, 10, true))
}

func TestInodeDetachDeleteOnClose(t *testing.T) {
	mft, a, b := attachedPair(t)
	a.Master.SetFlags(DeleteOnClose)

	del, last := mft.Detach(a)
	assert.False(t, del)
	assert.False(t, last)

	del, last = mft.Detach(b)
	assert.True(t, del)
	assert.True(t, last)
	assert.Nil(t, mft.Lookup(InodeKey{Dev: 8, Ino: 12345}))
}
