package fid

import "errors"

var (
	ErrLockConflict = errors.New("lock range conflict")
	ErrNotLocked    = errors.New("range not locked")
)

// Lock is one byte range held by a File. End is inclusive; a zero-length
// lock occupies no byte and never conflicts.
type Lock struct {
	Start  uint64
	End    uint64
	PID    uint16
	Shared bool
}

func lockRange(offset, length uint64) (Lock, bool) {
	if length == 0 {
		return Lock{}, false
	}
	return Lock{Start: offset, End: offset + length - 1}, true
}

func (l Lock) overlaps(m Lock) bool {
	return l.Start <= m.End && m.Start <= l.End
}

// AddLock installs a byte-range lock after checking every open of the
// same inode for a conflicting range. Two shared locks coexist; anything
// else overlapping from another handle or process conflicts.
func (f *File) AddLock(offset, length uint64, pid uint16, shared bool) error {
	r, ok := lockRange(offset, length)
	if !ok {
		return nil
	}
	r.PID = pid
	r.Shared = shared

	var conflict bool
	check := func(g *File) {
		g.mu.Lock()
		for _, held := range g.locks {
			if !held.overlaps(r) {
				continue
			}
			if g == f && held.PID == pid && held.Shared == shared {
				continue
			}
			if held.Shared && shared {
				continue
			}
			conflict = true
		}
		g.mu.Unlock()
	}
	if f.Master != nil {
		f.Master.Each(check)
	} else {
		check(f)
	}
	if conflict {
		return ErrLockConflict
	}

	f.mu.Lock()
	f.locks = append(f.locks, r)
	f.mu.Unlock()
	return nil
}

// RemoveLock releases the lock matching the exact offset, length and pid.
func (f *File) RemoveLock(offset, length uint64, pid uint16) error {
	r, ok := lockRange(offset, length)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, held := range f.locks {
		if held.Start == r.Start && held.End == r.End && held.PID == pid {
			f.locks = append(f.locks[:i], f.locks[i+1:]...)
			return nil
		}
	}
	return ErrNotLocked
}

// UnlockAll drops every lock held by the handle.
func (f *File) UnlockAll() {
	f.mu.Lock()
	f.locks = nil
	f.mu.Unlock()
}

// Locks returns a snapshot of the held ranges.
func (f *File) Locks() []Lock {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Lock, len(f.locks))
	copy(out, f.locks)
	return out
}

// CheckIO reports whether a read or write of the given range on f would
// violate a lock held by another handle of the same inode. Writes
// conflict with any foreign lock, reads only with exclusive ones.
func (f *File) CheckIO(offset, length uint64, write bool) error {
	r, ok := lockRange(offset, length)
	if !ok {
		return nil
	}
	if f.Master == nil {
		return nil
	}
	var conflict bool
	f.Master.Each(func(g *File) {
		if g == f {
			return
		}
		g.mu.Lock()
		for _, held := range g.locks {
			if held.overlaps(r) && (write || !held.Shared) {
				conflict = true
			}
		}
		g.mu.Unlock()
	})
	if conflict {
		return ErrLockConflict
	}
	return nil
}
