package fid

import (
	"math/bits"
	"sync"
	"time"

	"github.com/dmarenin/smb1d/utils"
)

const (
	// NROpenDefault is the initial number of slots in a handle table.
	NROpenDefault = 256

	// BitmapSize caps the table at the 16-bit id space.
	BitmapSize = 65536

	// StartFID is the first id handed out; 0 is reserved.
	StartFID = 1

	// growUnit is the slot granularity of table growth.
	growUnit = 128

	// teardownTimeout bounds the wait for in-flight references during
	// Unbind.
	teardownTimeout = 10 * time.Second
)

// Table allocates dense 16-bit file ids from a bitmap and maps them to
// open files. The server keeps one table for the handles of all its
// sessions, and the durable index keeps another for persistent ids.
type Table struct {
	mu     sync.Mutex
	bitmap []uint64
	slots  []*File
	hint   int
}

// NewTable returns a table sized for NROpenDefault handles.
func NewTable() *Table {
	return &Table{
		bitmap: make([]uint64, NROpenDefault/64),
		slots:  make([]*File, NROpenDefault),
		hint:   StartFID,
	}
}

func (t *Table) findFree() int {
	size := len(t.slots)
	for i := t.hint; i < size; {
		w := t.bitmap[i/64] | (1<<(i%64) - 1)
		if w != ^uint64(0) {
			free := i/64*64 + bits.TrailingZeros64(^w)
			if free < size {
				return free
			}
		}
		i = (i/64 + 1) * 64
	}
	return -1
}

func (t *Table) grow() bool {
	cur := len(t.slots)
	if cur >= BitmapSize {
		return false
	}
	next := int(utils.RoundupPow2(uint32(cur/growUnit+1))) * growUnit
	if next > BitmapSize {
		next = BitmapSize
	}
	bitmap := make([]uint64, next/64)
	copy(bitmap, t.bitmap)
	slots := make([]*File, next)
	copy(slots, t.slots)
	t.bitmap = bitmap
	t.slots = slots
	return true
}

// Bind allocates an id and installs f under it.
func (t *Table) Bind(f *File) (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	free := t.findFree()
	for free < 0 {
		if !t.grow() {
			return 0, ErrTableFull
		}
		free = t.findFree()
	}
	t.bitmap[free/64] |= 1 << (free % 64)
	t.slots[free] = f
	t.hint = free + 1
	f.ID = uint16(free)
	return uint16(free), nil
}

// Lookup returns the file bound to id with a reference taken. Handles in
// teardown or not yet wired up are reported as absent.
func (t *Table) Lookup(id uint16) (*File, error) {
	t.mu.Lock()
	var f *File
	if int(id) < len(t.slots) {
		f = t.slots[id]
	}
	t.mu.Unlock()
	if f == nil {
		return nil, ErrBadID
	}
	if err := f.Acquire(); err != nil {
		return nil, ErrBadID
	}
	return f, nil
}

// Unbind starts teardown of the id, waits for in-flight references to
// drain and removes the slot. The slot is reclaimed even if the wait
// times out; the error reports the expiry.
func (t *Table) Unbind(id uint16) (*File, error) {
	t.mu.Lock()
	var f *File
	if int(id) < len(t.slots) {
		f = t.slots[id]
	}
	t.mu.Unlock()
	if f == nil {
		return nil, ErrBadID
	}
	if !f.StartFreeing() {
		return nil, ErrFreeing
	}
	waitErr := f.WaitIdle(teardownTimeout)

	t.mu.Lock()
	t.bitmap[int(id)/64] &^= 1 << (id % 64)
	t.slots[id] = nil
	if int(id) < t.hint {
		t.hint = int(id)
		if t.hint < StartFID {
			t.hint = StartFID
		}
	}
	t.mu.Unlock()
	return f, waitErr
}

// Each calls fn for every bound file. fn runs under the table lock and
// must not call back into the table.
func (t *Table) Each(fn func(*File)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.slots {
		if f != nil {
			fn(f)
		}
	}
}

// IDs returns the bound ids in ascending order.
func (t *Table) IDs() []uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []uint16
	for i, f := range t.slots {
		if f != nil {
			ids = append(ids, uint16(i))
		}
	}
	return ids
}

// Len returns the number of bound files.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, f := range t.slots {
		if f != nil {
			n++
		}
	}
	return n
}
