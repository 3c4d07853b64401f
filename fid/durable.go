package fid

import (
	"sync"
	"time"
)

// Snapshot is the stat image recorded when a durable handle is parked. A
// reconnect is honored only when the current stat matches field for
// field.
type Snapshot struct {
	Ino     uint64
	Dev     uint64
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint64
	Size    int64
	ATime   time.Time
	MTime   time.Time
	CTime   time.Time
	Blksize int64
	Blocks  int64
}

// Equal reports whether two snapshots agree on every field.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Ino == o.Ino && s.Dev == o.Dev && s.Mode == o.Mode &&
		s.Nlink == o.Nlink && s.UID == o.UID && s.GID == o.GID &&
		s.Rdev == o.Rdev && s.Size == o.Size &&
		s.ATime.Equal(o.ATime) && s.MTime.Equal(o.MTime) && s.CTime.Equal(o.CTime) &&
		s.Blksize == o.Blksize && s.Blocks == o.Blocks
}

// DurableRecord parks the identity of a durable handle across a
// disconnect.
type DurableRecord struct {
	SessionUID  uint16
	VolatileFID uint16
	Stat        Snapshot
	Path        string

	refs int
}

// DurableTable is the process-wide persistent-handle index. Persistent
// ids come from the same dense bitmap allocator as volatile ones.
type DurableTable struct {
	mu      sync.Mutex
	ids     *Table
	records map[uint16]*DurableRecord
}

// NewDurableTable returns an empty persistent-handle index.
func NewDurableTable() *DurableTable {
	return &DurableTable{
		ids:     NewTable(),
		records: make(map[uint16]*DurableRecord),
	}
}

// Register allocates a persistent id for f and stores the record.
func (t *DurableTable) Register(f *File, sessionUID uint16, stat Snapshot) (uint16, error) {
	placeholder := NewFile()
	placeholder.MarkReady()
	id, err := t.ids.Bind(placeholder)
	if err != nil {
		return 0, err
	}
	rec := &DurableRecord{
		SessionUID:  sessionUID,
		VolatileFID: f.ID,
		Stat:        stat,
		Path:        f.Path,
		refs:        1,
	}
	t.mu.Lock()
	t.records[id] = rec
	t.mu.Unlock()

	f.PersistentID = uint64(id)
	f.IsDurable = true
	return id, nil
}

// Lookup returns the record parked under a persistent id.
func (t *DurableTable) Lookup(id uint16) (*DurableRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.records[id]
	if rec == nil {
		return nil, ErrBadID
	}
	return rec, nil
}

// Reclaim validates the parked record against the current stat and, on a
// match, rebinds it to the new volatile id. A mismatch drops the record.
func (t *DurableTable) Reclaim(id uint16, current Snapshot, volatileFID uint16) (*DurableRecord, error) {
	t.mu.Lock()
	rec := t.records[id]
	t.mu.Unlock()
	if rec == nil {
		return nil, ErrBadID
	}
	if !rec.Stat.Equal(current) {
		t.Remove(id)
		return nil, ErrStaleHandle
	}
	rec.VolatileFID = volatileFID
	return rec, nil
}

// Remove drops a persistent id and its record.
func (t *DurableTable) Remove(id uint16) {
	t.mu.Lock()
	delete(t.records, id)
	t.mu.Unlock()
	t.ids.Unbind(id)
}

// Len returns the number of parked records.
func (t *DurableTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
