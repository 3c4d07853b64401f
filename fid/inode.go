package fid

import (
	"sync"
)

// Inode flag bits.
const (
	DeleteOnClose = 1 << iota
	DeleteOnCloseStream
)

// inodeBuckets is the bucket count of the master-file table.
const inodeBuckets = 16384

// InodeKey identifies a host inode.
type InodeKey struct {
	Dev uint64
	Ino uint64
}

// Inode is the process-wide record shared by every open of one host
// inode. It carries the delete-on-close flags and the list of live opens
// used for share-mode and lock conflict checks.
type Inode struct {
	Key InodeKey

	mu    sync.Mutex
	refs  int
	flags uint32
	files []*File
}

// SetFlags sets the given flag bits.
func (in *Inode) SetFlags(flags uint32) {
	in.mu.Lock()
	in.flags |= flags
	in.mu.Unlock()
}

// ClearFlags clears the given flag bits.
func (in *Inode) ClearFlags(flags uint32) {
	in.mu.Lock()
	in.flags &^= flags
	in.mu.Unlock()
}

// HasFlags reports whether all given flag bits are set.
func (in *Inode) HasFlags(flags uint32) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.flags&flags == flags
}

// Each calls fn for every open of the inode. fn runs under the inode
// guard and must not call back into the inode.
func (in *Inode) Each(fn func(*File)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, f := range in.files {
		fn(f)
	}
}

// Opens returns the number of live opens.
func (in *Inode) Opens() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.files)
}

func (in *Inode) attach(f *File) {
	in.mu.Lock()
	in.files = append(in.files, f)
	in.mu.Unlock()
}

func (in *Inode) detach(f *File) {
	in.mu.Lock()
	for i, g := range in.files {
		if g == f {
			in.files = append(in.files[:i], in.files[i+1:]...)
			break
		}
	}
	in.mu.Unlock()
}

type inodeBucket struct {
	mu    sync.Mutex
	nodes map[InodeKey]*Inode
}

// InodeTable is the master-file table: one Inode per (device, inode) pair
// with at least one live open.
type InodeTable struct {
	buckets [inodeBuckets]inodeBucket
}

// NewInodeTable returns an empty master-file table.
func NewInodeTable() *InodeTable {
	return &InodeTable{}
}

func (t *InodeTable) bucket(key InodeKey) *inodeBucket {
	h := key.Dev*0x9e3779b97f4a7c15 ^ key.Ino
	h ^= h >> 29
	return &t.buckets[h%inodeBuckets]
}

// Attach finds or creates the Inode for key, takes a holder reference and
// links f into its open list.
func (t *InodeTable) Attach(key InodeKey, f *File) *Inode {
	b := t.bucket(key)
	b.mu.Lock()
	if b.nodes == nil {
		b.nodes = make(map[InodeKey]*Inode)
	}
	in := b.nodes[key]
	if in == nil {
		in = &Inode{Key: key}
		b.nodes[key] = in
	}
	in.refs++
	b.mu.Unlock()

	in.attach(f)
	f.Master = in
	return in
}

// Lookup returns the Inode for key if any open holds it.
func (t *InodeTable) Lookup(key InodeKey) *Inode {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nodes[key]
}

// Detach unlinks f from its Inode and drops the holder reference. When
// this was the last holder it removes the record from the table under the
// bucket guard and reports last; deleteOnClose reports whether the
// delete-on-close flag was set. The caller unlinks the path after Detach
// returns, when the record is already gone and the guard released.
func (t *InodeTable) Detach(f *File) (deleteOnClose bool, last bool) {
	in := f.Master
	if in == nil {
		return false, false
	}
	in.detach(f)
	f.Master = nil

	b := t.bucket(in.Key)
	b.mu.Lock()
	defer b.mu.Unlock()
	in.refs--
	if in.refs > 0 {
		return false, false
	}
	delete(b.nodes, in.Key)
	return in.HasFlags(DeleteOnClose), true
}
