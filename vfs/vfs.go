// Package vfs adapts a share's directory tree on the host filesystem:
// path resolution confined to the share root, file and directory
// operations, alternate data streams and DOS attributes in extended
// attributes, and filesystem statistics.
package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

var (
	ErrEscapesShare = errors.New("path escapes the share root")
)

// VFS is one share's view of the host filesystem.
type VFS struct {
	Root          string
	StoreDosAttrs bool
}

// New returns a VFS rooted at the given absolute path.
func New(root string, storeDosAttrs bool) *VFS {
	return &VFS{Root: filepath.Clean(root), StoreDosAttrs: storeDosAttrs}
}

// CheckRoot verifies that a share root exists and is a directory, and
// returns its absolute cleaned form.
func CheckRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return "", &os.PathError{Op: "open", Path: abs, Err: unix.ENOTDIR}
	}
	return abs, nil
}

// Resolve converts a wire path into an absolute host path confined to the
// share root. Backslashes are separators on the wire; the cleaned result
// must stay under the root.
func (v *VFS) Resolve(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "/")
	p := filepath.Clean(filepath.Join(v.Root, name))
	if p != v.Root && !strings.HasPrefix(p, v.Root+string(filepath.Separator)) {
		return "", ErrEscapesShare
	}
	return p, nil
}

// Stat is the host stat image used across the server.
type Stat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint64
	Size    int64
	Blksize int64
	Blocks  int64
	ATime   time.Time
	MTime   time.Time
	CTime   time.Time
}

// IsDir reports whether the stat describes a directory.
func (s Stat) IsDir() bool {
	return s.Mode&unix.S_IFMT == unix.S_IFDIR
}

// IsRegular reports whether the stat describes a regular file.
func (s Stat) IsRegular() bool {
	return s.Mode&unix.S_IFMT == unix.S_IFREG
}

// IsSymlink reports whether the stat describes a symbolic link.
func (s Stat) IsSymlink() bool {
	return s.Mode&unix.S_IFMT == unix.S_IFLNK
}

// AllocationSize returns the on-disk footprint in bytes.
func (s Stat) AllocationSize() uint64 {
	return uint64(s.Blocks) * 512
}

func fromUnixStat(st *unix.Stat_t) Stat {
	return Stat{
		Dev:     uint64(st.Dev),
		Ino:     st.Ino,
		Mode:    uint32(st.Mode),
		Nlink:   uint32(st.Nlink),
		UID:     st.Uid,
		GID:     st.Gid,
		Rdev:    uint64(st.Rdev),
		Size:    st.Size,
		Blksize: int64(st.Blksize),
		Blocks:  st.Blocks,
		ATime:   time.Unix(st.Atim.Sec, st.Atim.Nsec),
		MTime:   time.Unix(st.Mtim.Sec, st.Mtim.Nsec),
		CTime:   time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
	}
}

// Stat stats the path, following symlinks.
func (v *VFS) Stat(path string) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Stat{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return fromUnixStat(&st), nil
}

// Lstat stats the path without following a trailing symlink.
func (v *VFS) Lstat(path string) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Stat{}, &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	return fromUnixStat(&st), nil
}

// Fstat stats an open descriptor.
func (v *VFS) Fstat(f *os.File) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return Stat{}, &os.PathError{Op: "fstat", Path: f.Name(), Err: err}
	}
	return fromUnixStat(&st), nil
}

// Open opens the path with the given flags and permission bits.
func (v *VFS) Open(path string, flags int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flags, perm)
}

// Mkdir creates a directory.
func (v *VFS) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

// Rmdir removes an empty directory.
func (v *VFS) Rmdir(path string) error {
	return unix.Rmdir(path)
}

// Unlink removes a file.
func (v *VFS) Unlink(path string) error {
	return unix.Unlink(path)
}

// Rename moves oldpath to newpath.
func (v *VFS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Link creates a hard link.
func (v *VFS) Link(oldpath, newpath string) error {
	return os.Link(oldpath, newpath)
}

// Symlink creates a symbolic link.
func (v *VFS) Symlink(target, path string) error {
	return os.Symlink(target, path)
}

// Readlink reads a symbolic link target.
func (v *VFS) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

// Truncate sets the file size by path.
func (v *VFS) Truncate(path string, size int64) error {
	return os.Truncate(path, size)
}

// Chmod changes the permission bits.
func (v *VFS) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

// Chown changes the owner and group; -1 leaves a field unchanged.
func (v *VFS) Chown(path string, uid, gid int) error {
	return os.Chown(path, uid, gid)
}

// SetTimes updates access and modification times; zero times are left
// unchanged.
func (v *VFS) SetTimes(path string, atime, mtime time.Time) error {
	var ts [2]unix.Timespec
	ts[0] = unix.Timespec{Nsec: unix.UTIME_OMIT}
	ts[1] = unix.Timespec{Nsec: unix.UTIME_OMIT}
	if !atime.IsZero() {
		ts[0] = unix.NsecToTimespec(atime.UnixNano())
	}
	if !mtime.IsZero() {
		ts[1] = unix.NsecToTimespec(mtime.UnixNano())
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, ts[:], 0)
}

// FSStat describes the filesystem holding the share.
type FSStat struct {
	BlockSize   uint64
	TotalBlocks uint64
	FreeBlocks  uint64
	AvailBlocks uint64
	TotalFiles  uint64
	FreeFiles   uint64
}

// Statfs returns the filesystem statistics of the share root.
func (v *VFS) Statfs() (FSStat, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(v.Root, &st); err != nil {
		return FSStat{}, &os.PathError{Op: "statfs", Path: v.Root, Err: err}
	}
	return FSStat{
		BlockSize:   uint64(st.Bsize),
		TotalBlocks: st.Blocks,
		FreeBlocks:  st.Bfree,
		AvailBlocks: st.Bavail,
		TotalFiles:  st.Files,
		FreeFiles:   st.Ffree,
	}, nil
}
