package vfs

import (
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dmarenin/smb1d/utils"
)

const (
	streamPrefix    = "user.stream:"
	dosAttrXattr    = "user.dos_attr"
	createTimeXattr = "user.creation_time"

	// MaxStreamSize caps an alternate data stream held in one xattr.
	MaxStreamSize = 64 * 1024
)

var (
	ErrStreamTooLarge = errors.New("stream exceeds the extended attribute limit")
	ErrNoStream       = errors.New("no such stream")
)

func streamXattr(name string) string {
	return streamPrefix + name
}

// ReadStream returns the contents of the named alternate data stream.
func (v *VFS) ReadStream(path, name string) ([]byte, error) {
	sz, err := unix.Getxattr(path, streamXattr(name), nil)
	if err != nil {
		if err == unix.ENODATA {
			return nil, ErrNoStream
		}
		return nil, err
	}
	buf := make([]byte, sz)
	n, err := unix.Getxattr(path, streamXattr(name), buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// WriteStream replaces the contents of the named alternate data stream.
func (v *VFS) WriteStream(path, name string, data []byte) error {
	if len(data) > MaxStreamSize {
		return ErrStreamTooLarge
	}
	return unix.Setxattr(path, streamXattr(name), data, 0)
}

// WriteStreamAt updates the stream at the given offset, extending it as
// needed. A write that would grow the stream past MaxStreamSize is
// truncated to the cap and reports the short count.
func (v *VFS) WriteStreamAt(path, name string, offset int64, data []byte) (int, error) {
	cur, err := v.ReadStream(path, name)
	if err != nil && err != ErrNoStream {
		return 0, err
	}
	if offset >= MaxStreamSize {
		return 0, nil
	}
	if offset+int64(len(data)) > MaxStreamSize {
		data = data[:MaxStreamSize-offset]
	}
	end := offset + int64(len(data))
	if int64(len(cur)) < end {
		grown := make([]byte, end)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[offset:], data)
	if err := v.WriteStream(path, name, cur); err != nil {
		return 0, err
	}
	return len(data), nil
}

// RemoveStream deletes the named alternate data stream.
func (v *VFS) RemoveStream(path, name string) error {
	err := unix.Removexattr(path, streamXattr(name))
	if err == unix.ENODATA {
		return ErrNoStream
	}
	return err
}

// ListStreams returns the alternate data stream names present on path.
func (v *VFS) ListStreams(path string) ([]string, error) {
	sz, err := unix.Listxattr(path, nil)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sz)
	n, err := unix.Listxattr(path, buf)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, attr := range strings.Split(string(buf[:n]), "\x00") {
		if strings.HasPrefix(attr, streamPrefix) {
			names = append(names, strings.TrimPrefix(attr, streamPrefix))
		}
	}
	return names, nil
}

// DosAttributes returns the stored DOS attribute bits, or 0 when the
// share does not persist them or none are stored.
func (v *VFS) DosAttributes(path string) uint32 {
	if !v.StoreDosAttrs {
		return 0
	}
	var buf [4]byte
	n, err := unix.Getxattr(path, dosAttrXattr, buf[:])
	if err != nil || n < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// SetDosAttributes persists the DOS attribute bits when the share is
// configured to store them.
func (v *VFS) SetDosAttributes(path string, attrs uint32) error {
	if !v.StoreDosAttrs {
		return nil
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], attrs)
	return unix.Setxattr(path, dosAttrXattr, buf[:], 0)
}

// CreationTime returns the stored creation time, falling back to the
// given default when none is stored.
func (v *VFS) CreationTime(path string, fallback time.Time) time.Time {
	if !v.StoreDosAttrs {
		return fallback
	}
	var buf [8]byte
	n, err := unix.Getxattr(path, createTimeXattr, buf[:])
	if err != nil || n < 8 {
		return fallback
	}
	return utils.FiletimeToUnix(binary.LittleEndian.Uint64(buf[:]))
}

// SetCreationTime persists the creation time as a 64-bit file time.
func (v *VFS) SetCreationTime(path string, t time.Time) error {
	if !v.StoreDosAttrs || t.IsZero() {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], utils.UnixToFiletime(t))
	return unix.Setxattr(path, createTimeXattr, buf[:], 0)
}
