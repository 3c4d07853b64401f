package vfs

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// pageEntries is the number of directory entries buffered per fill, the
// equivalent of one page of raw dirent records.
const pageEntries = 128

// DirStream walks one directory for a FIND search: entries are buffered a
// page at a time, matched against the search pattern, and can be pushed
// back when a response buffer fills mid-batch.
type DirStream struct {
	v       *VFS
	dir     *os.File
	path    string
	Pattern string

	buf    []os.DirEntry
	pos    int
	eof    bool
	dots   int
	resume uint32
}

// OpenDir starts a directory stream over path with the given search
// pattern.
func (v *VFS) OpenDir(path, pattern string) (*DirStream, error) {
	dir, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &DirStream{v: v, dir: dir, path: path, Pattern: pattern}, nil
}

// Path returns the host directory being walked.
func (ds *DirStream) Path() string {
	return ds.path
}

// Close releases the underlying directory.
func (ds *DirStream) Close() error {
	return ds.dir.Close()
}

// ResumeKey returns the running index of the last entry produced.
func (ds *DirStream) ResumeKey() uint32 {
	return ds.resume
}

func (ds *DirStream) fill() error {
	if ds.eof {
		return io.EOF
	}
	ents, err := ds.dir.ReadDir(pageEntries)
	if err == io.EOF || len(ents) == 0 {
		ds.eof = true
		if err == nil || err == io.EOF {
			return io.EOF
		}
	}
	if err != nil && err != io.EOF {
		return err
	}
	ds.buf = ents
	ds.pos = 0
	return nil
}

// Next returns the next entry matching the pattern. io.EOF signals the
// end of the search.
func (ds *DirStream) Next() (string, Stat, error) {
	for ds.dots < 2 {
		name := "."
		if ds.dots == 1 {
			name = ".."
		}
		ds.dots++
		if !MatchPattern(ds.Pattern, name) {
			continue
		}
		st, err := ds.v.Stat(filepath.Join(ds.path, name))
		if err != nil {
			continue
		}
		ds.resume++
		return name, st, nil
	}

	for {
		if ds.pos >= len(ds.buf) {
			if err := ds.fill(); err != nil {
				return "", Stat{}, err
			}
		}
		ent := ds.buf[ds.pos]
		ds.pos++
		if !MatchPattern(ds.Pattern, ent.Name()) {
			continue
		}
		st, err := ds.v.Lstat(filepath.Join(ds.path, ent.Name()))
		if err != nil {
			// Raced with a concurrent unlink; skip the entry.
			continue
		}
		ds.resume++
		return ent.Name(), st, nil
	}
}

// Unread pushes the last produced entry back so the next call to Next
// returns it again. Used when a response buffer fills mid-batch.
func (ds *DirStream) Unread() {
	if ds.pos > 0 {
		ds.pos--
		ds.resume--
	} else if ds.dots > 0 {
		ds.dots--
		ds.resume--
	}
}

// MatchPattern matches a FIND search pattern against a name, ignoring
// case. '*' matches any run, '?' a single character; the DOS metas '<',
// '>' and '"' behave as '*', '?' and '.'.
func MatchPattern(pattern, name string) bool {
	if pattern == "" || pattern == "*" || pattern == "*.*" {
		return true
	}
	return matchPat(strings.ToUpper(pattern), strings.ToUpper(name))
}

func matchPat(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*', '<':
			if matchPat(p[1:], s) {
				return true
			}
			if len(s) == 0 {
				return false
			}
			s = s[1:]
		case '?', '>':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		case '"':
			if len(s) == 0 || s[0] != '.' {
				return false
			}
			p, s = p[1:], s[1:]
		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}
