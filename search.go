package main

import (
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmarenin/smb1d/smb1"
	"github.com/dmarenin/smb1d/vfs"
)

// maxSearches bounds the directory searches a connection may keep open.
const maxSearches = 256

// search is one FIND_FIRST2 enumeration in progress, addressed by the SID
// handed back to the client.
type search struct {
	sid     uint16
	tree    *treeConnect
	stream  *vfs.DirStream
	level   uint16
	unicode bool
	attrs   uint16
}

// searchTable tracks the open searches of one connection.
type searchTable struct {
	mu       sync.Mutex
	next     uint16
	searches map[uint16]*search
}

func newSearchTable() *searchTable {
	return &searchTable{searches: make(map[uint16]*search)}
}

func (st *searchTable) add(sr *search) (uint16, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.searches) >= maxSearches {
		return 0, false
	}
	sid := st.next
	for {
		sid++
		if sid == 0 {
			continue
		}
		if _, taken := st.searches[sid]; !taken {
			break
		}
	}
	st.next = sid
	sr.sid = sid
	st.searches[sid] = sr
	return sid, true
}

func (st *searchTable) get(sid uint16) (*search, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sr, ok := st.searches[sid]
	return sr, ok
}

func (st *searchTable) remove(sid uint16) {
	st.mu.Lock()
	sr, ok := st.searches[sid]
	delete(st.searches, sid)
	st.mu.Unlock()
	if ok {
		sr.stream.Close()
	}
}

func (st *searchTable) closeAll() {
	st.mu.Lock()
	searches := st.searches
	st.searches = make(map[uint16]*search)
	st.mu.Unlock()
	for _, sr := range searches {
		sr.stream.Close()
	}
}

// dosAttributes derives the DOS attribute word of one entry.
func dosAttributes(sh *share, path, name string, st vfs.Stat) uint16 {
	var attrs uint16
	if st.IsDir() {
		attrs |= smb1.AttrDirectory
	}
	if st.Mode&0o200 == 0 {
		attrs |= smb1.AttrReadonly
	}
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		attrs |= smb1.AttrHidden
	}
	attrs |= uint16(sh.fs.DosAttributes(path))
	if attrs == 0 {
		attrs = smb1.AttrNormal
	}
	return attrs
}

// attrsWanted applies the search-attribute filter: directories and hidden
// entries only appear when asked for.
func attrsWanted(want uint16, attrs uint16) bool {
	if attrs&smb1.AttrDirectory != 0 && want&smb1.SearchAttrDirectory == 0 {
		return false
	}
	if attrs&smb1.AttrHidden != 0 && want&smb1.SearchAttrHidden == 0 {
		return false
	}
	if attrs&smb1.AttrSystem != 0 && want&smb1.SearchAttrSystem == 0 {
		return false
	}
	return true
}

func (sr *search) dirEntry(name string, st vfs.Stat) smb1.DirEntry {
	path := filepath.Join(sr.stream.Path(), name)
	sh := sr.tree.share
	e := smb1.DirEntry{
		Name:           name,
		Ino:            st.Ino,
		CreationTime:   sh.fs.CreationTime(path, st.CTime),
		LastAccessTime: st.ATime,
		LastWriteTime:  st.MTime,
		ChangeTime:     st.CTime,
		EndOfFile:      uint64(st.Size),
		AllocationSize: st.AllocationSize(),
		Attributes:     uint32(dosAttributes(sh, path, name, st)),
	}
	if sr.level == smb1.SMB_FIND_FILE_UNIX {
		ub := unixBasicFromStat(st)
		e.Unix = &ub
	}
	return e
}

// emitBatch serializes directory entries until either maxCount entries
// are produced or the next record would overflow maxData. An entry that
// does not fit is pushed back for the next call. The returned lastNameOff
// is the offset of the final record for the resume-name contract.
func (sr *search) emitBatch(maxCount uint16, maxData int) (data []byte, count uint16, lastNameOff uint16, end bool, err error) {
	var lastEntry int
	for count < maxCount {
		name, st, nerr := sr.stream.Next()
		if nerr == io.EOF {
			end = true
			break
		}
		if nerr != nil {
			err = nerr
			break
		}
		if sr.tree.share.vetoed(name) {
			continue
		}
		attrs := dosAttributes(sr.tree.share, filepath.Join(sr.stream.Path(), name), name, st)
		if !attrsWanted(sr.attrs, attrs) {
			continue
		}
		rec, eerr := smb1.EncodeFindEntry(sr.level, sr.unicode, sr.dirEntry(name, st), sr.stream.ResumeKey())
		if eerr != nil {
			err = eerr
			break
		}
		if len(data)+len(rec) > maxData {
			sr.stream.Unread()
			break
		}
		lastEntry = len(data)
		data = append(data, rec...)
		count++
	}
	if count > 0 {
		// Terminate the chain: the final record points nowhere.
		smb1.ZeroNextEntryOffset(data[lastEntry:])
		lastNameOff = uint16(lastEntry)
		err = nil
	}
	return data, count, lastNameOff, end, err
}
