package main

import (
	"golang.org/x/sys/unix"

	"github.com/dmarenin/smb1d/smb1"
	"github.com/dmarenin/smb1d/vfs"
)

func unixTypeFromMode(mode uint32) uint32 {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return smb1.UnixTypeDir
	case unix.S_IFLNK:
		return smb1.UnixTypeSymlink
	case unix.S_IFCHR:
		return smb1.UnixTypeCharDev
	case unix.S_IFBLK:
		return smb1.UnixTypeBlkDev
	case unix.S_IFIFO:
		return smb1.UnixTypeFifo
	case unix.S_IFSOCK:
		return smb1.UnixTypeSocket
	}
	return smb1.UnixTypeFile
}

// unixBasicFromStat builds the UNIX_BASIC image of a host stat.
func unixBasicFromStat(st vfs.Stat) smb1.UnixBasic {
	return smb1.UnixBasic{
		EndOfFile:    uint64(st.Size),
		NumBytes:     st.AllocationSize(),
		StatusChange: st.CTime,
		LastAccess:   st.ATime,
		LastModify:   st.MTime,
		UID:          uint64(st.UID),
		GID:          uint64(st.GID),
		Type:         unixTypeFromMode(st.Mode),
		DevMajor:     uint64(unix.Major(st.Rdev)),
		DevMinor:     uint64(unix.Minor(st.Rdev)),
		UniqueID:     st.Ino,
		Permissions:  uint64(st.Mode & 0o7777),
		Nlinks:       uint64(st.Nlink),
	}
}
