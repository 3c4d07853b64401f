package smb1

import (
	"encoding/binary"
	"time"

	"github.com/dmarenin/smb1d/utils"
)

// FileInfo carries the stat fields the query info levels serialize.
type FileInfo struct {
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	Attributes     uint32
	AllocationSize uint64
	EndOfFile      uint64
	NumberOfLinks  uint32
	DeletePending  bool
	Directory      bool
	EASize         uint32
	Ino            uint64
	Name           string
}

// EncodeInfoStandard serializes the legacy SMB_INFO_STANDARD block; withEA
// appends the EA size field of SMB_INFO_QUERY_EA_SIZE.
func EncodeInfoStandard(fi FileInfo, withEA bool) []byte {
	size := 22
	if withEA {
		size = 26
	}
	buf := make([]byte, size)
	d, t := utils.UnixToDosDateTime(fi.CreationTime)
	binary.LittleEndian.PutUint16(buf[0:2], d)
	binary.LittleEndian.PutUint16(buf[2:4], t)
	d, t = utils.UnixToDosDateTime(fi.LastAccessTime)
	binary.LittleEndian.PutUint16(buf[4:6], d)
	binary.LittleEndian.PutUint16(buf[6:8], t)
	d, t = utils.UnixToDosDateTime(fi.LastWriteTime)
	binary.LittleEndian.PutUint16(buf[8:10], d)
	binary.LittleEndian.PutUint16(buf[10:12], t)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(fi.EndOfFile))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(fi.AllocationSize))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(fi.Attributes))
	if withEA {
		binary.LittleEndian.PutUint32(buf[22:26], fi.EASize)
	}
	return buf
}

// EncodeBasicInfo serializes the FILE_BASIC_INFO block.
func EncodeBasicInfo(fi FileInfo) []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint64(buf[0:8], utils.UnixToFiletime(fi.CreationTime))
	binary.LittleEndian.PutUint64(buf[8:16], utils.UnixToFiletime(fi.LastAccessTime))
	binary.LittleEndian.PutUint64(buf[16:24], utils.UnixToFiletime(fi.LastWriteTime))
	binary.LittleEndian.PutUint64(buf[24:32], utils.UnixToFiletime(fi.ChangeTime))
	binary.LittleEndian.PutUint32(buf[32:36], fi.Attributes)
	return buf
}

// EncodeStandardInfo serializes the FILE_STANDARD_INFO block.
func EncodeStandardInfo(fi FileInfo) []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], fi.AllocationSize)
	binary.LittleEndian.PutUint64(buf[8:16], fi.EndOfFile)
	binary.LittleEndian.PutUint32(buf[16:20], fi.NumberOfLinks)
	if fi.DeletePending {
		buf[20] = 1
	}
	if fi.Directory {
		buf[21] = 1
	}
	return buf
}

// EncodeEAInfo serializes the FILE_EA_INFO block.
func EncodeEAInfo(fi FileInfo) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, fi.EASize)
	return buf
}

// EncodeNameInfo serializes the FILE_NAME_INFO block.
func EncodeNameInfo(fi FileInfo, unicode bool) []byte {
	var name []byte
	if unicode {
		name = utils.EncodeStringToBytes(fi.Name)
	} else {
		name = []byte(fi.Name)
	}
	buf := make([]byte, 4+len(name))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(name)))
	copy(buf[4:], name)
	return buf
}

// EncodeAllInfo serializes the FILE_ALL_INFO block.
func EncodeAllInfo(fi FileInfo) []byte {
	buf := make([]byte, 72)
	binary.LittleEndian.PutUint64(buf[0:8], utils.UnixToFiletime(fi.CreationTime))
	binary.LittleEndian.PutUint64(buf[8:16], utils.UnixToFiletime(fi.LastAccessTime))
	binary.LittleEndian.PutUint64(buf[16:24], utils.UnixToFiletime(fi.LastWriteTime))
	binary.LittleEndian.PutUint64(buf[24:32], utils.UnixToFiletime(fi.ChangeTime))
	binary.LittleEndian.PutUint32(buf[32:36], fi.Attributes)
	binary.LittleEndian.PutUint64(buf[40:48], fi.AllocationSize)
	binary.LittleEndian.PutUint64(buf[48:56], fi.EndOfFile)
	binary.LittleEndian.PutUint32(buf[56:60], fi.NumberOfLinks)
	if fi.DeletePending {
		buf[60] = 1
	}
	if fi.Directory {
		buf[61] = 1
	}
	binary.LittleEndian.PutUint32(buf[64:68], fi.EASize)
	return buf
}

// EncodeAltNameInfo serializes the ALT_NAME_INFO block holding the 8.3
// name of the file.
func EncodeAltNameInfo(fi FileInfo) []byte {
	short := utils.EncodeStringToBytes(Shortname(fi.Name))
	buf := make([]byte, 4+len(short))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(short)))
	copy(buf[4:], short)
	return buf
}

// EncodeInternalInfo serializes the FILE_INTERNAL_INFORMATION block.
func EncodeInternalInfo(fi FileInfo) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, fi.Ino)
	return buf
}

// EncodeUnixLink serializes the UNIX_LINK block, the symlink target.
func EncodeUnixLink(target string, unicode bool) []byte {
	return PutString(unicode, 0, target)
}

// EncodeStreamInfo serializes the FILE_STREAM_INFO chain: the unnamed
// data stream followed by one record per named stream.
func EncodeStreamInfo(fi FileInfo, streams []string) []byte {
	var buf []byte
	names := make([]string, 0, len(streams)+1)
	if !fi.Directory {
		names = append(names, "::$DATA")
	}
	for _, s := range streams {
		names = append(names, ":"+s+":$DATA")
	}
	for i, n := range names {
		name := utils.EncodeStringToBytes(n)
		size := utils.Roundup(24+len(name), 8)
		rec := make([]byte, size)
		if i < len(names)-1 {
			binary.LittleEndian.PutUint32(rec[0:4], uint32(size))
		}
		binary.LittleEndian.PutUint32(rec[4:8], uint32(len(name)))
		if i == 0 && !fi.Directory {
			binary.LittleEndian.PutUint64(rec[8:16], fi.EndOfFile)
			binary.LittleEndian.PutUint64(rec[16:24], fi.AllocationSize)
		}
		copy(rec[24:], name)
		buf = append(buf, rec...)
	}
	return buf
}

// SetRenameInfo is the decoded FILE_RENAME_INFORMATION set payload.
type SetRenameInfo struct {
	Overwrite bool
	Name      string
}

// DecodeSetRename parses a FILE_RENAME_INFORMATION set payload.
func DecodeSetRename(buf []byte, unicode bool) (SetRenameInfo, error) {
	if len(buf) < 12 {
		return SetRenameInfo{}, ErrWrongLength
	}
	var sr SetRenameInfo
	sr.Overwrite = buf[0] != 0
	nameLen := int(binary.LittleEndian.Uint32(buf[8:12]))
	if 12+nameLen > len(buf) {
		return SetRenameInfo{}, ErrWrongLength
	}
	name := buf[12 : 12+nameLen]
	if unicode {
		sr.Name = utils.DecodeToString(name)
	} else {
		sr.Name = string(name)
	}
	return sr, nil
}

// SetBasicInfo is the decoded FILE_BASIC_INFO set payload. Zero times mean
// "leave unchanged".
type SetBasicInfo struct {
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	Attributes     uint32
}

// DecodeSetBasicInfo parses a FILE_BASIC_INFO set payload.
func DecodeSetBasicInfo(buf []byte) (SetBasicInfo, error) {
	if len(buf) < 36 {
		return SetBasicInfo{}, ErrWrongLength
	}
	var sb SetBasicInfo
	if ft := binary.LittleEndian.Uint64(buf[0:8]); ft != 0 {
		sb.CreationTime = utils.FiletimeToUnix(ft)
	}
	if ft := binary.LittleEndian.Uint64(buf[8:16]); ft != 0 {
		sb.LastAccessTime = utils.FiletimeToUnix(ft)
	}
	if ft := binary.LittleEndian.Uint64(buf[16:24]); ft != 0 {
		sb.LastWriteTime = utils.FiletimeToUnix(ft)
	}
	if ft := binary.LittleEndian.Uint64(buf[24:32]); ft != 0 {
		sb.ChangeTime = utils.FiletimeToUnix(ft)
	}
	sb.Attributes = binary.LittleEndian.Uint32(buf[32:36])
	return sb, nil
}

// DecodeSetDisposition parses a FILE_DISPOSITION_INFO set payload.
func DecodeSetDisposition(buf []byte) (bool, error) {
	if len(buf) < 1 {
		return false, ErrWrongLength
	}
	return buf[0] != 0, nil
}

// DecodeSetSize parses the 64-bit size shared by the allocation and
// end-of-file set payloads.
func DecodeSetSize(buf []byte) (uint64, error) {
	if len(buf) < 8 {
		return 0, ErrWrongLength
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// PosixOpenRequest is the decoded SMB_POSIX_OPEN set payload.
type PosixOpenRequest struct {
	Flags       uint32
	PosixFlags  uint32
	Mode        uint64
}

// DecodePosixOpen parses an SMB_POSIX_OPEN payload.
func DecodePosixOpen(buf []byte) (PosixOpenRequest, error) {
	if len(buf) < 16 {
		return PosixOpenRequest{}, ErrWrongLength
	}
	return PosixOpenRequest{
		Flags:      binary.LittleEndian.Uint32(buf[0:4]),
		PosixFlags: binary.LittleEndian.Uint32(buf[4:8]),
		Mode:       binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// EncodePosixOpenReply serializes the SMB_POSIX_OPEN response payload.
func EncodePosixOpenReply(oplock uint16, fid uint16, action uint16) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint16(buf[0:2], oplock)
	binary.LittleEndian.PutUint16(buf[2:4], fid)
	binary.LittleEndian.PutUint16(buf[4:6], action)
	// No reply information level follows.
	binary.LittleEndian.PutUint16(buf[6:8], 0xffff)
	return buf
}
