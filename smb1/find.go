package smb1

import (
	"encoding/binary"
	"time"

	"github.com/dmarenin/smb1d/utils"
)

// FindFirstRequest is the decoded TRANS2_FIND_FIRST2 parameter area.
type FindFirstRequest struct {
	SearchAttributes uint16
	SearchCount      uint16
	Flags            uint16
	InformationLevel uint16
	Pattern          string
}

// ParseFindFirst decodes the FIND_FIRST2 parameters.
func ParseFindFirst(req Request, params []byte) (FindFirstRequest, error) {
	if len(params) < 12 {
		return FindFirstRequest{}, ErrWrongFormat
	}
	var fr FindFirstRequest
	fr.SearchAttributes = binary.LittleEndian.Uint16(params[0:2])
	fr.SearchCount = binary.LittleEndian.Uint16(params[2:4])
	fr.Flags = binary.LittleEndian.Uint16(params[4:6])
	fr.InformationLevel = binary.LittleEndian.Uint16(params[6:8])
	var err error
	fr.Pattern, _, err = req.String(params, 12)
	if err != nil {
		return FindFirstRequest{}, err
	}
	return fr, nil
}

// FindNextRequest is the decoded TRANS2_FIND_NEXT2 parameter area.
type FindNextRequest struct {
	SID              uint16
	SearchCount      uint16
	InformationLevel uint16
	ResumeKey        uint32
	Flags            uint16
	Pattern          string
}

// ParseFindNext decodes the FIND_NEXT2 parameters.
func ParseFindNext(req Request, params []byte) (FindNextRequest, error) {
	if len(params) < 12 {
		return FindNextRequest{}, ErrWrongFormat
	}
	var fr FindNextRequest
	fr.SID = binary.LittleEndian.Uint16(params[0:2])
	fr.SearchCount = binary.LittleEndian.Uint16(params[2:4])
	fr.InformationLevel = binary.LittleEndian.Uint16(params[4:6])
	fr.ResumeKey = binary.LittleEndian.Uint32(params[6:10])
	fr.Flags = binary.LittleEndian.Uint16(params[10:12])
	var err error
	fr.Pattern, _, err = req.String(params, 12)
	if err != nil {
		return FindNextRequest{}, err
	}
	return fr, nil
}

// EncodeFindFirstParams builds the FIND_FIRST2 response parameter area.
func EncodeFindFirstParams(sid, count uint16, endOfSearch bool, lastNameOff uint16) []byte {
	params := make([]byte, 10)
	binary.LittleEndian.PutUint16(params[0:2], sid)
	binary.LittleEndian.PutUint16(params[2:4], count)
	if endOfSearch {
		binary.LittleEndian.PutUint16(params[4:6], 1)
	}
	binary.LittleEndian.PutUint16(params[8:10], lastNameOff)
	return params
}

// EncodeFindNextParams builds the FIND_NEXT2 response parameter area.
func EncodeFindNextParams(count uint16, endOfSearch bool, lastNameOff uint16) []byte {
	params := make([]byte, 8)
	binary.LittleEndian.PutUint16(params[0:2], count)
	if endOfSearch {
		binary.LittleEndian.PutUint16(params[2:4], 1)
	}
	binary.LittleEndian.PutUint16(params[6:8], lastNameOff)
	return params
}

// UnixBasic is the SMB_QUERY_FILE_UNIX_BASIC block shared by the UNIX
// extension query, set and find levels.
type UnixBasic struct {
	EndOfFile      uint64
	NumBytes       uint64
	StatusChange   time.Time
	LastAccess     time.Time
	LastModify     time.Time
	UID            uint64
	GID            uint64
	Type           uint32
	DevMajor       uint64
	DevMinor       uint64
	UniqueID       uint64
	Permissions    uint64
	Nlinks         uint64
}

const UnixBasicSize = 100

// Encode serializes the UNIX_BASIC block.
func (ub UnixBasic) Encode() []byte {
	buf := make([]byte, UnixBasicSize)
	binary.LittleEndian.PutUint64(buf[0:8], ub.EndOfFile)
	binary.LittleEndian.PutUint64(buf[8:16], ub.NumBytes)
	binary.LittleEndian.PutUint64(buf[16:24], utils.UnixToFiletime(ub.StatusChange))
	binary.LittleEndian.PutUint64(buf[24:32], utils.UnixToFiletime(ub.LastAccess))
	binary.LittleEndian.PutUint64(buf[32:40], utils.UnixToFiletime(ub.LastModify))
	binary.LittleEndian.PutUint64(buf[40:48], ub.UID)
	binary.LittleEndian.PutUint64(buf[48:56], ub.GID)
	binary.LittleEndian.PutUint32(buf[56:60], ub.Type)
	binary.LittleEndian.PutUint64(buf[60:68], ub.DevMajor)
	binary.LittleEndian.PutUint64(buf[68:76], ub.DevMinor)
	binary.LittleEndian.PutUint64(buf[76:84], ub.UniqueID)
	binary.LittleEndian.PutUint64(buf[84:92], ub.Permissions)
	binary.LittleEndian.PutUint64(buf[92:100], ub.Nlinks)
	return buf
}

// DecodeUnixBasic parses a UNIX_BASIC block.
func DecodeUnixBasic(buf []byte) (UnixBasic, error) {
	if len(buf) < UnixBasicSize {
		return UnixBasic{}, ErrWrongLength
	}
	return UnixBasic{
		EndOfFile:    binary.LittleEndian.Uint64(buf[0:8]),
		NumBytes:     binary.LittleEndian.Uint64(buf[8:16]),
		StatusChange: utils.FiletimeToUnix(binary.LittleEndian.Uint64(buf[16:24])),
		LastAccess:   utils.FiletimeToUnix(binary.LittleEndian.Uint64(buf[24:32])),
		LastModify:   utils.FiletimeToUnix(binary.LittleEndian.Uint64(buf[32:40])),
		UID:          binary.LittleEndian.Uint64(buf[40:48]),
		GID:          binary.LittleEndian.Uint64(buf[48:56]),
		Type:         binary.LittleEndian.Uint32(buf[56:60]),
		DevMajor:     binary.LittleEndian.Uint64(buf[60:68]),
		DevMinor:     binary.LittleEndian.Uint64(buf[68:76]),
		UniqueID:     binary.LittleEndian.Uint64(buf[76:84]),
		Permissions:  binary.LittleEndian.Uint64(buf[84:92]),
		Nlinks:       binary.LittleEndian.Uint64(buf[92:100]),
	}, nil
}

// DirEntry is one directory entry handed to the find serializers.
type DirEntry struct {
	Name           string
	Ino            uint64
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	EndOfFile      uint64
	AllocationSize uint64
	Attributes     uint32
	EASize         uint32
	Unix           *UnixBasic
}

// EncodeFindEntry serializes one directory entry record for the given find
// information level. Records are padded to an 8-byte boundary and carry
// their own length in NextEntryOffset; the caller zeroes the field on the
// final record of a batch.
func EncodeFindEntry(level uint16, unicode bool, e DirEntry, resumeKey uint32) ([]byte, error) {
	var name []byte
	if unicode {
		name = utils.EncodeStringToBytes(e.Name)
	} else {
		name = []byte(e.Name)
	}

	var fixed int
	switch level {
	case SMB_FIND_FILE_DIRECTORY_INFO:
		fixed = 64
	case SMB_FIND_FILE_FULL_DIRECTORY_INFO:
		fixed = 68
	case SMB_FIND_FILE_NAMES_INFO:
		fixed = 12
	case SMB_FIND_FILE_BOTH_DIRECTORY_INFO:
		fixed = 94
	case SMB_FIND_FILE_ID_FULL_DIR_INFO:
		fixed = 80
	case SMB_FIND_FILE_UNIX:
		fixed = 8 + UnixBasicSize
	default:
		return nil, ErrWrongFormat
	}

	size := utils.Roundup(fixed+len(name), 8)
	rec := make([]byte, size)
	binary.LittleEndian.PutUint32(rec[0:4], uint32(size))

	if level == SMB_FIND_FILE_UNIX {
		binary.LittleEndian.PutUint32(rec[4:8], resumeKey)
		if e.Unix == nil {
			return nil, ErrWrongFormat
		}
		copy(rec[8:], e.Unix.Encode())
		copy(rec[fixed:], name)
		return rec, nil
	}

	binary.LittleEndian.PutUint32(rec[4:8], resumeKey)
	if level == SMB_FIND_FILE_NAMES_INFO {
		binary.LittleEndian.PutUint32(rec[8:12], uint32(len(name)))
		copy(rec[12:], name)
		return rec, nil
	}

	binary.LittleEndian.PutUint64(rec[8:16], utils.UnixToFiletime(e.CreationTime))
	binary.LittleEndian.PutUint64(rec[16:24], utils.UnixToFiletime(e.LastAccessTime))
	binary.LittleEndian.PutUint64(rec[24:32], utils.UnixToFiletime(e.LastWriteTime))
	binary.LittleEndian.PutUint64(rec[32:40], utils.UnixToFiletime(e.ChangeTime))
	binary.LittleEndian.PutUint64(rec[40:48], e.EndOfFile)
	binary.LittleEndian.PutUint64(rec[48:56], e.AllocationSize)
	binary.LittleEndian.PutUint32(rec[56:60], e.Attributes)
	binary.LittleEndian.PutUint32(rec[60:64], uint32(len(name)))

	switch level {
	case SMB_FIND_FILE_DIRECTORY_INFO:
		copy(rec[64:], name)
	case SMB_FIND_FILE_FULL_DIRECTORY_INFO:
		binary.LittleEndian.PutUint32(rec[64:68], e.EASize)
		copy(rec[68:], name)
	case SMB_FIND_FILE_BOTH_DIRECTORY_INFO:
		binary.LittleEndian.PutUint32(rec[64:68], e.EASize)
		short := utils.EncodeStringToBytes(Shortname(e.Name))
		if len(short) > 24 {
			short = short[:24]
		}
		rec[68] = uint8(len(short))
		copy(rec[70:94], short)
		copy(rec[94:], name)
	case SMB_FIND_FILE_ID_FULL_DIR_INFO:
		binary.LittleEndian.PutUint32(rec[64:68], e.EASize)
		binary.LittleEndian.PutUint64(rec[72:80], e.Ino)
		copy(rec[80:], name)
	}
	return rec, nil
}

// ZeroNextEntryOffset marks a record as the last of its batch.
func ZeroNextEntryOffset(rec []byte) {
	if len(rec) >= 4 {
		binary.LittleEndian.PutUint32(rec[0:4], 0)
	}
}
