package smb1

import (
	"encoding/binary"
)

// LockRange is one byte range named in a LOCKING_ANDX request.
type LockRange struct {
	PID    uint16
	Offset uint64
	Length uint64
}

// LockingRequest is the parsed LOCKING_ANDX request.
type LockingRequest struct {
	FID         uint16
	LockType    uint8
	OplockLevel uint8
	Timeout     uint32
	Unlocks     []LockRange
	Locks       []LockRange
}

// ParseLocking decodes a LOCKING_ANDX request block. Range records are
// 10 bytes, or 20 when LockTypeLargeFiles is set.
func ParseLocking(req Request) (LockingRequest, error) {
	words, err := req.Words()
	if err != nil {
		return LockingRequest{}, err
	}
	if len(words) < 12 {
		return LockingRequest{}, ErrWrongFormat
	}
	var lr LockingRequest
	lr.FID = binary.LittleEndian.Uint16(words[4:6])
	lr.LockType = words[6]
	lr.OplockLevel = words[7]
	lr.Timeout = binary.LittleEndian.Uint32(words[8:12])
	nUnlocks := int(binary.LittleEndian.Uint16(words[12:14]))
	nLocks := int(binary.LittleEndian.Uint16(words[14:16]))

	data, err := req.Bytes()
	if err != nil {
		return LockingRequest{}, err
	}
	large := lr.LockType&LockTypeLargeFiles != 0
	recSize := 10
	if large {
		recSize = 20
	}
	if (nUnlocks+nLocks)*recSize > len(data) {
		return LockingRequest{}, ErrWrongLength
	}
	parse := func(rec []byte) LockRange {
		var r LockRange
		r.PID = binary.LittleEndian.Uint16(rec[0:2])
		if large {
			r.Offset = uint64(binary.LittleEndian.Uint32(rec[4:8]))<<32 |
				uint64(binary.LittleEndian.Uint32(rec[8:12]))
			r.Length = uint64(binary.LittleEndian.Uint32(rec[12:16]))<<32 |
				uint64(binary.LittleEndian.Uint32(rec[16:20]))
		} else {
			r.Offset = uint64(binary.LittleEndian.Uint32(rec[2:6]))
			r.Length = uint64(binary.LittleEndian.Uint32(rec[6:10]))
		}
		return r
	}
	for i := 0; i < nUnlocks; i++ {
		lr.Unlocks = append(lr.Unlocks, parse(data[i*recSize:]))
	}
	data = data[nUnlocks*recSize:]
	for i := 0; i < nLocks; i++ {
		lr.Locks = append(lr.Locks, parse(data[i*recSize:]))
	}
	return lr, nil
}

// EncodeLocking appends the empty LOCKING_ANDX response block.
func EncodeLocking(c *Composer) int {
	return c.PutAndXBlock(SMB_COM_LOCKING_ANDX, nil, nil)
}
