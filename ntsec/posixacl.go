package ntsec

import (
	"encoding/binary"
	"errors"
)

// POSIX ACL wire format carried in the TRANS2 POSIX_ACL info level.

const PosixACLVersion = 1

// ACL entry tags.
const (
	PosixTagUserObj  = 0x01
	PosixTagUser     = 0x02
	PosixTagGroupObj = 0x04
	PosixTagGroup    = 0x08
	PosixTagMask     = 0x10
	PosixTagOther    = 0x20
)

// ACL entry permission bits.
const (
	PosixPermExec  = 0x01
	PosixPermWrite = 0x02
	PosixPermRead  = 0x04
)

// Selectors for which list a query or set addresses.
const (
	PosixACLAccess  = 0x0001
	PosixACLDefault = 0x0002
)

const (
	posixACLHeaderSize = 6
	posixACEWireSize   = 10
)

// NoPosixID marks an entry whose tag carries no qualifying id.
const NoPosixID = ^uint64(0)

var ErrBadPosixACL = errors.New("malformed posix acl")

// PosixACE is one wire ACL entry.
type PosixACE struct {
	Perm uint8
	Tag  uint8
	ID   uint64
}

// PosixACL carries the access and default lists of one file.
type PosixACL struct {
	Access  []PosixACE
	Default []PosixACE
}

// Size returns the encoded length in bytes.
func (a *PosixACL) Size() int {
	return posixACLHeaderSize + posixACEWireSize*(len(a.Access)+len(a.Default))
}

// Encode appends the wire form to buf: a version header with both entry
// counts, the access entries, then the default entries.
func (a *PosixACL) Encode(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, PosixACLVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(a.Access)))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(a.Default)))
	for _, lst := range [][]PosixACE{a.Access, a.Default} {
		for _, e := range lst {
			buf = append(buf, e.Perm, e.Tag)
			buf = binary.LittleEndian.AppendUint64(buf, e.ID)
		}
	}
	return buf
}

// DecodePosixACL parses the wire form.
func DecodePosixACL(b []byte) (*PosixACL, error) {
	if len(b) < posixACLHeaderSize {
		return nil, ErrBadPosixACL
	}
	if binary.LittleEndian.Uint16(b) != PosixACLVersion {
		return nil, ErrBadPosixACL
	}
	nAccess := int(binary.LittleEndian.Uint16(b[2:]))
	nDefault := int(binary.LittleEndian.Uint16(b[4:]))
	if len(b) < posixACLHeaderSize+posixACEWireSize*(nAccess+nDefault) {
		return nil, ErrBadPosixACL
	}
	decode := func(off, n int) []PosixACE {
		ents := make([]PosixACE, n)
		for i := range ents {
			p := b[off+posixACEWireSize*i:]
			ents[i] = PosixACE{
				Perm: p[0],
				Tag:  p[1],
				ID:   binary.LittleEndian.Uint64(p[2:]),
			}
		}
		return ents
	}
	acl := &PosixACL{
		Access:  decode(posixACLHeaderSize, nAccess),
		Default: decode(posixACLHeaderSize+posixACEWireSize*nAccess, nDefault),
	}
	return acl, nil
}

// ACLFromMode synthesizes the minimal access list a plain mode implies.
func ACLFromMode(mode uint32) *PosixACL {
	return &PosixACL{
		Access: []PosixACE{
			{Perm: uint8(mode >> 6 & 7), Tag: PosixTagUserObj, ID: NoPosixID},
			{Perm: uint8(mode >> 3 & 7), Tag: PosixTagGroupObj, ID: NoPosixID},
			{Perm: uint8(mode & 7), Tag: PosixTagOther, ID: NoPosixID},
		},
	}
}

// ModeFromACL folds the owning-class entries of an access list back into
// permission bits.
func ModeFromACL(acl *PosixACL) uint32 {
	var mode uint32
	for _, e := range acl.Access {
		switch e.Tag {
		case PosixTagUserObj:
			mode |= uint32(e.Perm&7) << 6
		case PosixTagGroupObj:
			mode |= uint32(e.Perm&7) << 3
		case PosixTagOther:
			mode |= uint32(e.Perm & 7)
		}
	}
	return mode
}
