package ntsec

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// ACE types.
const (
	AceAccessAllowed = 0x00
	AceAccessDenied  = 0x01
)

// Access mask bits.
const (
	FileReadData        = 0x00000001
	FileWriteData       = 0x00000002
	FileAppendData      = 0x00000004
	FileReadEA          = 0x00000008
	FileWriteEA         = 0x00000010
	FileExecute         = 0x00000020
	FileDeleteChild     = 0x00000040
	FileReadAttributes  = 0x00000080
	FileWriteAttributes = 0x00000100
	Delete              = 0x00010000
	ReadControl         = 0x00020000
	WriteDAC            = 0x00040000
	WriteOwner          = 0x00080000
	Synchronize         = 0x00100000
	MaximalAccess       = 0x02000000
	GenericAll          = 0x10000000
	GenericExecute      = 0x20000000
	GenericWrite        = 0x40000000
	GenericRead         = 0x80000000

	ReadRights  = FileReadData | FileReadEA | FileReadAttributes
	WriteRights = FileWriteData | FileAppendData | FileWriteEA | FileWriteAttributes
	ExecRights  = FileExecute

	GenericReadMask  = ReadRights | ReadControl | Synchronize
	GenericWriteMask = WriteRights | ReadControl | Synchronize

	// Masks granted for each mode bit when a DACL is built from a POSIX
	// mode.
	SetReadRights = ReadRights | Delete | ReadControl | Synchronize
	SetWriteRights = WriteRights | FileDeleteChild |
		Delete | ReadControl | WriteDAC | WriteOwner | Synchronize
	SetExecRights = FileReadEA | FileWriteEA | FileExecute |
		FileReadAttributes | FileWriteAttributes |
		Delete | ReadControl | WriteDAC | WriteOwner | Synchronize

	// Floor granted to an ACE whose mode triplet is empty.
	MinimumRights = FileReadEA | FileReadAttributes | ReadControl | Synchronize
)

// Descriptor control flags.
const (
	ControlOwnerDefaulted = 0x0001
	ControlGroupDefaulted = 0x0002
	ControlDACLPresent    = 0x0004
	ControlDACLDefaulted  = 0x0008
	ControlSACLPresent    = 0x0010
	ControlSelfRelative   = 0x8000
)

// Security-information selectors for query and set.
const (
	OwnerSecInfo = 0x00000001
	GroupSecInfo = 0x00000002
	DACLSecInfo  = 0x00000004
	SACLSecInfo  = 0x00000008
)

const (
	sdRevision  = 1
	aclRevision = 2

	sdHeaderSize  = 20
	aclHeaderSize = 8
	aceHeaderSize = 8
)

// ACE is one access-control entry.
type ACE struct {
	Type  uint8
	Flags uint8
	Mask  uint32
	SID   *SID
}

// Size returns the encoded length in bytes.
func (a *ACE) Size() int {
	return aceHeaderSize + a.SID.Size()
}

func (a *ACE) encode(buf []byte) []byte {
	buf = append(buf, a.Type, a.Flags)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(a.Size()))
	buf = binary.LittleEndian.AppendUint32(buf, a.Mask)
	return a.SID.Encode(buf)
}

// ACL is a discretionary access-control list in wire order.
type ACL struct {
	Revision uint16
	ACEs     []ACE
}

// Size returns the encoded length in bytes.
func (l *ACL) Size() int {
	n := aclHeaderSize
	for i := range l.ACEs {
		n += l.ACEs[i].Size()
	}
	return n
}

// Encode appends the binary ACL to buf.
func (l *ACL) Encode(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, l.Revision)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(l.Size()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(l.ACEs)))
	for i := range l.ACEs {
		buf = l.ACEs[i].encode(buf)
	}
	return buf
}

// DecodeACL parses a binary ACL. Every ACE offset is checked against the
// declared ACL size before it is read.
func DecodeACL(b []byte) (*ACL, error) {
	if len(b) < aclHeaderSize {
		return nil, ErrBadDescriptor
	}
	size := int(binary.LittleEndian.Uint16(b[2:]))
	count := int(binary.LittleEndian.Uint32(b[4:]))
	if size < aclHeaderSize || size > len(b) {
		return nil, ErrBadDescriptor
	}
	l := &ACL{Revision: binary.LittleEndian.Uint16(b)}
	off := aclHeaderSize
	for i := 0; i < count; i++ {
		if off+aceHeaderSize > size {
			return nil, ErrBadDescriptor
		}
		aceSize := int(binary.LittleEndian.Uint16(b[off+2:]))
		if aceSize < aceHeaderSize || off+aceSize > size {
			return nil, ErrBadDescriptor
		}
		sid, n, err := DecodeSID(b[off+aceHeaderSize : off+aceSize])
		if err != nil {
			return nil, err
		}
		if aceHeaderSize+n > aceSize {
			return nil, ErrBadDescriptor
		}
		l.ACEs = append(l.ACEs, ACE{
			Type:  b[off],
			Flags: b[off+1],
			Mask:  binary.LittleEndian.Uint32(b[off+4:]),
			SID:   sid,
		})
		off += aceSize
	}
	return l, nil
}

// Descriptor is a self-relative security descriptor.
type Descriptor struct {
	Control uint16
	Owner   *SID
	Group   *SID
	DACL    *ACL
}

// Encode renders the descriptor in self-relative form.
func (d *Descriptor) Encode() []byte {
	size := sdHeaderSize
	ownerOff, groupOff, daclOff := 0, 0, 0
	if d.Owner != nil {
		ownerOff = size
		size += d.Owner.Size()
	}
	if d.Group != nil {
		groupOff = size
		size += d.Group.Size()
	}
	if d.DACL != nil {
		daclOff = size
		size += d.DACL.Size()
	}

	buf := make([]byte, 0, size)
	buf = append(buf, sdRevision, 0)
	buf = binary.LittleEndian.AppendUint16(buf, d.Control|ControlSelfRelative)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ownerOff))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(groupOff))
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(daclOff))
	if d.Owner != nil {
		buf = d.Owner.Encode(buf)
	}
	if d.Group != nil {
		buf = d.Group.Encode(buf)
	}
	if d.DACL != nil {
		buf = d.DACL.Encode(buf)
	}
	return buf
}

// DecodeDescriptor parses a self-relative security descriptor. Absent
// sections come back nil.
func DecodeDescriptor(b []byte) (*Descriptor, error) {
	if len(b) < sdHeaderSize || b[0] != sdRevision {
		return nil, ErrBadDescriptor
	}
	d := &Descriptor{Control: binary.LittleEndian.Uint16(b[2:])}
	ownerOff := int(binary.LittleEndian.Uint32(b[4:]))
	groupOff := int(binary.LittleEndian.Uint32(b[8:]))
	daclOff := int(binary.LittleEndian.Uint32(b[16:]))

	var err error
	if ownerOff != 0 {
		if ownerOff < sdHeaderSize || ownerOff >= len(b) {
			return nil, ErrBadDescriptor
		}
		if d.Owner, _, err = DecodeSID(b[ownerOff:]); err != nil {
			return nil, err
		}
	}
	if groupOff != 0 {
		if groupOff < sdHeaderSize || groupOff >= len(b) {
			return nil, ErrBadDescriptor
		}
		if d.Group, _, err = DecodeSID(b[groupOff:]); err != nil {
			return nil, err
		}
	}
	if daclOff != 0 {
		if daclOff < sdHeaderSize || daclOff >= len(b) {
			return nil, ErrBadDescriptor
		}
		if d.DACL, err = DecodeACL(b[daclOff:]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func modeToMask(mode, bits uint32) uint32 {
	var mask uint32
	if mode&(unix.S_IRUSR|unix.S_IRGRP|unix.S_IROTH)&bits != 0 {
		mask |= SetReadRights
	}
	if mode&(unix.S_IWUSR|unix.S_IWGRP|unix.S_IWOTH)&bits != 0 {
		mask |= SetWriteRights
	}
	if mode&(unix.S_IXUSR|unix.S_IXGRP|unix.S_IXOTH)&bits != 0 {
		mask |= SetExecRights
	}
	return mask
}

func allowedACE(sid *SID, mode, bits uint32) ACE {
	mask := modeToMask(mode, bits)
	if mask == 0 {
		mask = MinimumRights
	}
	return ACE{Type: AceAccessAllowed, Mask: mask, SID: sid}
}

// ChmodDACL builds the three-entry ALLOWED DACL expressing a POSIX mode:
// one ACE each for the owner, group and everyone SIDs.
func ChmodDACL(owner, group *SID, mode uint32) *ACL {
	return &ACL{
		Revision: aclRevision,
		ACEs: []ACE{
			allowedACE(owner, mode, unix.S_IRWXU),
			allowedACE(group, mode, unix.S_IRWXG),
			allowedACE(SIDEveryone, mode, unix.S_IRWXO),
		},
	}
}

const modeRWXAll = unix.S_IRWXU | unix.S_IRWXG | unix.S_IRWXO

// applyACE folds one ACE into the mode. bits is the RWX triplet the ACE's
// principal controls; DENY entries shrink it so later ALLOW entries cannot
// turn the denied bits back on.
func applyACE(mask uint32, aceType uint8, mode, bits uint32) (uint32, uint32) {
	read := mask&GenericRead != 0 || mask&ReadRights == ReadRights
	write := mask&GenericWrite != 0 || mask&WriteRights == WriteRights
	exec := mask&GenericExecute != 0 || mask&ExecRights == ExecRights

	switch aceType {
	case AceAccessDenied:
		if mask&GenericAll != 0 {
			return mode, 0
		}
		if write {
			bits &^= uint32(unix.S_IWUSR | unix.S_IWGRP | unix.S_IWOTH)
		}
		if read {
			bits &^= uint32(unix.S_IRUSR | unix.S_IRGRP | unix.S_IROTH)
		}
		if exec {
			bits &^= uint32(unix.S_IXUSR | unix.S_IXGRP | unix.S_IXOTH)
		}
	case AceAccessAllowed:
		if mask&GenericAll != 0 {
			return mode | (modeRWXAll & bits), bits
		}
		if write {
			mode |= uint32(unix.S_IWUSR|unix.S_IWGRP|unix.S_IWOTH) & bits
		}
		if read {
			mode |= uint32(unix.S_IRUSR|unix.S_IRGRP|unix.S_IROTH) & bits
		}
		if exec {
			mode |= uint32(unix.S_IXUSR|unix.S_IXGRP|unix.S_IXOTH) & bits
		}
	}
	return mode, bits
}

// DACLToMode derives the POSIX permission bits from a DACL. A nil DACL
// grants everything; a DACL with no entries grants nothing. Entries are
// processed in wire order so that DENY before ALLOW masks bits off first.
func DACLToMode(acl *ACL, owner, group *SID) uint32 {
	if acl == nil {
		return modeRWXAll
	}
	var mode uint32
	userBits := uint32(unix.S_IRWXU)
	groupBits := uint32(unix.S_IRWXG)
	otherBits := uint32(modeRWXAll)
	for i := range acl.ACEs {
		ace := &acl.ACEs[i]
		if ace.SID.Equal(owner) {
			mode, userBits = applyACE(ace.Mask, ace.Type, mode, userBits)
		}
		if ace.SID.Equal(group) {
			mode, groupBits = applyACE(ace.Mask, ace.Type, mode, groupBits)
		}
		if ace.SID.Equal(SIDEveryone) || ace.SID.Equal(SIDAuthenticated) {
			mode, otherBits = applyACE(ace.Mask, ace.Type, mode, otherBits)
		}
	}
	return mode
}

// aceGrants evaluates one ACE against the desired access mask. The result
// starts out denied; only an entry that affirmatively satisfies the request
// grants.
func aceGrants(mask uint32, aceType uint8, desired uint32) bool {
	switch aceType {
	case AceAccessDenied:
		if mask&(GenericAll|MaximalAccess) != 0 {
			return false
		}
		if desired&mask&ReadRights != 0 {
			return false
		}
		if desired&mask&WriteRights != 0 {
			return false
		}
		if desired&mask&GenericReadMask != 0 {
			return false
		}
		if desired&mask&GenericWriteMask != 0 {
			return false
		}
		return true
	case AceAccessAllowed:
		if mask&(GenericAll|MaximalAccess) != 0 {
			return false
		}
		if desired&GenericWriteMask != 0 && mask&desired&GenericWriteMask == 0 {
			return false
		}
		if desired&GenericReadMask != 0 && mask&desired&GenericReadMask == 0 {
			return false
		}
		if mask&ReadRights != desired&ReadRights {
			return false
		}
		if mask&WriteRights != desired&WriteRights {
			return false
		}
		return true
	}
	return false
}

// CheckAccess evaluates the DACL for the given principal against a desired
// access mask. The verdict starts denied; entries for other SIDs are
// skipped, and each entry whose SID equals the principal replaces the
// verdict with its own. The walk stops at the first matching entry that
// does not grant, whether it is an ALLOW or a DENY entry.
func CheckAccess(acl *ACL, principal *SID, desired uint32) bool {
	if acl == nil {
		return true
	}
	granted := false
	for i := range acl.ACEs {
		ace := &acl.ACEs[i]
		if !ace.SID.Equal(principal) {
			continue
		}
		granted = aceGrants(ace.Mask, ace.Type, desired)
		if !granted {
			break
		}
	}
	return granted
}
