// Package ntsec implements the NT security descriptor wire format: SIDs,
// ACLs and descriptors, the translation between a POSIX mode and a
// three-entry DACL, and the mapping between SIDs and host uids/gids.
package ntsec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrBadSID        = errors.New("malformed security identifier")
	ErrBadDescriptor = errors.New("malformed security descriptor")
)

// SID is a security identifier. The wire encoding is revision, sub-authority
// count, a 48-bit big-endian authority, then the sub-authorities as 32-bit
// little-endian values.
type SID struct {
	Revision  uint8
	Authority uint64
	SubAuths  []uint32
}

// Size returns the encoded length in bytes.
func (s *SID) Size() int {
	return 8 + 4*len(s.SubAuths)
}

// Encode appends the binary form of the SID to buf.
func (s *SID) Encode(buf []byte) []byte {
	buf = append(buf, s.Revision, uint8(len(s.SubAuths)))
	var auth [8]byte
	binary.BigEndian.PutUint64(auth[:], s.Authority)
	buf = append(buf, auth[2:]...)
	for _, sa := range s.SubAuths {
		buf = binary.LittleEndian.AppendUint32(buf, sa)
	}
	return buf
}

// DecodeSID parses a binary SID and returns it with the number of bytes
// consumed.
func DecodeSID(b []byte) (*SID, int, error) {
	if len(b) < 8 {
		return nil, 0, ErrBadSID
	}
	n := int(b[1])
	size := 8 + 4*n
	if n > 15 || len(b) < size {
		return nil, 0, ErrBadSID
	}
	s := &SID{Revision: b[0]}
	var auth [8]byte
	copy(auth[2:], b[2:8])
	s.Authority = binary.BigEndian.Uint64(auth[:])
	s.SubAuths = make([]uint32, n)
	for i := range s.SubAuths {
		s.SubAuths[i] = binary.LittleEndian.Uint32(b[8+4*i:])
	}
	return s, size, nil
}

// String renders the SID in the S-1-5-21-... form.
func (s *SID) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "S-%d-%d", s.Revision, s.Authority)
	for _, sa := range s.SubAuths {
		fmt.Fprintf(&b, "-%d", sa)
	}
	return b.String()
}

// ParseSID parses the S-1-5-21-... string form.
func ParseSID(str string) (*SID, error) {
	if !strings.HasPrefix(str, "S-") && !strings.HasPrefix(str, "s-") {
		return nil, ErrBadSID
	}
	parts := strings.Split(str[2:], "-")
	if len(parts) < 2 {
		return nil, ErrBadSID
	}
	rev, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return nil, ErrBadSID
	}
	auth, err := strconv.ParseUint(parts[1], 10, 48)
	if err != nil {
		return nil, ErrBadSID
	}
	s := &SID{Revision: uint8(rev), Authority: auth}
	for _, p := range parts[2:] {
		sa, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, ErrBadSID
		}
		s.SubAuths = append(s.SubAuths, uint32(sa))
	}
	if len(s.SubAuths) > 15 {
		return nil, ErrBadSID
	}
	return s, nil
}

func mustSID(str string) *SID {
	s, err := ParseSID(str)
	if err != nil {
		panic(err)
	}
	return s
}

// Equal reports whether two SIDs are identical.
func (s *SID) Equal(o *SID) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Revision != o.Revision || s.Authority != o.Authority || len(s.SubAuths) != len(o.SubAuths) {
		return false
	}
	for i := range s.SubAuths {
		if s.SubAuths[i] != o.SubAuths[i] {
			return false
		}
	}
	return true
}

// WithRID returns a copy of the SID with rid appended as a final
// sub-authority.
func (s *SID) WithRID(rid uint32) *SID {
	c := &SID{Revision: s.Revision, Authority: s.Authority}
	c.SubAuths = append(append(c.SubAuths, s.SubAuths...), rid)
	return c
}

// RID returns the final sub-authority.
func (s *SID) RID() uint32 {
	if len(s.SubAuths) == 0 {
		return 0
	}
	return s.SubAuths[len(s.SubAuths)-1]
}

// MatchesPrefix reports whether s is base with exactly one extra
// sub-authority appended.
func (s *SID) MatchesPrefix(base *SID) bool {
	if s.Authority != base.Authority || len(s.SubAuths) != len(base.SubAuths)+1 {
		return false
	}
	for i := range base.SubAuths {
		if s.SubAuths[i] != base.SubAuths[i] {
			return false
		}
	}
	return true
}

// Well-known identities.
var (
	SIDEveryone      = mustSID("S-1-1-0")
	SIDCreatorOwner  = mustSID("S-1-3-0")
	SIDCreatorGroup  = mustSID("S-1-3-1")
	SIDNTAuthority   = mustSID("S-1-5")
	SIDAuthenticated = mustSID("S-1-5-11")
	SIDLocalSystem   = mustSID("S-1-5-18")

	// Unix uid and gid trees used when no domain mapping exists.
	SIDUnixUsers  = mustSID("S-1-22-1")
	SIDUnixGroups = mustSID("S-1-22-2")
)
