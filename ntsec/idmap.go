package ntsec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind selects the owner or group side of an identity mapping.
type Kind int

const (
	KindOwner Kind = iota
	KindGroup
)

var ErrNoMapping = errors.New("no identity mapping")

// Oracle resolves an idmap descriptor string to a raw payload: a binary
// SID for id-to-SID descriptors, a 4-byte little-endian id for SID-to-id
// descriptors. ErrNoMapping signals an absent entry.
type Oracle interface {
	Resolve(desc string) ([]byte, error)
}

// Mapper translates between host ids and SIDs through an oracle.
type Mapper struct {
	Oracle Oracle
}

// IDDescriptor renders the oracle key for a host id, "oi:<id>" for owners
// and "gi:<id>" for groups.
func IDDescriptor(id uint32, kind Kind) string {
	if kind == KindOwner {
		return fmt.Sprintf("oi:%d", id)
	}
	return fmt.Sprintf("gi:%d", id)
}

// SIDDescriptor renders the oracle key for a SID, "os:S-..." for owners
// and "gs:S-..." for groups. The authority prints in hex when it does not
// fit 32 bits.
func SIDDescriptor(s *SID, kind Kind) string {
	var b strings.Builder
	if kind == KindOwner {
		b.WriteString("os:")
	} else {
		b.WriteString("gs:")
	}
	fmt.Fprintf(&b, "S-%d", s.Revision)
	if s.Authority <= 0xffffffff {
		fmt.Fprintf(&b, "-%d", s.Authority)
	} else {
		fmt.Fprintf(&b, "-0x%012x", s.Authority)
	}
	for _, sa := range s.SubAuths {
		fmt.Fprintf(&b, "-%d", sa)
	}
	return b.String()
}

// SIDFromID maps a host uid or gid to a SID. An oracle failure is fatal
// for the caller: without the SID no outgoing descriptor can be built.
func (m *Mapper) SIDFromID(id uint32, kind Kind) (*SID, error) {
	blob, err := m.Oracle.Resolve(IDDescriptor(id, kind))
	if err != nil {
		return nil, err
	}
	sid, _, err := DecodeSID(blob)
	return sid, err
}

// IDFromSID maps a SID to a host uid or gid. Callers treat a failure as
// non-fatal and fall back to the share defaults.
func (m *Mapper) IDFromSID(s *SID, kind Kind) (uint32, error) {
	blob, err := m.Oracle.Resolve(SIDDescriptor(s, kind))
	if err != nil {
		return 0, err
	}
	if len(blob) < 4 {
		return 0, ErrNoMapping
	}
	return binary.LittleEndian.Uint32(blob), nil
}

// LocalOracle maps ids against a machine SID without an external daemon.
// Owners get RID 2*uid and groups RID 2*gid+1 under the machine SID; the
// S-1-22 unix trees are also accepted on the way in.
type LocalOracle struct {
	Machine *SID
}

func (o *LocalOracle) Resolve(desc string) ([]byte, error) {
	if len(desc) < 3 || desc[2] != ':' {
		return nil, ErrNoMapping
	}
	key := desc[:2]
	rest := desc[3:]
	switch key {
	case "oi", "gi":
		id64, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return nil, ErrNoMapping
		}
		id := uint32(id64)
		rid := 2 * id
		if key == "gi" {
			rid = 2*id + 1
		}
		return o.Machine.WithRID(rid).Encode(nil), nil
	case "os", "gs":
		sid, err := ParseSID(rest)
		if err != nil {
			return nil, ErrNoMapping
		}
		id, err := o.lookupSID(sid, key == "gs")
		if err != nil {
			return nil, err
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], id)
		return buf[:], nil
	}
	return nil, ErrNoMapping
}

func (o *LocalOracle) lookupSID(sid *SID, group bool) (uint32, error) {
	if sid.MatchesPrefix(o.Machine) {
		rid := sid.RID()
		if group {
			if rid&1 == 0 {
				return 0, ErrNoMapping
			}
			return (rid - 1) / 2, nil
		}
		if rid&1 != 0 {
			return 0, ErrNoMapping
		}
		return rid / 2, nil
	}
	if !group && sid.MatchesPrefix(SIDUnixUsers) {
		return sid.RID(), nil
	}
	if group && sid.MatchesPrefix(SIDUnixGroups) {
		return sid.RID(), nil
	}
	return 0, ErrNoMapping
}
