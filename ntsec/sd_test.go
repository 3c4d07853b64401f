package ntsec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapper() *Mapper {
	machine := mustSID("S-1-5-21-1111-2222-3333")
	return &Mapper{Oracle: &LocalOracle{Machine: machine}}
}

func TestSIDEncodeDecode(t *testing.T) {
	s := mustSID("S-1-5-21-1111-2222-3333-1001")
	buf := s.Encode(nil)

	got, n, err := DecodeSID(buf)
	require.NoError(t, err)
	assert.Equal(t, s.Size(), n)
	assert.True(t, s.Equal(got))
	assert.Equal(t, "S-1-5-21-1111-2222-3333-1001", got.String())
}

func TestSIDDecodeShort(t *testing.T) {
	s := mustSID("S-1-5-18")
	buf := s.Encode(nil)
	_, _, err := DecodeSID(buf[:len(buf)-1])
	assert.Error(t, err)
}

func TestSIDRID(t *testing.T) {
	base := mustSID("S-1-5-21-1-2-3")
	user := base.WithRID(1001)
	assert.Equal(t, uint32(1001), user.RID())
	assert.True(t, user.MatchesPrefix(base))
	assert.False(t, base.MatchesPrefix(user))
}

func TestParseSIDRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "S-1", "X-1-5-18", "S-1-5-abc"} {
		_, err := ParseSID(s)
		assert.Error(t, err, s)
	}
}

func TestBuildDescriptorRoundTrip(t *testing.T) {
	m := testMapper()
	secinfo := uint32(OwnerSecInfo | GroupSecInfo | DACLSecInfo)
	d, err := BuildDescriptor(m, 1000, 1000, 0o640, secinfo)
	require.NoError(t, err)
	require.NotNil(t, d.Owner)
	require.NotNil(t, d.Group)
	require.NotNil(t, d.DACL)

	// Self-relative wire round trip.
	blob := d.Encode()
	d2, err := DecodeDescriptor(blob)
	require.NoError(t, err)
	assert.True(t, d.Owner.Equal(d2.Owner))
	assert.True(t, d.Group.Equal(d2.Group))

	sec := ParseDescriptor(m, d2)
	assert.True(t, sec.HasUID)
	assert.True(t, sec.HasGID)
	assert.True(t, sec.HasMode)
	assert.Equal(t, uint32(1000), sec.UID)
	assert.Equal(t, uint32(1000), sec.GID)
	assert.Equal(t, uint32(0o640), sec.Mode)
}

func TestBuildDescriptorOwnerOnly(t *testing.T) {
	m := testMapper()
	d, err := BuildDescriptor(m, 501, 0, 0o755, OwnerSecInfo)
	require.NoError(t, err)
	assert.NotNil(t, d.Owner)
	assert.Nil(t, d.Group)
	assert.Nil(t, d.DACL)

	sec := ParseDescriptor(m, d)
	assert.True(t, sec.HasUID)
	assert.False(t, sec.HasGID)
	assert.False(t, sec.HasMode)
}

func TestDACLModeRoundTrip(t *testing.T) {
	m := testMapper()
	for _, mode := range []uint32{0o777, 0o755, 0o700, 0o644, 0o600, 0o444, 0o000} {
		d, err := BuildDescriptor(m, 1000, 100, mode, OwnerSecInfo|GroupSecInfo|DACLSecInfo)
		require.NoError(t, err)
		assert.Equal(t, mode, DACLToMode(d.DACL, d.Owner, d.Group), "mode %o", mode)
	}
}

func TestCheckAccess(t *testing.T) {
	m := testMapper()
	d, err := BuildDescriptor(m, 1000, 100, 0o640, OwnerSecInfo|GroupSecInfo|DACLSecInfo)
	require.NoError(t, err)

	assert.True(t, CheckAccess(d.DACL, d.Owner, ReadRights|WriteRights))
	assert.True(t, CheckAccess(d.DACL, d.Group, ReadRights))
	assert.False(t, CheckAccess(d.DACL, d.Group, WriteRights))
}

func TestDecodeDescriptorTruncated(t *testing.T) {
	m := testMapper()
	d, err := BuildDescriptor(m, 0, 0, 0o644, OwnerSecInfo|GroupSecInfo|DACLSecInfo)
	require.NoError(t, err)
	blob := d.Encode()
	for _, n := range []int{0, 4, sdHeaderSize - 1, len(blob) - 1} {
		_, err := DecodeDescriptor(blob[:n])
		assert.Error(t, err, "length %d", n)
	}
}
