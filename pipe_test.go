package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarenin/smb1d/rpc"
)

func TestPipeServiceName(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
		ok   bool
	}{
		{"\\srvsvc", "srvsvc", true},
		{"srvsvc", "srvsvc", true},
		{"\\PIPE\\srvsvc", "srvsvc", true},
		{"/pipe/WKSSVC", "wkssvc", true},
		{"\\lsarpc", "lsarpc", true},
		{"\\winreg", "winreg", true},
		{"\\spoolss", "", false},
		{"\\pipe\\", "", false},
		{"", "", false},
	} {
		got, ok := pipeServiceName(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestPipeTable(t *testing.T) {
	pt := newPipeTable()
	p := rpc.NewPipe("srvsvc", nil, rpc.Identity{})

	id, ok := pt.add(p)
	require.True(t, ok)
	assert.NotZero(t, id)
	assert.Same(t, p, pt.get(id))

	assert.True(t, pt.remove(id))
	assert.Nil(t, pt.get(id))
	assert.False(t, pt.remove(id))
}

func TestPipeTableIDsDistinct(t *testing.T) {
	pt := newPipeTable()
	seen := make(map[uint16]bool)
	for i := 0; i < 100; i++ {
		id, ok := pt.add(rpc.NewPipe("srvsvc", nil, rpc.Identity{}))
		require.True(t, ok)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestPipeTableIDWrap(t *testing.T) {
	pt := newPipeTable()
	pt.nextID = 0xfffe

	a, ok := pt.add(rpc.NewPipe("srvsvc", nil, rpc.Identity{}))
	require.True(t, ok)
	assert.Equal(t, uint16(0xfffe), a)

	// 0xffff is never used as a pipe id; allocation wraps to the low end.
	b, ok := pt.add(rpc.NewPipe("srvsvc", nil, rpc.Identity{}))
	require.True(t, ok)
	assert.Equal(t, uint16(1), b)
}
