package fid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyFile() *File {
	f := NewFile()
	f.MarkReady()
	return f
}

func TestTableBindLookup(t *testing.T) {
	tbl := NewTable()
	f := readyFile()
	id, err := tbl.Bind(f)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id, uint16(StartFID))
	assert.Equal(t, id, f.ID)

	g, err := tbl.Lookup(id)
	require.NoError(t, err)
	assert.Same(t, f, g)
	g.Release()
}

func TestTableLookupUnknown(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Lookup(7)
	assert.ErrorIs(t, err, ErrBadID)
	_, err = tbl.Lookup(65535)
	assert.ErrorIs(t, err, ErrBadID)
}

func TestTableLookupNewFile(t *testing.T) {
	// An id is visible as soon as Bind returns, but the handle must not
	// serve requests until the open is wired up.
	tbl := NewTable()
	f := NewFile()
	id, err := tbl.Bind(f)
	require.NoError(t, err)
	_, err = tbl.Lookup(id)
	assert.ErrorIs(t, err, ErrBadID)

	f.MarkReady()
	g, err := tbl.Lookup(id)
	require.NoError(t, err)
	g.Release()
}

func TestTableUnbind(t *testing.T) {
	tbl := NewTable()
	f := readyFile()
	id, err := tbl.Bind(f)
	require.NoError(t, err)

	g, err := tbl.Unbind(id)
	require.NoError(t, err)
	assert.Same(t, f, g)

	_, err = tbl.Lookup(id)
	assert.ErrorIs(t, err, ErrBadID)
	_, err = tbl.Unbind(id)
	assert.ErrorIs(t, err, ErrBadID)
}

func TestTableUnbindWhileFreeing(t *testing.T) {
	tbl := NewTable()
	f := readyFile()
	id, err := tbl.Bind(f)
	require.NoError(t, err)

	require.True(t, f.StartFreeing())
	_, err = tbl.Unbind(id)
	assert.ErrorIs(t, err, ErrFreeing)
}

func TestTableReusesLowestID(t *testing.T) {
	tbl := NewTable()
	var ids []uint16
	for i := 0; i < 4; i++ {
		id, err := tbl.Bind(readyFile())
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := tbl.Unbind(ids[1])
	require.NoError(t, err)

	id, err := tbl.Bind(readyFile())
	require.NoError(t, err)
	assert.Equal(t, ids[1], id)
}

func TestTableNeverHandsOutZero(t *testing.T) {
	tbl := NewTable()
	for i := 0; i < NROpenDefault; i++ {
		id, err := tbl.Bind(readyFile())
		if err != nil {
			break
		}
		assert.NotZero(t, id)
	}
}

func TestTableGrows(t *testing.T) {
	tbl := NewTable()
	for i := 0; i < NROpenDefault+10; i++ {
		_, err := tbl.Bind(readyFile())
		require.NoError(t, err)
	}
	assert.Equal(t, NROpenDefault+10, tbl.Len())
}

func TestTableIDsSorted(t *testing.T) {
	tbl := NewTable()
	for i := 0; i < 5; i++ {
		_, err := tbl.Bind(readyFile())
		require.NoError(t, err)
	}
	ids := tbl.IDs()
	require.Len(t, ids, 5)
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}
