package vfs

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVFS(t *testing.T) *VFS {
	t.Helper()
	return New(t.TempDir(), false)
}

func TestResolve(t *testing.T) {
	v := testVFS(t)
	for _, tc := range []struct {
		wire string
		rel  string
	}{
		{"", ""},
		{"\\", ""},
		{"\\dir\\file.txt", "dir/file.txt"},
		{"dir\\sub\\..\\file", "dir/file"},
		{"\\a\\.\\b", "a/b"},
	} {
		got, err := v.Resolve(tc.wire)
		require.NoError(t, err, tc.wire)
		assert.Equal(t, filepath.Join(v.Root, tc.rel), got, tc.wire)
	}
}

func TestResolveEscape(t *testing.T) {
	v := testVFS(t)
	for _, wire := range []string{"..", "\\..", "\\..\\etc\\passwd", "a\\..\\..\\b"} {
		_, err := v.Resolve(wire)
		assert.ErrorIs(t, err, ErrEscapesShare, wire)
	}
}

func TestCheckRoot(t *testing.T) {
	dir := t.TempDir()
	abs, err := CheckRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, abs)

	_, err = CheckRoot(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = CheckRoot(file)
	assert.Error(t, err)
}

func TestStatKinds(t *testing.T) {
	v := testVFS(t)
	file := filepath.Join(v.Root, "f")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))
	require.NoError(t, v.Mkdir(filepath.Join(v.Root, "d"), 0o755))
	require.NoError(t, v.Symlink("f", filepath.Join(v.Root, "l")))

	st, err := v.Stat(file)
	require.NoError(t, err)
	assert.True(t, st.IsRegular())
	assert.False(t, st.IsDir())
	assert.EqualValues(t, 5, st.Size)
	assert.NotZero(t, st.Ino)

	st, err = v.Stat(filepath.Join(v.Root, "d"))
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	// Stat follows the link, Lstat does not.
	st, err = v.Stat(filepath.Join(v.Root, "l"))
	require.NoError(t, err)
	assert.True(t, st.IsRegular())
	st, err = v.Lstat(filepath.Join(v.Root, "l"))
	require.NoError(t, err)
	assert.True(t, st.IsSymlink())
}

func TestFstatMatchesStat(t *testing.T) {
	v := testVFS(t)
	path := filepath.Join(v.Root, "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	f, err := v.Open(path, os.O_RDONLY, 0)
	require.NoError(t, err)
	defer f.Close()

	fst, err := v.Fstat(f)
	require.NoError(t, err)
	st, err := v.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, st.Ino, fst.Ino)
	assert.Equal(t, st.Dev, fst.Dev)
}

func TestRenameUnlinkRmdir(t *testing.T) {
	v := testVFS(t)
	old := filepath.Join(v.Root, "old")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))

	renamed := filepath.Join(v.Root, "new")
	require.NoError(t, v.Rename(old, renamed))
	_, err := v.Stat(old)
	assert.Error(t, err)
	require.NoError(t, v.Unlink(renamed))

	dir := filepath.Join(v.Root, "d")
	require.NoError(t, v.Mkdir(dir, 0o755))
	require.NoError(t, v.Rmdir(dir))
	_, err = v.Stat(dir)
	assert.Error(t, err)
}

func TestTruncateAndTimes(t *testing.T) {
	v := testVFS(t)
	path := filepath.Join(v.Root, "f")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))
	require.NoError(t, v.Truncate(path, 5))

	st, err := v.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.Size)

	mtime := st.MTime.Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, v.SetTimes(path, time.Time{}, mtime))
	st, err = v.Stat(path)
	require.NoError(t, err)
	assert.True(t, st.MTime.Equal(mtime))
}

func TestStatfs(t *testing.T) {
	v := testVFS(t)
	fs, err := v.Statfs()
	require.NoError(t, err)
	assert.NotZero(t, fs.BlockSize)
	assert.NotZero(t, fs.TotalBlocks)
}

func TestDirStream(t *testing.T) {
	v := testVFS(t)
	for _, name := range []string{"alpha.txt", "beta.txt", "gamma.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(v.Root, name), nil, 0o644))
	}

	ds, err := v.OpenDir(v.Root, "*.txt")
	require.NoError(t, err)
	defer ds.Close()

	var names []string
	for {
		name, st, err := ds.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.True(t, st.IsRegular(), name)
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"alpha.txt", "beta.txt"}, names)
}

func TestDirStreamDots(t *testing.T) {
	v := testVFS(t)
	ds, err := v.OpenDir(v.Root, "*")
	require.NoError(t, err)
	defer ds.Close()

	name, st, err := ds.Next()
	require.NoError(t, err)
	assert.Equal(t, ".", name)
	assert.True(t, st.IsDir())

	name, _, err = ds.Next()
	require.NoError(t, err)
	assert.Equal(t, "..", name)

	_, _, err = ds.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDirStreamUnread(t *testing.T) {
	v := testVFS(t)
	require.NoError(t, os.WriteFile(filepath.Join(v.Root, "only.txt"), nil, 0o644))

	ds, err := v.OpenDir(v.Root, "only.txt")
	require.NoError(t, err)
	defer ds.Close()

	name, _, err := ds.Next()
	require.NoError(t, err)
	require.Equal(t, "only.txt", name)
	key := ds.ResumeKey()

	ds.Unread()
	again, _, err := ds.Next()
	require.NoError(t, err)
	assert.Equal(t, name, again)
	assert.Equal(t, key, ds.ResumeKey())
}

func TestMatchPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern, name string
		want          bool
	}{
		{"*", "anything", true},
		{"*.*", "no_dot_here", true},
		{"", "x", true},
		{"*.txt", "notes.txt", true},
		{"*.txt", "NOTES.TXT", true},
		{"*.txt", "notes.doc", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"report*", "report-final.doc", true},
		{"<.log", "trace.log", true},
		{">>.c", "ab.c", true},
		{">>.c", "abc.c", false},
		{"x\"y", "x.y", true},
		{"x\"y", "xzy", false},
	} {
		assert.Equal(t, tc.want, MatchPattern(tc.pattern, tc.name), "%q ~ %q", tc.pattern, tc.name)
	}
}

func TestDosAttributesDisabled(t *testing.T) {
	v := testVFS(t)
	path := filepath.Join(v.Root, "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	// With attribute storage off, reads report nothing and writes are
	// accepted but dropped.
	assert.Zero(t, v.DosAttributes(path))
	assert.NoError(t, v.SetDosAttributes(path, 0x20))
	assert.Zero(t, v.DosAttributes(path))
}

func TestStreamsRequireXattrs(t *testing.T) {
	v := New(t.TempDir(), true)
	path := filepath.Join(v.Root, "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	if err := v.WriteStream(path, "Zone.Identifier", []byte("[ZoneTransfer]")); err != nil {
		t.Skipf("no xattr support on %s: %v", v.Root, err)
	}

	data, err := v.ReadStream(path, "Zone.Identifier")
	require.NoError(t, err)
	assert.Equal(t, []byte("[ZoneTransfer]"), data)

	names, err := v.ListStreams(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zone.Identifier"}, names)

	_, err = v.ReadStream(path, "missing")
	assert.ErrorIs(t, err, ErrNoStream)

	require.NoError(t, v.RemoveStream(path, "Zone.Identifier"))
	assert.ErrorIs(t, v.RemoveStream(path, "Zone.Identifier"), ErrNoStream)
}

func TestWriteStreamAt(t *testing.T) {
	v := New(t.TempDir(), true)
	path := filepath.Join(v.Root, "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	if err := v.WriteStream(path, "s", []byte("abc")); err != nil {
		t.Skipf("no xattr support on %s: %v", v.Root, err)
	}

	n, err := v.WriteStreamAt(path, "s", 2, []byte("XY"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := v.ReadStream(path, "s")
	require.NoError(t, err)
	assert.Equal(t, []byte("abXY"), data)

	// Growing past the cap truncates the write instead of failing it.
	n, err = v.WriteStreamAt(path, "s", MaxStreamSize-1, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err = v.ReadStream(path, "s")
	require.NoError(t, err)
	assert.Len(t, data, MaxStreamSize)
	assert.Equal(t, byte(1), data[MaxStreamSize-1])

	n, err = v.WriteStreamAt(path, "s", MaxStreamSize, []byte{9})
	require.NoError(t, err)
	assert.Zero(t, n)
}
