package smb1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortnameFits83(t *testing.T) {
	for _, name := range []string{
		"longfilename.txt",
		"Budget Report 2024.xlsx",
		"a.tar.gz",
		".profile",
		"noextension",
	} {
		short := Shortname(name)
		base, ext, hasExt := strings.Cut(short, ".")
		assert.LessOrEqual(t, len(base), 8, name)
		if hasExt {
			assert.LessOrEqual(t, len(ext), 3, name)
		}
		assert.Contains(t, base, "~", name)
		assert.Equal(t, strings.ToUpper(short), short, name)
	}
}

func TestShortnameDotDirs(t *testing.T) {
	assert.Equal(t, ".", Shortname("."))
	assert.Equal(t, "..", Shortname(".."))
}

func TestShortnameDotfile(t *testing.T) {
	// A leading dot is not an extension separator; dotfiles get the
	// placeholder extension.
	short := Shortname(".bashrc")
	assert.True(t, strings.HasSuffix(short, ".___"), short)
	assert.True(t, strings.HasPrefix(short, "BASHR~"), short)
}

func TestShortnameDeterministic(t *testing.T) {
	assert.Equal(t, Shortname("document_one.txt"), Shortname("document_one.txt"))
}

func TestShortnameDistinguishesSiblings(t *testing.T) {
	// Names sharing a prefix differ in the checksum characters.
	assert.NotEqual(t, Shortname("documents_a.txt"), Shortname("documents_b.txt"))
}

func TestShortnameMultipleDots(t *testing.T) {
	short := Shortname("archive.tar.gz")
	assert.True(t, strings.HasSuffix(short, ".GZ"), short)
}
