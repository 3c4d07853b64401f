package smb1

import "strings"

const (
	mangleChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_-!@#$%"
	mangleBase  = len(mangleChars)
	mangleMagic = '~'
)

// Shortname derives the 8.3 alternate name for a long filename. The base is
// the upper-cased first five non-dot characters followed by '~' and a
// two-character checksum over the full name, the extension is the
// upper-cased first three characters after the last dot. Names starting
// with a dot get the placeholder extension. Dot and dot-dot are returned
// unchanged.
func Shortname(name string) string {
	if name == "." || name == ".." {
		return name
	}

	var ext string
	dot := strings.LastIndexByte(name, '.')
	switch {
	case dot == 0:
		ext = "___"
	case dot > 0:
		var b strings.Builder
		for _, c := range name[dot+1:] {
			if c == '.' {
				continue
			}
			b.WriteRune(upperASCII(c))
			if b.Len() >= 3 {
				break
			}
		}
		ext = b.String()
	}

	var base strings.Builder
	body := name
	if body[0] == '.' {
		body = body[1:]
	}
	for _, c := range body {
		if c == '.' {
			continue
		}
		base.WriteRune(upperASCII(c))
		if base.Len() >= 5 {
			break
		}
	}

	csum := 0
	for i := 0; i < len(name); i++ {
		csum += int(name[i])
	}
	csum %= mangleBase * mangleBase

	var out strings.Builder
	out.WriteString(base.String())
	out.WriteByte(mangleMagic)
	out.WriteByte(mangleChars[csum/mangleBase])
	out.WriteByte(mangleChars[csum%mangleBase])
	if dot >= 0 {
		out.WriteByte('.')
		out.WriteString(ext)
	}
	return out.String()
}

func upperASCII(c rune) rune {
	if 'a' <= c && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
