package smb1

import (
	"encoding/binary"
)

// TREE_CONNECT_ANDX request flags.
const (
	TreeDisconnectTid = 0x0001
)

// TREE_CONNECT_ANDX optional support bits.
const (
	SupportSearchBits = 0x0001
	SupportInDfs      = 0x0002
)

// TreeConnectRequest names the share the client wants to mount.
type TreeConnectRequest struct {
	Flags    uint16
	Password []byte
	Path     string
	Service  string
}

// ParseTreeConnect decodes a TREE_CONNECT_ANDX request block.
func ParseTreeConnect(req Request) (TreeConnectRequest, error) {
	words, err := req.Words()
	if err != nil {
		return TreeConnectRequest{}, err
	}
	if len(words) < 8 {
		return TreeConnectRequest{}, ErrWrongFormat
	}
	var tc TreeConnectRequest
	tc.Flags = binary.LittleEndian.Uint16(words[4:6])
	pwLen := int(binary.LittleEndian.Uint16(words[6:8]))

	data, err := req.Bytes()
	if err != nil {
		return TreeConnectRequest{}, err
	}
	if pwLen > len(data) {
		return TreeConnectRequest{}, ErrWrongLength
	}
	tc.Password = data[:pwLen]

	dataStart, err := BlockEnd(req.Msg, req.Off)
	if err != nil {
		return TreeConnectRequest{}, err
	}
	dataStart -= len(data)
	off := dataStart + pwLen
	if tc.Path, off, err = req.String(req.Msg, off); err != nil {
		return TreeConnectRequest{}, err
	}
	// The service string is always ASCII regardless of Flags2.UNICODE.
	end := off
	for end < len(req.Msg) && req.Msg[end] != 0 {
		end++
	}
	tc.Service = string(req.Msg[off:end])
	return tc, nil
}

// ShareName extracts the share component from a UNC path of the form
// \\server\share.
func (tc TreeConnectRequest) ShareName() string {
	path := tc.Path
	for len(path) > 0 && (path[0] == '\\' || path[0] == '/') {
		path = path[1:]
	}
	for i := 0; i < len(path); i++ {
		if path[i] == '\\' || path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// TreeConnectResponse reports the mounted service.
type TreeConnectResponse struct {
	OptionalSupport  uint16
	Service          string
	NativeFileSystem string
}

// Encode appends the tree connect response block to the chain.
func (tr TreeConnectResponse) Encode(c *Composer) int {
	words := make([]byte, 2)
	binary.LittleEndian.PutUint16(words, tr.OptionalSupport)

	data := append([]byte(tr.Service), 0)
	dataOff := c.Len() + 1 + 4 + len(words) + 2
	data = append(data, PutString(c.Header().IsUnicode(), dataOff+len(data), tr.NativeFileSystem)...)
	return c.PutAndXBlock(SMB_COM_TREE_CONNECT_ANDX, words, data)
}
