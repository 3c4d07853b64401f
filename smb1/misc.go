package smb1

import (
	"encoding/binary"
	"time"

	"github.com/dmarenin/smb1d/utils"
)

// ParseFid returns the FID in parameter word n of the current block.
func ParseFid(req Request, n int) (uint16, error) {
	return req.Word(n)
}

// CloseRequest is the parsed CLOSE request.
type CloseRequest struct {
	FID           uint16
	LastWriteTime time.Time
}

// ParseClose decodes a CLOSE request block.
func ParseClose(req Request) (CloseRequest, error) {
	words, err := req.Words()
	if err != nil {
		return CloseRequest{}, err
	}
	if len(words) < 6 {
		return CloseRequest{}, ErrWrongFormat
	}
	var cr CloseRequest
	cr.FID = binary.LittleEndian.Uint16(words[0:2])
	mtime := binary.LittleEndian.Uint32(words[2:6])
	if mtime != 0 && mtime != 0xffffffff {
		cr.LastWriteTime = time.Unix(int64(mtime), 0)
	}
	return cr, nil
}

// ParsePathname decodes the single BufferFormatPathname-prefixed name
// carried by the core directory and file commands.
func ParsePathname(req Request) (string, error) {
	data, err := req.Bytes()
	if err != nil {
		return "", err
	}
	if len(data) < 1 || data[0] != BufferFormatPathname {
		return "", ErrWrongFormat
	}
	start, err := BlockEnd(req.Msg, req.Off)
	if err != nil {
		return "", err
	}
	start -= len(data) - 1
	name, _, err := req.String(req.Msg, start)
	return name, err
}

// DeleteRequest names the files removed by DELETE.
type DeleteRequest struct {
	SearchAttributes uint16
	Name             string
}

// ParseDelete decodes a DELETE request block.
func ParseDelete(req Request) (DeleteRequest, error) {
	attrs, err := req.Word(0)
	if err != nil {
		return DeleteRequest{}, err
	}
	name, err := ParsePathname(req)
	if err != nil {
		return DeleteRequest{}, err
	}
	return DeleteRequest{SearchAttributes: attrs, Name: name}, nil
}

// RenameRequest names the source and target of RENAME and NT_RENAME.
type RenameRequest struct {
	SearchAttributes uint16
	InformationLevel uint16
	OldName          string
	NewName          string
}

func parseTwoNames(req Request) (oldName, newName string, err error) {
	data, err := req.Bytes()
	if err != nil {
		return "", "", err
	}
	if len(data) < 2 || data[0] != BufferFormatPathname {
		return "", "", ErrWrongFormat
	}
	start, err := BlockEnd(req.Msg, req.Off)
	if err != nil {
		return "", "", err
	}
	start -= len(data)
	off := start + 1
	if oldName, off, err = req.String(req.Msg, off); err != nil {
		return "", "", err
	}
	if off >= len(req.Msg) || req.Msg[off] != BufferFormatPathname {
		return "", "", ErrWrongFormat
	}
	newName, _, err = req.String(req.Msg, off+1)
	return oldName, newName, err
}

// ParseRename decodes a RENAME request block.
func ParseRename(req Request) (RenameRequest, error) {
	attrs, err := req.Word(0)
	if err != nil {
		return RenameRequest{}, err
	}
	oldName, newName, err := parseTwoNames(req)
	if err != nil {
		return RenameRequest{}, err
	}
	return RenameRequest{SearchAttributes: attrs, OldName: oldName, NewName: newName}, nil
}

// ParseNTRename decodes an NT_RENAME request block; the information level
// selects rename, hard link or copy semantics.
func ParseNTRename(req Request) (RenameRequest, error) {
	attrs, err := req.Word(0)
	if err != nil {
		return RenameRequest{}, err
	}
	level, err := req.Word(1)
	if err != nil {
		return RenameRequest{}, err
	}
	oldName, newName, err := parseTwoNames(req)
	if err != nil {
		return RenameRequest{}, err
	}
	return RenameRequest{
		SearchAttributes: attrs,
		InformationLevel: level,
		OldName:          oldName,
		NewName:          newName,
	}, nil
}

// QueryInformationResponse is the legacy DOS attribute report.
type QueryInformationResponse struct {
	FileAttributes uint16
	LastWriteTime  time.Time
	FileSize       uint32
}

// Encode appends the QUERY_INFORMATION response block.
func (qr QueryInformationResponse) Encode(c *Composer) int {
	words := make([]byte, 20)
	binary.LittleEndian.PutUint16(words[0:2], qr.FileAttributes)
	if !qr.LastWriteTime.IsZero() {
		binary.LittleEndian.PutUint32(words[2:6], uint32(qr.LastWriteTime.Unix()))
	}
	binary.LittleEndian.PutUint32(words[6:10], qr.FileSize)
	return c.PutBlock(words, nil)
}

// SetInformationRequest is the legacy DOS attribute update.
type SetInformationRequest struct {
	FileAttributes uint16
	LastWriteTime  time.Time
	Name           string
}

// ParseSetInformation decodes a SET_INFORMATION request block.
func ParseSetInformation(req Request) (SetInformationRequest, error) {
	words, err := req.Words()
	if err != nil {
		return SetInformationRequest{}, err
	}
	if len(words) < 6 {
		return SetInformationRequest{}, ErrWrongFormat
	}
	var sr SetInformationRequest
	sr.FileAttributes = binary.LittleEndian.Uint16(words[0:2])
	mtime := binary.LittleEndian.Uint32(words[2:6])
	if mtime != 0 {
		sr.LastWriteTime = time.Unix(int64(mtime), 0)
	}
	sr.Name, err = ParsePathname(req)
	if err != nil {
		return SetInformationRequest{}, err
	}
	return sr, nil
}

// EchoRequest asks for the payload to be repeated.
type EchoRequest struct {
	EchoCount uint16
	Data      []byte
}

// ParseEcho decodes an ECHO request block.
func ParseEcho(req Request) (EchoRequest, error) {
	count, err := req.Word(0)
	if err != nil {
		return EchoRequest{}, err
	}
	data, err := req.Bytes()
	if err != nil {
		return EchoRequest{}, err
	}
	return EchoRequest{EchoCount: count, Data: data}, nil
}

// EncodeEcho appends one ECHO response block carrying sequence n.
func EncodeEcho(c *Composer, n uint16, data []byte) int {
	words := make([]byte, 2)
	binary.LittleEndian.PutUint16(words, n)
	return c.PutBlock(words, data)
}

// SeekTime formats a Unix time as the 32-bit seconds field used by the
// legacy commands; the zero time maps to zero.
func SeekTime(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Unix())
}

// DosDateTime is a convenience wrapper for the legacy date/time pair.
func DosDateTime(t time.Time) (uint16, uint16) {
	return utils.UnixToDosDateTime(t)
}
