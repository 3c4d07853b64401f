package smb1

import (
	"encoding/binary"
	"time"

	"github.com/dmarenin/smb1d/utils"
)

// NT_CREATE_ANDX request flag bits.
const (
	CreateRequestOplock      = 0x00000002
	CreateRequestOplockBatch = 0x00000004
	CreateOpenTargetDir      = 0x00000008
	CreateExtendedResponse   = 0x00000010
)

// Named pipe state reported for disk files and pipes.
const (
	FileTypeDisk            = 0x0000
	FileTypeByteModePipe    = 0x0001
	FileTypeMessageModePipe = 0x0002
	FileTypePrinter         = 0x0003
)

// NTCreateRequest is the parsed NT_CREATE_ANDX request.
type NTCreateRequest struct {
	Flags            uint32
	RootDirectoryFID uint32
	DesiredAccess    uint32
	AllocationSize   uint64
	FileAttributes   uint32
	ShareAccess      uint32
	CreateDisposition uint32
	CreateOptions    uint32
	ImpersonationLevel uint32
	SecurityFlags    uint8
	Name             string
}

// ParseNTCreate decodes an NT_CREATE_ANDX request block.
func ParseNTCreate(req Request) (NTCreateRequest, error) {
	words, err := req.Words()
	if err != nil {
		return NTCreateRequest{}, err
	}
	if len(words) < 48 {
		return NTCreateRequest{}, ErrWrongFormat
	}
	var cr NTCreateRequest
	cr.Flags = binary.LittleEndian.Uint32(words[7:11])
	cr.RootDirectoryFID = binary.LittleEndian.Uint32(words[11:15])
	cr.DesiredAccess = binary.LittleEndian.Uint32(words[15:19])
	cr.AllocationSize = binary.LittleEndian.Uint64(words[19:27])
	cr.FileAttributes = binary.LittleEndian.Uint32(words[27:31])
	cr.ShareAccess = binary.LittleEndian.Uint32(words[31:35])
	cr.CreateDisposition = binary.LittleEndian.Uint32(words[35:39])
	cr.CreateOptions = binary.LittleEndian.Uint32(words[39:43])
	cr.ImpersonationLevel = binary.LittleEndian.Uint32(words[43:47])
	cr.SecurityFlags = words[47]

	dataStart, err := BlockEnd(req.Msg, req.Off)
	if err != nil {
		return NTCreateRequest{}, err
	}
	data, err := req.Bytes()
	if err != nil {
		return NTCreateRequest{}, err
	}
	dataStart -= len(data)
	cr.Name, _, err = req.String(req.Msg, dataStart)
	if err != nil {
		return NTCreateRequest{}, err
	}
	return cr, nil
}

// WantsOplock reports whether the client asked for an exclusive or batch
// oplock on the new handle.
func (cr NTCreateRequest) WantsOplock() bool {
	return cr.Flags&(CreateRequestOplock|CreateRequestOplockBatch) != 0
}

// NTCreateResponse describes the opened handle.
type NTCreateResponse struct {
	OplockLevel    uint8
	FID            uint16
	CreateAction   uint32
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	FileAttributes uint32
	AllocationSize uint64
	EndOfFile      uint64
	FileType       uint16
	DeviceState    uint16
	Directory      bool
}

// Encode appends the NT create response block to the chain.
func (cr NTCreateResponse) Encode(c *Composer) int {
	words := make([]byte, 64)
	words[0] = cr.OplockLevel
	binary.LittleEndian.PutUint16(words[1:3], cr.FID)
	binary.LittleEndian.PutUint32(words[3:7], cr.CreateAction)
	binary.LittleEndian.PutUint64(words[7:15], utils.UnixToFiletime(cr.CreationTime))
	binary.LittleEndian.PutUint64(words[15:23], utils.UnixToFiletime(cr.LastAccessTime))
	binary.LittleEndian.PutUint64(words[23:31], utils.UnixToFiletime(cr.LastWriteTime))
	binary.LittleEndian.PutUint64(words[31:39], utils.UnixToFiletime(cr.ChangeTime))
	binary.LittleEndian.PutUint32(words[39:43], cr.FileAttributes)
	binary.LittleEndian.PutUint64(words[43:51], cr.AllocationSize)
	binary.LittleEndian.PutUint64(words[51:59], cr.EndOfFile)
	binary.LittleEndian.PutUint16(words[59:61], cr.FileType)
	binary.LittleEndian.PutUint16(words[61:63], cr.DeviceState)
	if cr.Directory {
		words[63] = 1
	}
	return c.PutAndXBlock(SMB_COM_NT_CREATE_ANDX, words, nil)
}

// OpenRequest is the parsed OPEN_ANDX request.
type OpenRequest struct {
	Flags          uint16
	AccessMode     uint16
	SearchAttributes uint16
	FileAttributes uint16
	CreationTime   time.Time
	OpenFunction   uint16
	AllocationSize uint32
	Name           string
}

// ParseOpen decodes an OPEN_ANDX request block.
func ParseOpen(req Request) (OpenRequest, error) {
	words, err := req.Words()
	if err != nil {
		return OpenRequest{}, err
	}
	if len(words) < 30 {
		return OpenRequest{}, ErrWrongFormat
	}
	var or OpenRequest
	or.Flags = binary.LittleEndian.Uint16(words[4:6])
	or.AccessMode = binary.LittleEndian.Uint16(words[6:8])
	or.SearchAttributes = binary.LittleEndian.Uint16(words[8:10])
	or.FileAttributes = binary.LittleEndian.Uint16(words[10:12])
	date := binary.LittleEndian.Uint16(words[12:14])
	tim := binary.LittleEndian.Uint16(words[14:16])
	or.CreationTime = utils.DosDateTimeToUnix(date, tim)
	or.OpenFunction = binary.LittleEndian.Uint16(words[16:18])
	or.AllocationSize = binary.LittleEndian.Uint32(words[18:22])

	dataStart, err := BlockEnd(req.Msg, req.Off)
	if err != nil {
		return OpenRequest{}, err
	}
	data, err := req.Bytes()
	if err != nil {
		return OpenRequest{}, err
	}
	dataStart -= len(data)
	or.Name, _, err = req.String(req.Msg, dataStart)
	if err != nil {
		return OpenRequest{}, err
	}
	return or, nil
}

// WantsWrite reports whether the requested access mode implies writing.
func (or OpenRequest) WantsWrite() bool {
	mode := or.AccessMode & 0x0007
	return mode == OpenAccessWrite || mode == OpenAccessReadWrite
}

// OpenResponse describes the handle opened by OPEN_ANDX.
type OpenResponse struct {
	FID            uint16
	FileAttributes uint16
	LastWriteTime  time.Time
	FileSize       uint32
	AccessRights   uint16
	FileType       uint16
	DeviceState    uint16
	OpenAction     uint16
}

// Encode appends the open response block to the chain.
func (or OpenResponse) Encode(c *Composer) int {
	words := make([]byte, 26)
	binary.LittleEndian.PutUint16(words[0:2], or.FID)
	binary.LittleEndian.PutUint16(words[2:4], or.FileAttributes)
	if !or.LastWriteTime.IsZero() {
		binary.LittleEndian.PutUint32(words[4:8], uint32(or.LastWriteTime.Unix()))
	}
	binary.LittleEndian.PutUint32(words[8:12], or.FileSize)
	binary.LittleEndian.PutUint16(words[12:14], or.AccessRights)
	binary.LittleEndian.PutUint16(words[14:16], or.FileType)
	binary.LittleEndian.PutUint16(words[16:18], or.DeviceState)
	binary.LittleEndian.PutUint16(words[18:20], or.OpenAction)
	return c.PutAndXBlock(SMB_COM_OPEN_ANDX, words, nil)
}
