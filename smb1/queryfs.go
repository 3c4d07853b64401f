package smb1

import (
	"encoding/binary"
	"time"

	"github.com/dmarenin/smb1d/utils"
)

// FSInfo carries the filesystem figures the QUERY_FS levels serialize.
type FSInfo struct {
	BlockSize    uint64
	TotalBlocks  uint64
	FreeBlocks   uint64
	AvailBlocks  uint64
	TotalFiles   uint64
	FreeFiles    uint64
	SerialNumber uint32
	VolumeLabel  string
	Created      time.Time
}

const sectorSize = 512

// EncodeFSAllocation serializes the SMB_INFO_ALLOCATION block.
func EncodeFSAllocation(fs FSInfo) []byte {
	buf := make([]byte, 18)
	sectorsPerUnit := fs.BlockSize / sectorSize
	if sectorsPerUnit == 0 {
		sectorsPerUnit = 1
	}
	binary.LittleEndian.PutUint32(buf[4:8], uint32(sectorsPerUnit))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(fs.TotalBlocks))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(fs.AvailBlocks))
	binary.LittleEndian.PutUint16(buf[16:18], sectorSize)
	return buf
}

// EncodeFSVolume serializes the FS_VOLUME_INFO block.
func EncodeFSVolume(fs FSInfo, unicode bool) []byte {
	var label []byte
	if unicode {
		label = utils.EncodeStringToBytes(fs.VolumeLabel)
	} else {
		label = []byte(fs.VolumeLabel)
	}
	buf := make([]byte, 18+len(label))
	binary.LittleEndian.PutUint64(buf[0:8], utils.UnixToFiletime(fs.Created))
	binary.LittleEndian.PutUint32(buf[8:12], fs.SerialNumber)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(label)))
	copy(buf[18:], label)
	return buf
}

// EncodeFSSize serializes the FS_SIZE_INFO block.
func EncodeFSSize(fs FSInfo) []byte {
	buf := make([]byte, 24)
	sectorsPerUnit := fs.BlockSize / sectorSize
	if sectorsPerUnit == 0 {
		sectorsPerUnit = 1
	}
	binary.LittleEndian.PutUint64(buf[0:8], fs.TotalBlocks)
	binary.LittleEndian.PutUint64(buf[8:16], fs.AvailBlocks)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(sectorsPerUnit))
	binary.LittleEndian.PutUint32(buf[20:24], sectorSize)
	return buf
}

// EncodeFSDevice serializes the FS_DEVICE_INFO block.
func EncodeFSDevice() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], FileDeviceDisk)
	binary.LittleEndian.PutUint32(buf[4:8], FileDeviceCharacteristics)
	return buf
}

// EncodeFSAttribute serializes the FS_ATTRIBUTE_INFO block.
func EncodeFSAttribute(unicode bool) []byte {
	const fsName = "NTFS"
	var name []byte
	if unicode {
		name = utils.EncodeStringToBytes(fsName)
	} else {
		name = []byte(fsName)
	}
	buf := make([]byte, 12+len(name))
	binary.LittleEndian.PutUint32(buf[0:4],
		FSAttrCaseSensitiveSearch|FSAttrCasePreservedNames|FSAttrUnicodeOnDisk|FSAttrSparseFiles)
	binary.LittleEndian.PutUint32(buf[4:8], 255)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(name)))
	copy(buf[12:], name)
	return buf
}

// EncodeCIFSUnixInfo serializes the CIFS_UNIX_INFO capability block.
func EncodeCIFSUnixInfo(caps uint64) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint16(buf[0:2], UnixMajorVersion)
	binary.LittleEndian.PutUint16(buf[2:4], UnixMinorVersion)
	binary.LittleEndian.PutUint64(buf[4:12], caps)
	return buf
}

// EncodePosixFSInfo serializes the POSIX_FS_INFO block.
func EncodePosixFSInfo(fs FSInfo) []byte {
	buf := make([]byte, 56)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(fs.BlockSize))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(fs.BlockSize))
	binary.LittleEndian.PutUint64(buf[8:16], fs.TotalBlocks)
	binary.LittleEndian.PutUint64(buf[16:24], fs.FreeBlocks)
	binary.LittleEndian.PutUint64(buf[24:32], fs.AvailBlocks)
	binary.LittleEndian.PutUint64(buf[32:40], fs.TotalFiles)
	binary.LittleEndian.PutUint64(buf[40:48], fs.FreeFiles)
	return buf
}
