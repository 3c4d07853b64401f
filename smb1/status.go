package smb1

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// NT status codes returned in the Status field when the client negotiated
// Flags2.ERR_STATUS.
const (
	StatusOK                     = 0x00000000
	StatusPending                = 0x00000103
	StatusNotifyEnumDir          = 0x0000010c
	StatusBufferOverflow         = 0x80000005
	StatusNoMoreFiles            = 0x80000006
	StatusStoppedOnSymlink       = 0x8000002d
	StatusInvalidSMB             = 0x00010002
	StatusSMBBadTid              = 0x00050002
	StatusSMBBadCommand          = 0x00160002
	StatusSMBBadUid              = 0x005b0002
	StatusSMBUseStandard         = 0x00fb0002
	StatusUnsuccessful           = 0xc0000001
	StatusNotImplemented         = 0xc0000002
	StatusInvalidInfoClass       = 0xc0000003
	StatusInfoLengthMismatch     = 0xc0000004
	StatusInvalidHandle          = 0xc0000008
	StatusInvalidParameter       = 0xc000000d
	StatusNoSuchDevice           = 0xc000000e
	StatusNoSuchFile             = 0xc000000f
	StatusInvalidDeviceRequest   = 0xc0000010
	StatusEndOfFile              = 0xc0000011
	StatusMoreProcessingRequired = 0xc0000016
	StatusNoMemory               = 0xc0000017
	StatusAccessDenied           = 0xc0000022
	StatusBufferTooSmall         = 0xc0000023
	StatusObjectNameInvalid      = 0xc0000033
	StatusObjectNameNotFound     = 0xc0000034
	StatusObjectNameCollision    = 0xc0000035
	StatusObjectPathNotFound     = 0xc000003a
	StatusObjectPathSyntaxBad    = 0xc000003b
	StatusDataError              = 0xc000003e
	StatusSharingViolation       = 0xc0000043
	StatusEASTooLarge            = 0xc0000050
	StatusFileLockConflict       = 0xc0000054
	StatusLockNotGranted         = 0xc0000055
	StatusDeletePending          = 0xc0000056
	StatusPrivilegeNotHeld       = 0xc0000061
	StatusNoSuchUser             = 0xc0000064
	StatusWrongPassword          = 0xc000006a
	StatusLogonFailure           = 0xc000006d
	StatusAccountRestriction     = 0xc000006e
	StatusInvalidWorkstation     = 0xc0000070
	StatusPasswordExpired        = 0xc0000071
	StatusAccountDisabled        = 0xc0000072
	StatusNoneMapped             = 0xc0000073
	StatusInsufficientResources  = 0xc000009a
	StatusRangeNotLocked         = 0xc000007e
	StatusDiskFull               = 0xc000007f
	StatusDeviceNotReady         = 0xc00000a3
	StatusPipeNotAvailable       = 0xc00000ac
	StatusPipeDisconnected       = 0xc00000b0
	StatusPipeBroken             = 0xc00000b1
	StatusIOTimeout              = 0xc00000b5
	StatusFileIsADirectory       = 0xc00000ba
	StatusNotSupported           = 0xc00000bb
	StatusBadNetworkName         = 0xc00000cc
	StatusRequestNotAccepted     = 0xc00000d0
	StatusNotSameDevice          = 0xc00000d4
	StatusFileRenamed            = 0xc00000d5
	StatusInternalError          = 0xc00000e5
	StatusDirectoryNotEmpty      = 0xc0000101
	StatusNotADirectory          = 0xc0000103
	StatusTooManyOpenedFiles     = 0xc000011f
	StatusCancelled              = 0xc0000120
	StatusCannotDelete           = 0xc0000121
	StatusFileClosed             = 0xc0000128
	StatusInvalidLevel           = 0xc0000148
	StatusFSDriverRequired       = 0xc000019c
	StatusUserSessionDeleted     = 0xc0000203
	StatusNetworkSessionExpired  = 0xc000035c
	StatusSmbTooManyUids         = 0xc000205a
)

// DOS error classes for clients that did not negotiate 32-bit status codes.
const (
	ErrClassDOS  = 0x01
	ErrClassSrv  = 0x02
	ErrClassHrd  = 0x03
	ErrClassCmd  = 0xff
)

// DOS error codes, class DOS.
const (
	ErrDOSBadFunc      = 1
	ErrDOSBadFile      = 2
	ErrDOSBadPath      = 3
	ErrDOSNoFids       = 4
	ErrDOSNoAccess     = 5
	ErrDOSBadFid       = 6
	ErrDOSNoMem        = 8
	ErrDOSBadFormat    = 11
	ErrDOSBadAccess    = 12
	ErrDOSBadData      = 13
	ErrDOSBadDrive     = 15
	ErrDOSDiffDevice   = 17
	ErrDOSNoFiles      = 18
	ErrDOSBadShare     = 32
	ErrDOSLock         = 33
	ErrDOSUnsup        = 50
	ErrDOSNoSuchShare  = 67
	ErrDOSFileExists   = 80
	ErrDOSInvalidParam = 87
	ErrDOSDiskFull     = 112
	ErrDOSBadLevel     = 124
	ErrDOSDirNotEmpty  = 145
	ErrDOSAlreadyExists = 183
)

// DOS error codes, class SRV.
const (
	ErrSrvError       = 1
	ErrSrvBadPassword = 2
	ErrSrvAccess      = 4
	ErrSrvInvTid      = 5
	ErrSrvInvNetName  = 6
	ErrSrvInvDevice   = 7
	ErrSrvBadUid      = 91
	ErrSrvNoSupport   = 0xffff
)

type dosError struct {
	class uint8
	code  uint16
}

var ntToDos = map[uint32]dosError{
	StatusInvalidHandle:       {ErrClassDOS, ErrDOSBadFid},
	StatusObjectNameNotFound:  {ErrClassDOS, ErrDOSBadFile},
	StatusObjectPathNotFound:  {ErrClassDOS, ErrDOSBadPath},
	StatusNoSuchFile:          {ErrClassDOS, ErrDOSBadFile},
	StatusAccessDenied:        {ErrClassDOS, ErrDOSNoAccess},
	StatusObjectNameCollision: {ErrClassDOS, ErrDOSFileExists},
	StatusSharingViolation:    {ErrClassDOS, ErrDOSBadShare},
	StatusFileLockConflict:    {ErrClassDOS, ErrDOSLock},
	StatusLockNotGranted:      {ErrClassDOS, ErrDOSLock},
	StatusNoMoreFiles:         {ErrClassDOS, ErrDOSNoFiles},
	StatusNoMemory:            {ErrClassDOS, ErrDOSNoMem},
	StatusTooManyOpenedFiles:  {ErrClassDOS, ErrDOSNoFids},
	StatusInvalidParameter:    {ErrClassDOS, ErrDOSInvalidParam},
	StatusInvalidLevel:        {ErrClassDOS, ErrDOSBadLevel},
	StatusDiskFull:            {ErrClassDOS, ErrDOSDiskFull},
	StatusNotSameDevice:       {ErrClassDOS, ErrDOSDiffDevice},
	StatusDirectoryNotEmpty:   {ErrClassDOS, ErrDOSDirNotEmpty},
	StatusNotSupported:        {ErrClassDOS, ErrDOSUnsup},
	StatusBadNetworkName:      {ErrClassSrv, ErrSrvInvNetName},
	StatusLogonFailure:        {ErrClassSrv, ErrSrvBadPassword},
	StatusUserSessionDeleted:  {ErrClassSrv, ErrSrvBadUid},
	StatusSMBBadUid:           {ErrClassSrv, ErrSrvBadUid},
	StatusSMBBadTid:           {ErrClassSrv, ErrSrvInvTid},
	StatusSmbTooManyUids:      {ErrClassSrv, ErrSrvBadUid},
	StatusNotImplemented:      {ErrClassSrv, ErrSrvNoSupport},
}

// DosError maps an NT status to the legacy class/code pair. Unmapped codes
// collapse to a generic server error.
func DosError(status uint32) (uint8, uint16) {
	if status == StatusOK {
		return 0, 0
	}
	if e, ok := ntToDos[status]; ok {
		return e.class, e.code
	}
	return ErrClassSrv, ErrSrvError
}

// ErrToStatus maps a host filesystem error to the NT status reported to the
// client.
func ErrToStatus(err error) uint32 {
	if err == nil {
		return StatusOK
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return StatusObjectNameNotFound
	case errors.Is(err, fs.ErrExist):
		return StatusObjectNameCollision
	case errors.Is(err, fs.ErrPermission):
		return StatusAccessDenied
	case errors.Is(err, os.ErrInvalid):
		return StatusInvalidParameter
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENOENT:
			return StatusObjectNameNotFound
		case unix.EEXIST:
			return StatusObjectNameCollision
		case unix.EACCES, unix.EPERM:
			return StatusAccessDenied
		case unix.ENOTDIR:
			return StatusNotADirectory
		case unix.EISDIR:
			return StatusFileIsADirectory
		case unix.ENOTEMPTY:
			return StatusDirectoryNotEmpty
		case unix.ENOSPC, unix.EDQUOT:
			return StatusDiskFull
		case unix.EXDEV:
			return StatusNotSameDevice
		case unix.ENOMEM:
			return StatusNoMemory
		case unix.EMFILE, unix.ENFILE:
			return StatusTooManyOpenedFiles
		case unix.EINVAL:
			return StatusInvalidParameter
		case unix.ENAMETOOLONG:
			return StatusObjectNameInvalid
		case unix.EBADF:
			return StatusInvalidHandle
		case unix.EAGAIN:
			return StatusFileLockConflict
		case unix.ENODATA:
			return StatusNoSuchFile
		case unix.EOPNOTSUPP:
			return StatusNotSupported
		case unix.EFBIG, unix.E2BIG:
			return StatusEASTooLarge
		case unix.EROFS:
			return StatusAccessDenied
		case unix.EBUSY:
			return StatusSharingViolation
		case unix.EIO:
			return StatusDataError
		case unix.ENXIO, unix.ENODEV:
			return StatusNoSuchDevice
		}
	}
	return StatusUnsuccessful
}
