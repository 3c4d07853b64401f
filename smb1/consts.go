package smb1

// SMB1 command codes.
const (
	SMB_COM_CREATE_DIRECTORY  = 0x00
	SMB_COM_DELETE_DIRECTORY  = 0x01
	SMB_COM_OPEN              = 0x02
	SMB_COM_CREATE            = 0x03
	SMB_COM_CLOSE             = 0x04
	SMB_COM_FLUSH             = 0x05
	SMB_COM_DELETE            = 0x06
	SMB_COM_RENAME            = 0x07
	SMB_COM_QUERY_INFORMATION = 0x08
	SMB_COM_SET_INFORMATION   = 0x09
	SMB_COM_READ              = 0x0a
	SMB_COM_WRITE             = 0x0b
	SMB_COM_CHECK_DIRECTORY   = 0x10
	SMB_COM_PROCESS_EXIT      = 0x11
	SMB_COM_LOCKING_ANDX      = 0x24
	SMB_COM_TRANSACTION       = 0x25
	SMB_COM_ECHO              = 0x2b
	SMB_COM_WRITE_AND_CLOSE   = 0x2c
	SMB_COM_OPEN_ANDX         = 0x2d
	SMB_COM_READ_ANDX         = 0x2e
	SMB_COM_WRITE_ANDX        = 0x2f
	SMB_COM_TRANSACTION2      = 0x32
	SMB_COM_FIND_CLOSE2       = 0x34
	SMB_COM_TREE_DISCONNECT   = 0x71
	SMB_COM_NEGOTIATE         = 0x72
	SMB_COM_SESSION_SETUP_ANDX = 0x73
	SMB_COM_LOGOFF_ANDX       = 0x74
	SMB_COM_TREE_CONNECT_ANDX = 0x75
	SMB_COM_NT_TRANSACT       = 0xa0
	SMB_COM_NT_CREATE_ANDX    = 0xa2
	SMB_COM_NT_CANCEL         = 0xa4
	SMB_COM_NT_RENAME         = 0xa5
)

// AndX chain terminator.
const SMB_NO_MORE_ANDX_COMMAND = 0xff

// Flags bits.
const (
	FlagsLockAndRead     = 0x01
	FlagsBufAvail        = 0x02
	FlagsCaseInsensitive = 0x08
	FlagsCanonicalPaths  = 0x10
	FlagsOplock          = 0x20
	FlagsOplockBatch     = 0x40
	FlagsResponse        = 0x80
)

// Flags2 bits.
const (
	Flags2LongNames         = 0x0001
	Flags2ExtendedAttributes = 0x0002
	Flags2SecuritySignature = 0x0004
	Flags2IsLongName        = 0x0040
	Flags2ExtendedSecurity  = 0x0800
	Flags2DFS               = 0x1000
	Flags2PagingIO          = 0x2000
	Flags2ErrStatus         = 0x4000
	Flags2Unicode           = 0x8000
)

// Dialect strings offered by clients during negotiation, in preference order.
const (
	DialectNTLM012    = "NT LM 0.12"
	DialectSMB2002    = "SMB 2.002"
	DialectSMB2Wild   = "SMB 2.???"
	DialectLANMAN21   = "LANMAN2.1"
	DialectLANMAN12   = "LM1.2X002"
	DialectLANMAN10   = "LANMAN1.0"
	DialectCorePlus   = "PC NETWORK PROGRAM 1.0"
)

// NEGOTIATE response security mode bits.
const (
	NegSecurityUser             = 0x01
	NegSecurityChallengeResponse = 0x02
	NegSecuritySignaturesEnabled = 0x04
	NegSecuritySignaturesRequired = 0x08
)

// NEGOTIATE response capability bits.
const (
	CapRawMode        = 0x00000001
	CapMPXMode        = 0x00000002
	CapUnicode        = 0x00000004
	CapLargeFiles     = 0x00000008
	CapNTSMBs         = 0x00000010
	CapRPCRemoteAPIs  = 0x00000020
	CapStatus32       = 0x00000040
	CapLevelIIOplocks = 0x00000080
	CapLockAndRead    = 0x00000100
	CapNTFind         = 0x00000200
	CapDFS            = 0x00001000
	CapInfoLevelPassthru = 0x00002000
	CapLargeReadX     = 0x00004000
	CapLargeWriteX    = 0x00008000
	CapUnix           = 0x00800000
	CapExtendedSecurity = 0x80000000
)

// CIFS UNIX extension capability bits (CIFS_UNIX_INFO).
const (
	UnixCapFcntlLocks   = 0x0001
	UnixCapPosixAcls    = 0x0002
	UnixCapXattr        = 0x0004
	UnixCapExtattr      = 0x0008
	UnixCapPosixPathnames = 0x0010
	UnixCapPosixPathOps = 0x0020
	UnixCapLargeRead    = 0x0040
	UnixCapLargeWrite   = 0x0080
)

const (
	UnixMajorVersion = 1
	UnixMinorVersion = 0
)

// TRANSACTION2 sub-command codes.
const (
	TRANS2_OPEN2             = 0x0000
	TRANS2_FIND_FIRST2       = 0x0001
	TRANS2_FIND_NEXT2        = 0x0002
	TRANS2_QUERY_FS_INFORMATION = 0x0003
	TRANS2_SET_FS_INFORMATION   = 0x0004
	TRANS2_QUERY_PATH_INFORMATION = 0x0005
	TRANS2_SET_PATH_INFORMATION   = 0x0006
	TRANS2_QUERY_FILE_INFORMATION = 0x0007
	TRANS2_SET_FILE_INFORMATION   = 0x0008
	TRANS2_CREATE_DIRECTORY  = 0x000d
	TRANS2_GET_DFS_REFERRAL  = 0x0010
)

// TRANSACTION sub-command codes (named pipe operations).
const (
	TRANS_SET_NMPIPE_STATE = 0x0001
	TRANS_READ_NMPIPE      = 0x0011
	TRANS_WRITE_NMPIPE     = 0x0012
	TRANS_TRANSACT_NMPIPE  = 0x0026
)

// QUERY_FS information levels.
const (
	SMB_INFO_ALLOCATION        = 0x0001
	SMB_QUERY_FS_VOLUME_INFO   = 0x0102
	SMB_QUERY_FS_SIZE_INFO     = 0x0103
	SMB_QUERY_FS_DEVICE_INFO   = 0x0104
	SMB_QUERY_FS_ATTRIBUTE_INFO = 0x0105
	SMB_QUERY_CIFS_UNIX_INFO   = 0x0200
	SMB_QUERY_POSIX_FS_INFO    = 0x0201
)

// SET_FS information levels.
const (
	SMB_SET_CIFS_UNIX_INFO = 0x0200
)

// QUERY_PATH / QUERY_FILE information levels.
const (
	SMB_INFO_STANDARD           = 0x0001
	SMB_INFO_QUERY_EA_SIZE      = 0x0002
	SMB_INFO_QUERY_EAS_FROM_LIST = 0x0003
	SMB_INFO_QUERY_ALL_EAS      = 0x0004
	SMB_QUERY_FILE_BASIC_INFO   = 0x0101
	SMB_QUERY_FILE_STANDARD_INFO = 0x0102
	SMB_QUERY_FILE_EA_INFO      = 0x0103
	SMB_QUERY_FILE_NAME_INFO    = 0x0104
	SMB_QUERY_FILE_ALL_INFO     = 0x0107
	SMB_QUERY_ALT_NAME_INFO     = 0x0108
	SMB_QUERY_FILE_STREAM_INFO  = 0x0109
	SMB_QUERY_FILE_INTERNAL_INFO = 0x3ee
	SMB_QUERY_FILE_UNIX_BASIC   = 0x0200
	SMB_QUERY_FILE_UNIX_LINK    = 0x0201
	SMB_QUERY_POSIX_ACL         = 0x0204
)

// SET_PATH / SET_FILE information levels.
const (
	SMB_SET_FILE_BASIC_INFO      = 0x0101
	SMB_SET_FILE_DISPOSITION_INFO = 0x0102
	SMB_SET_FILE_ALLOCATION_INFO = 0x0103
	SMB_SET_FILE_END_OF_FILE_INFO = 0x0104
	SMB_SET_FILE_UNIX_BASIC      = 0x0200
	SMB_SET_FILE_UNIX_LINK       = 0x0201
	SMB_SET_FILE_UNIX_HLINK      = 0x0203
	SMB_SET_POSIX_ACL            = 0x0204
	SMB_POSIX_OPEN               = 0x0209
	SMB_POSIX_UNLINK             = 0x020a
)

// Info-level pass-through values (level + 1000, CapInfoLevelPassthru).
const (
	SMB_SET_FILE_BASIC_INFO2      = 0x3ec
	SMB_SET_FILE_RENAME_INFORMATION = 0x3f2
	SMB_SET_FILE_DISPOSITION_INFO2 = 0x3f5
	SMB_SET_FILE_ALLOCATION_INFO2 = 0x3fb
	SMB_SET_FILE_END_OF_FILE_INFO2 = 0x3fc
)

// FIND_FIRST2 / FIND_NEXT2 information levels.
const (
	SMB_FIND_FILE_INFO_STANDARD    = 0x0001
	SMB_FIND_FILE_QUERY_EA_SIZE    = 0x0002
	SMB_FIND_FILE_DIRECTORY_INFO   = 0x0101
	SMB_FIND_FILE_FULL_DIRECTORY_INFO = 0x0102
	SMB_FIND_FILE_NAMES_INFO       = 0x0103
	SMB_FIND_FILE_BOTH_DIRECTORY_INFO = 0x0104
	SMB_FIND_FILE_ID_FULL_DIR_INFO = 0x0105
	SMB_FIND_FILE_ID_BOTH_DIR_INFO = 0x0106
	SMB_FIND_FILE_UNIX             = 0x0202
)

// FIND_FIRST2 / FIND_NEXT2 flags.
const (
	FindCloseAfterRequest = 0x0001
	FindCloseAtEOS        = 0x0002
	FindReturnResumeKeys  = 0x0004
	FindContinueFromLast  = 0x0008
	FindWithBackupIntent  = 0x0010
)

// NT_CREATE_ANDX desired access mask bits.
const (
	FileReadData        = 0x00000001
	FileWriteData       = 0x00000002
	FileAppendData      = 0x00000004
	FileReadEA          = 0x00000008
	FileWriteEA         = 0x00000010
	FileExecute         = 0x00000020
	FileDeleteChild     = 0x00000040
	FileReadAttributes  = 0x00000080
	FileWriteAttributes = 0x00000100
	Delete              = 0x00010000
	ReadControl         = 0x00020000
	WriteDAC            = 0x00040000
	WriteOwner          = 0x00080000
	Synchronize         = 0x00100000
	AccessSystemSecurity = 0x01000000
	MaximumAllowed      = 0x02000000
	GenericAll          = 0x10000000
	GenericExecute      = 0x20000000
	GenericWrite        = 0x40000000
	GenericRead         = 0x80000000
)

// Create dispositions.
const (
	FileSupersede   = 0x00000000
	FileOpen        = 0x00000001
	FileCreate      = 0x00000002
	FileOpenIf      = 0x00000003
	FileOverwrite   = 0x00000004
	FileOverwriteIf = 0x00000005
)

// Create options.
const (
	FileDirectoryFile     = 0x00000001
	FileWriteThrough      = 0x00000002
	FileSequentialOnly    = 0x00000004
	FileNonDirectoryFile  = 0x00000040
	FileNoEaKnowledge     = 0x00000200
	FileDeleteOnClose     = 0x00001000
	FileOpenByFileID      = 0x00002000
	FileOpenForBackup     = 0x00004000
	FileOpenReparsePoint  = 0x00200000
)

// Share access bits.
const (
	FileShareRead   = 0x00000001
	FileShareWrite  = 0x00000002
	FileShareDelete = 0x00000004
)

// Create action values returned in responses.
const (
	FileSuperseded  = 0x00000000
	FileOpened      = 0x00000001
	FileCreated     = 0x00000002
	FileOverwritten = 0x00000003
)

// DOS file attribute bits.
const (
	AttrReadonly  = 0x0001
	AttrHidden    = 0x0002
	AttrSystem    = 0x0004
	AttrVolume    = 0x0008
	AttrDirectory = 0x0010
	AttrArchive   = 0x0020
	AttrNormal    = 0x0080
	AttrTemporary = 0x0100
	AttrSparse    = 0x0200
	AttrReparse   = 0x0400
	AttrCompressed = 0x0800
	AttrOffline   = 0x1000
	AttrNotIndexed = 0x2000
	AttrEncrypted = 0x4000
)

// Attribute search bits for the legacy search/open commands.
const (
	SearchAttrReadonly  = 0x0100
	SearchAttrHidden    = 0x0200
	SearchAttrSystem    = 0x0400
	SearchAttrDirectory = 0x1000
	SearchAttrArchive   = 0x2000
)

// Oplock levels.
const (
	OplockNone      = 0x00
	OplockExclusive = 0x01
	OplockBatch     = 0x02
	OplockLevelII   = 0x03
)

// LOCKING_ANDX lock type bits.
const (
	LockTypeShared      = 0x01
	LockTypeOplockRelease = 0x02
	LockTypeChangeLock  = 0x04
	LockTypeCancelLock  = 0x08
	LockTypeLargeFiles  = 0x10
)

// OPEN_ANDX access mode (word 0 of the requested mode).
const (
	OpenAccessRead      = 0x0000
	OpenAccessWrite     = 0x0001
	OpenAccessReadWrite = 0x0002
	OpenAccessExecute   = 0x0003
	OpenShareDenyRW     = 0x0010
	OpenShareDenyWrite  = 0x0020
	OpenShareDenyRead   = 0x0030
	OpenShareDenyNone   = 0x0040
)

// OPEN_ANDX open function bits.
const (
	OpenFnOpenIfExists     = 0x0001
	OpenFnTruncateIfExists = 0x0002
	OpenFnCreateIfAbsent   = 0x0010
)

// Service strings carried in TREE_CONNECT_ANDX.
const (
	ServiceDisk    = "A:"
	ServicePrinter = "LPT1:"
	ServicePipe    = "IPC"
	ServiceAny     = "?????"
)

// Filesystem attributes reported by FS_ATTRIBUTE_INFO.
const (
	FSAttrCaseSensitiveSearch = 0x00000001
	FSAttrCasePreservedNames  = 0x00000002
	FSAttrUnicodeOnDisk       = 0x00000004
	FSAttrPersistentACLs      = 0x00000008
	FSAttrSparseFiles         = 0x00000040
)

// POSIX_OPEN flags and modes.
const (
	PosixOpenFlagOpen     = 0x0001
	PosixOpenFlagCreate   = 0x0010
	PosixOpenFlagExcl     = 0x0020
	PosixOpenFlagTruncate = 0x0080
	PosixOpenFlagAppend   = 0x0100
	PosixOpenFlagDirectory = 0x0200
)

// UNIX_BASIC file type values.
const (
	UnixTypeFile    = 0
	UnixTypeDir     = 1
	UnixTypeSymlink = 2
	UnixTypeCharDev = 3
	UnixTypeBlkDev  = 4
	UnixTypeFifo    = 5
	UnixTypeSocket  = 6
)

// NT_RENAME information levels.
const (
	NTRenameSetLinkInfo = 0x0103
	NTRenameMoveFile    = 0x0104
	NTRenameCopyFile    = 0x0105
)

// Impersonation levels.
const (
	SecurityAnonymous      = 0
	SecurityIdentification = 1
	SecurityImpersonation  = 2
	SecurityDelegation     = 3
)

// Buffer format codes used by the core (pre-AndX) commands.
const (
	BufferFormatDataBlock = 0x01
	BufferFormatDialect   = 0x02
	BufferFormatPathname  = 0x03
	BufferFormatASCII     = 0x04
	BufferFormatVariable  = 0x05
)

// Device types reported by FS_DEVICE_INFO.
const (
	FileDeviceDisk          = 0x0007
	FileDeviceCharacteristics = 0x0020
)
