package vfs

import (
	"time"

	"golang.org/x/sys/unix"
)

// InodeNumber identifies a slot in the Table. 0 is the reserved
// "no-block" slot, 1 is the root directory.
type InodeNumber uint64

const (
	NoInode   InodeNumber = 0
	RootInode InodeNumber = 1

	// NoEntry is returned by directory lookups that find nothing; the
	// all-ones pattern mirrors the FUSE convention for "not found".
	NoEntry InodeNumber = ^InodeNumber(0)
)

const (
	BlockSize      = 4096
	MaxNameLen     = 255
	DefaultEntryFH = 0 // sentinel; never minted by Open
)

// Credentials carries the caller's identity, taken from the request.
type Credentials struct {
	UID uint32
	GID uint32
}

// SetAttrMask bits select which Attr fields a SetAttr call should apply,
// mirroring FUSE's FATTR_* bitmask.
type SetAttrMask uint32

const (
	SetAttrMode SetAttrMask = 1 << iota
	SetAttrUID
	SetAttrGID
	SetAttrSize
	SetAttrATime
	SetAttrMTime
	SetAttrCTime
)

// AccessMask mirrors the access(2) request mask.
type AccessMask uint32

const (
	AccessOK AccessMask = 0
	ExecOK   AccessMask = 1
	WriteOK  AccessMask = 2
	ReadOK   AccessMask = 4
)

// File-type bits, taken verbatim from golang.org/x/sys/unix so the mode
// values this package produces match what a real stat(2) call returns.
const (
	typeMask = unix.S_IFMT
	typeFile = unix.S_IFREG
	typeDir  = unix.S_IFDIR
	typeLink = unix.S_IFLNK
	typeChr  = unix.S_IFCHR
	typeBlk  = unix.S_IFBLK
	typeFifo = unix.S_IFIFO
	typeSock = unix.S_IFSOCK
)

// Attr is the kernel-visible attribute block for an inode.
type Attr struct {
	Ino       InodeNumber
	Mode      uint32
	UID       uint32
	GID       uint32
	NLink     uint32
	Size      uint64
	Blocks    uint64
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Rdev      uint32
	BlockSize uint32
}

// Statfs is the statvfs block reported by the statfs callback.
type Statfs struct {
	Blocks     uint64
	BlocksFree uint64
	BlocksAvai uint64
	Files      uint64
	FilesFree  uint64
	BlockSize  uint32
	NameLen    uint32
	FSID       uint64
}

// XAttrFlag mirrors setxattr(2)'s create/replace flags.
type XAttrFlag uint32

const (
	XAttrDefault XAttrFlag = 0
	XAttrCreate  XAttrFlag = 1
	XAttrReplace XAttrFlag = 2
)
