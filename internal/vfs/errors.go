package vfs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Error wraps a real kernel errno so a value placed on the wire by the
// transport matches exactly what a FUSE channel would send.
type Error struct {
	Errno unix.Errno
}

func (e *Error) Error() string { return e.Errno.Error() }

func errno(e unix.Errno) error { return &Error{Errno: e} }

var (
	ErrNoEnt     = errno(unix.ENOENT)
	ErrNotDir    = errno(unix.ENOTDIR)
	ErrIsDir     = errno(unix.EISDIR)
	ErrExist     = errno(unix.EEXIST)
	ErrNotEmpty  = errno(unix.ENOTEMPTY)
	ErrInval     = errno(unix.EINVAL)
	ErrNoSpc     = errno(unix.ENOSPC)
	ErrNoMem     = errno(unix.ENOMEM)
	ErrNoData    = errno(unix.ENODATA)
	ErrAccess    = errno(unix.EACCES)
	ErrNoSys     = errno(unix.ENOSYS)
	ErrPerm      = errno(unix.EPERM)
	ErrBadHandle = errno(unix.EBADF)
)

// Errno extracts the errno carried by err, or ENOMEM if err does not
// originate from this package (an internal assertion failure should have
// panicked instead of reaching here).
func Errno(err error) unix.Errno {
	var e *Error
	if errors.As(err, &e) {
		return e.Errno
	}
	return unix.ENOMEM
}

// assert panics on a broken invariant. Per the error-handling policy,
// internal assertion failures are fatal: there is no recovery path that
// keeps the table invariants intact.
func assert(cond bool, msg string) {
	if !cond {
		panic("vfs: invariant violated: " + msg)
	}
}
