package filesystem

import (
	"errors"
	"fmt"
	"syscall"
)

// The only errors the engine reports to the filesystem framework.
// Backend and config parse failures are recovered locally and logged.
var (
	ErrNotFound         = errors.New("no such file or directory")
	ErrAlreadyExists    = errors.New("file exists")
	ErrPermissionDenied = errors.New("permission denied")
)

// PathError records the operation and path of a failed engine call
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func pathErr(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// ToErrno maps an engine error to the errno returned to the kernel.
// Unknown errors map to EIO.
func ToErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, ErrPermissionDenied):
		return syscall.EACCES
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
