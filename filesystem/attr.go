package filesystem

import (
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

type SysAttrType = uint32

const (
	DirAttr  SysAttrType = syscall.S_IFDIR
	FileAttr SysAttrType = syscall.S_IFREG
)

// The three fixed permission modes
const (
	DirPerms      = 0o755
	ReadOnlyPerms = 0o444
	ConfigPerms   = 0o644
)

// newDefaultAttr returns attributes stamped with t and owned by this process.
// NOTE: Make sure to set Mode, Size and Nlink appropriately; Ino is the bridge's job
func newDefaultAttr(t time.Time) *fuse.Attr {
	return &fuse.Attr{
		Nlink: 1,
		Owner: fuse.Owner{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		},
		Atime:     uint64(t.Unix()),
		Mtime:     uint64(t.Unix()),
		Ctime:     uint64(t.Unix()),
		Atimensec: uint32(t.Nanosecond()),
		Mtimensec: uint32(t.Nanosecond()),
		Ctimensec: uint32(t.Nanosecond()),
		Blksize:   4096, // preferred size for fs ops
	}
}

func dirAttr(t time.Time) *fuse.Attr {
	attr := newDefaultAttr(t)
	attr.Mode = DirAttr | DirPerms
	attr.Nlink = 2
	return attr
}

func fileAttr(t time.Time, perms uint32, size int) *fuse.Attr {
	attr := newDefaultAttr(t)
	attr.Mode = FileAttr | perms
	attr.Size = uint64(size)
	attr.Blocks = (attr.Size + 511) / 512
	return attr
}
