// Package fuse adapts the path based engine to the go-fuse raw wire protocol.
package fuse

import (
	"path"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brettbedarf/issuefs/filesystem"
	"github.com/brettbedarf/issuefs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// Engine is the set of path based operations the bridge forwards to
type Engine interface {
	Getattr(path string) (*fuse.Attr, error)
	Readdir(path string) ([]fuse.DirEntry, error)
	Open(path string, flags uint32) error
	Read(path string, offset int64, size int) ([]byte, error)
	Write(path string, data []byte, offset int64) (int, error)
	Truncate(path string, length int64) error
	Flush(path string) error
	Release(path string)
	Mkdir(path string) error
	Rmdir(path string) error
	Unlink(path string) error
}

// Options tunes kernel side caching
type Options struct {
	AttrTimeout  time.Duration
	EntryTimeout time.Duration
	DirectIO     bool // bypass the page cache for every opened file
}

// nodeRef is one kernel visible node
type nodeRef struct {
	path    string
	lookups uint64
}

// FuseRaw implements the low-level FUSE wire protocol.
// It translates kernel NodeIDs to engine paths and engine errors to errnos.
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
type FuseRaw struct {
	fuse.RawFileSystem
	fs     Engine
	opts   Options
	server *fuse.Server

	nodes  *xsync.Map[uint64, *nodeRef] // NodeID -> path
	ids    *xsync.Map[string, uint64]   // path -> NodeID
	lastID atomic.Uint64
}

func NewFuseRaw(fs Engine, opts Options) *FuseRaw {
	r := &FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:            fs,
		opts:          opts,
		nodes:         xsync.NewMap[uint64, *nodeRef](),
		ids:           xsync.NewMap[string, uint64](),
	}
	r.lastID.Store(fuse.FUSE_ROOT_ID)
	r.nodes.Store(fuse.FUSE_ROOT_ID, &nodeRef{path: "/", lookups: 1})
	r.ids.Store("/", fuse.FUSE_ROOT_ID)
	return r
}

func (r *FuseRaw) Init(s *fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "FuseRaw"
}

// pathOf returns the engine path of a NodeID
func (r *FuseRaw) pathOf(id uint64) (string, bool) {
	n, ok := r.nodes.Load(id)
	if !ok {
		return "", false
	}
	return n.path, true
}

// register returns the NodeID for p, allocating one on first use, and counts
// one kernel lookup against it.
func (r *FuseRaw) register(p string) uint64 {
	if id, ok := r.ids.Load(p); ok {
		if n, ok := r.nodes.Load(id); ok {
			n.lookups++
			return id
		}
	}
	id := r.lastID.Add(1)
	r.nodes.Store(id, &nodeRef{path: p, lookups: 1})
	r.ids.Store(p, id)
	return id
}

func status(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	return fuse.ToStatus(filesystem.ToErrno(err))
}

func (r *FuseRaw) fillEntry(p string, out *fuse.EntryOut) fuse.Status {
	attr, err := r.fs.Getattr(p)
	if err != nil {
		return status(err)
	}
	id := r.register(p)
	attr.Ino = id
	out.NodeId = id
	out.Attr = *attr
	out.SetEntryTimeout(r.opts.EntryTimeout)
	out.SetAttrTimeout(r.opts.AttrTimeout)
	return fuse.OK
}

// Access allows everything; permission bits are enforced by the engine
func (r *FuseRaw) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	return fuse.OK
}

func (r *FuseRaw) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	out.Bsize = 4096
	out.NameLen = 255
	return fuse.OK
}

// Lookup resolves name inside the parent node and registers the child
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	parent, ok := r.pathOf(header.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	return r.fillEntry(path.Join(parent, name), out)
}

// Forget is called when the kernel discards entries from its dentry cache.
// The root is never forgotten.
func (r *FuseRaw) Forget(nodeid, nlookup uint64) {
	if nodeid == fuse.FUSE_ROOT_ID {
		return
	}
	n, ok := r.nodes.Load(nodeid)
	if !ok {
		return
	}
	if n.lookups > nlookup {
		n.lookups -= nlookup
		return
	}
	r.nodes.Delete(nodeid)
	if id, ok := r.ids.Load(n.path); ok && id == nodeid {
		r.ids.Delete(n.path)
	}
}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	attr, err := r.fs.Getattr(p)
	if err != nil {
		return status(err)
	}
	attr.Ino = input.NodeId
	out.Attr = *attr
	out.SetTimeout(r.opts.AttrTimeout)
	return fuse.OK
}

// SetAttr only honours size changes, which truncate the write buffer.
// Other attribute changes are accepted and ignored.
func (r *FuseRaw) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	logger := util.GetLogger("Fuse.SetAttr")

	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if input.Valid&fuse.FATTR_SIZE != 0 {
		logger.Debug().Str("path", p).Uint64("size", input.Size).Msg("Truncate")
		if err := r.fs.Truncate(p, int64(input.Size)); err != nil {
			return status(err)
		}
	}
	attr, err := r.fs.Getattr(p)
	if err != nil {
		return status(err)
	}
	attr.Ino = input.NodeId
	out.Attr = *attr
	out.SetTimeout(r.opts.AttrTimeout)
	return fuse.OK
}

func (r *FuseRaw) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	parent, ok := r.pathOf(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	p := path.Join(parent, name)
	if err := r.fs.Mkdir(p); err != nil {
		return status(err)
	}
	return r.fillEntry(p, out)
}

func (r *FuseRaw) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	parent, ok := r.pathOf(header.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	return status(r.fs.Rmdir(path.Join(parent, name)))
}

func (r *FuseRaw) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	parent, ok := r.pathOf(header.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	return status(r.fs.Unlink(path.Join(parent, name)))
}

// Create is refused; the only writable files already exist
func (r *FuseRaw) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	return fuse.EACCES
}

func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if err := r.fs.Open(p, input.Flags); err != nil {
		return status(err)
	}
	// kernels with atomic O_TRUNC pass truncation here instead of SetAttr
	if input.Flags&syscall.O_TRUNC != 0 {
		if err := r.fs.Truncate(p, 0); err != nil {
			return status(err)
		}
	}
	if r.opts.DirectIO {
		out.OpenFlags |= fuse.FOPEN_DIRECT_IO
	}
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return nil, fuse.ENOENT
	}
	data, err := r.fs.Read(p, int64(input.Offset), int(input.Size))
	if err != nil {
		return nil, status(err)
	}
	return fuse.ReadResultData(data), fuse.OK
}

func (r *FuseRaw) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return 0, fuse.ENOENT
	}
	n, err := r.fs.Write(p, data, int64(input.Offset))
	if err != nil {
		return 0, status(err)
	}
	return uint32(n), fuse.OK
}

func (r *FuseRaw) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	return status(r.fs.Flush(p))
}

func (r *FuseRaw) Fsync(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	return fuse.OK
}

func (r *FuseRaw) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	if p, ok := r.pathOf(input.NodeId); ok {
		r.fs.Release(p)
	}
}

func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if _, err := r.fs.Readdir(p); err != nil {
		return status(err)
	}
	return fuse.OK
}

// dirEntries lists p from offset on. The listing is recomputed on every call
// and each entry carries the offset of the entry after it, so skipping one
// never shifts the numbering.
func (r *FuseRaw) dirEntries(p string, offset uint64) ([]fuse.DirEntry, error) {
	entries, err := r.fs.Readdir(p)
	if err != nil {
		return nil, err
	}
	if offset >= uint64(len(entries)) {
		return nil, nil
	}
	out := entries[offset:]
	for i := range out {
		out[i].Off = offset + uint64(i) + 1
	}
	return out, nil
}

func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")

	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	entries, err := r.dirEntries(p, input.Offset)
	if err != nil {
		return status(err)
	}
	logger.Trace().Str("path", p).Int("entries", len(entries)).Uint64("offset", input.Offset).Msg("ReadDir called")

	for _, e := range entries {
		if id, ok := r.ids.Load(path.Join(p, e.Name)); ok {
			e.Ino = id
		}
		if !out.AddDirEntry(e) {
			break // buffer full; kernel calls again with a new offset
		}
	}
	return fuse.OK
}

// ReadDirPlus lists the directory and looks up every returned entry.
// Entries that vanish between listing and lookup are left out.
func (r *FuseRaw) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	p, ok := r.pathOf(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	entries, err := r.dirEntries(p, input.Offset)
	if err != nil {
		return status(err)
	}

	for _, e := range entries {
		child := path.Join(p, e.Name)
		attr, err := r.fs.Getattr(child)
		if err != nil {
			continue
		}
		id := r.register(child)
		e.Ino = id
		entry := out.AddDirLookupEntry(e)
		if entry == nil {
			r.Forget(id, 1)
			break
		}
		attr.Ino = id
		entry.NodeId = id
		entry.Attr = *attr
		entry.SetEntryTimeout(r.opts.EntryTimeout)
		entry.SetAttrTimeout(r.opts.AttrTimeout)
	}
	return fuse.OK
}

func (r *FuseRaw) ReleaseDir(input *fuse.ReleaseIn) {}
