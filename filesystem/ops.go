package filesystem

import (
	"errors"
	"syscall"
	"time"

	"github.com/brettbedarf/issuefs/folder"
	"github.com/brettbedarf/issuefs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// MaxConfigSize caps a config.yaml write buffer
const MaxConfigSize = 1 << 20

// Getattr returns attributes for path. File sizes are the length of freshly
// recomputed content so they may change between calls. Ino is left zero.
func (fs *FileSystem) Getattr(path string) (*fuse.Attr, error) {
	e, err := fs.resolve(path)
	if err != nil {
		return nil, pathErr("getattr", path, err)
	}

	switch e.kind {
	case rootEntry:
		return dirAttr(fs.mounted), nil
	case folderEntry:
		return dirAttr(fs.folderTime(e.folder)), nil
	}

	data, err := fs.content(e)
	if err != nil {
		return nil, pathErr("getattr", path, err)
	}
	switch e.kind {
	case configEntry:
		return fileAttr(fs.mounted, ConfigPerms, len(data)), nil
	case issueEntry:
		return fileAttr(fs.folderTime(e.folder), ReadOnlyPerms, len(data)), nil
	default:
		return fileAttr(fs.mounted, ReadOnlyPerms, len(data)), nil
	}
}

func (fs *FileSystem) folderTime(f *folder.Folder) time.Time {
	if t := f.LastUpdated(); !t.IsZero() {
		return t
	}
	return f.Created()
}

// Readdir lists a directory without "." and "..". The root holds
// version.txt and every folder; a folder holds config.yaml and one file per
// cached issue in cache order.
func (fs *FileSystem) Readdir(path string) ([]fuse.DirEntry, error) {
	e, err := fs.resolve(path)
	if err != nil {
		return nil, pathErr("readdir", path, err)
	}

	switch e.kind {
	case rootEntry:
		entries := make([]fuse.DirEntry, 0, len(fs.order)+1)
		entries = append(entries, fuse.DirEntry{Name: VersionFileName, Mode: FileAttr | ReadOnlyPerms})
		for _, name := range fs.order {
			entries = append(entries, fuse.DirEntry{Name: name, Mode: DirAttr | DirPerms})
		}
		return entries, nil
	case folderEntry:
		issues := e.folder.Issues()
		entries := make([]fuse.DirEntry, 0, len(issues)+1)
		entries = append(entries, fuse.DirEntry{Name: folder.ConfigFileName, Mode: FileAttr | ConfigPerms})
		for _, issue := range issues {
			entries = append(entries, fuse.DirEntry{Name: issue.FileName(), Mode: FileAttr | ReadOnlyPerms})
		}
		return entries, nil
	}
	return nil, pathErr("readdir", path, ErrNotFound)
}

// Open succeeds for any resolvable path
func (fs *FileSystem) Open(path string, flags uint32) error {
	logger := util.GetLogger("FS.Open")
	logger.Trace().Str("path", path).Uint32("flags", flags).Msg("Open called")

	if _, err := fs.resolve(path); err != nil {
		return pathErr("open", path, err)
	}
	return nil
}

// Read returns content[offset:offset+size] of freshly recomputed content.
// Offsets past the end yield an empty slice.
func (fs *FileSystem) Read(path string, offset int64, size int) ([]byte, error) {
	e, err := fs.resolve(path)
	if err != nil {
		return nil, pathErr("read", path, err)
	}
	data, err := fs.content(e)
	if err != nil {
		return nil, pathErr("read", path, err)
	}
	if offset < 0 || offset >= int64(len(data)) || size <= 0 {
		return []byte{}, nil
	}
	end := min(offset+int64(size), int64(len(data)))
	return data[offset:end], nil
}

// Write stores data at offset in the path's write buffer, zero-filling any gap.
// Only config.yaml is writable and the live folder is untouched until Flush.
func (fs *FileSystem) Write(path string, data []byte, offset int64) (int, error) {
	name, ok := isConfigPath(path)
	if !ok {
		return 0, pathErr("write", path, ErrPermissionDenied)
	}
	if _, ok := fs.folders[name]; !ok {
		return 0, pathErr("write", path, ErrNotFound)
	}
	if offset < 0 {
		return 0, pathErr("write", path, syscall.EINVAL)
	}
	if offset > MaxConfigSize || offset+int64(len(data)) > MaxConfigSize {
		return 0, pathErr("write", path, syscall.EFBIG)
	}

	key := cleanPath(path)
	buf := fs.buffers[key]
	if end := int(offset) + len(data); end > len(buf) {
		buf = append(buf, make([]byte, end-len(buf))...)
	}
	copy(buf[offset:], data)
	fs.buffers[key] = buf
	return len(data), nil
}

// Truncate resizes the path's write buffer, creating it if needed.
// Only config.yaml can be truncated.
func (fs *FileSystem) Truncate(path string, length int64) error {
	name, ok := isConfigPath(path)
	if !ok {
		return pathErr("truncate", path, ErrPermissionDenied)
	}
	if _, ok := fs.folders[name]; !ok {
		return pathErr("truncate", path, ErrNotFound)
	}
	if length < 0 {
		return pathErr("truncate", path, syscall.EINVAL)
	}
	if length > MaxConfigSize {
		return pathErr("truncate", path, syscall.EFBIG)
	}

	key := cleanPath(path)
	buf := fs.buffers[key]
	if int(length) <= len(buf) {
		buf = buf[:length]
	} else {
		buf = append(buf, make([]byte, int(length)-len(buf))...)
	}
	fs.buffers[key] = buf
	return nil
}

// Flush commits the buffered config.yaml of path.
//
// The buffer is decoded and diffed against the folder's configuration. An
// invalid document is logged and discarded, keeping the previous
// configuration. A disabled folder, or one without any query or issue id,
// has its issues cleared; otherwise any change triggers a synchronous refresh.
// Flush of other paths, or without pending writes, does nothing.
func (fs *FileSystem) Flush(path string) error {
	logger := util.GetLogger("FS.Flush")

	name, ok := isConfigPath(path)
	if !ok {
		return nil
	}
	f, ok := fs.folders[name]
	if !ok {
		return nil
	}
	key := cleanPath(path)
	buf, ok := fs.buffers[key]
	if !ok {
		return nil
	}

	cfg, err := folder.Decode(buf)
	if err != nil {
		var perr *folder.ParseError
		if errors.As(err, &perr) {
			logger.Warn().Err(err).Str("folder", name).Msg("Discarding invalid config.yaml; previous configuration kept")
		} else {
			logger.Error().Err(err).Str("folder", name).Msg("Could not decode config.yaml")
		}
		delete(fs.buffers, key)
		return nil
	}

	changed := f.SetConfig(cfg)
	logger.Debug().Str("folder", name).Bool("changed", changed).Msg("Applied config.yaml")

	switch {
	case !cfg.Enabled || !cfg.HasQueries():
		f.ClearIssues()
	case changed:
		logger.Info().Str("folder", name).Msg("Configuration changed, fetching issues")
		if err := f.Refresh(fs.ctx, fs.registry); err != nil {
			logger.Warn().Err(err).Str("folder", name).Msg("Refresh finished with errors")
		}
	}
	return nil
}

// Release drops the path's write buffer
func (fs *FileSystem) Release(path string) {
	delete(fs.buffers, cleanPath(path))
}

// Mkdir creates a query folder. Only root-level folders may be created.
func (fs *FileSystem) Mkdir(path string) error {
	logger := util.GetLogger("FS.Mkdir")

	parts := splitPath(path)
	switch len(parts) {
	case 0:
		return pathErr("mkdir", path, ErrAlreadyExists)
	case 1:
	default:
		return pathErr("mkdir", path, ErrPermissionDenied)
	}

	name := parts[0]
	if err := fs.validFolderName(name); err != nil {
		return pathErr("mkdir", path, err)
	}
	fs.addFolder(folder.New(name))
	logger.Info().Str("folder", name).Msg("Created query folder")
	return nil
}

// Rmdir removes a query folder and its cached issues. Saved copies in the
// store are untouched until the next save.
func (fs *FileSystem) Rmdir(path string) error {
	logger := util.GetLogger("FS.Rmdir")

	parts := splitPath(path)
	if len(parts) != 1 || parts[0] == VersionFileName {
		return pathErr("rmdir", path, ErrPermissionDenied)
	}
	name := parts[0]
	if _, ok := fs.folders[name]; !ok {
		return pathErr("rmdir", path, ErrNotFound)
	}
	fs.removeFolder(name)
	logger.Info().Str("folder", name).Msg("Removed query folder")
	return nil
}

// Unlink always fails; synthetic and config files cannot be deleted
func (fs *FileSystem) Unlink(path string) error {
	return pathErr("unlink", path, ErrPermissionDenied)
}
