// Package filesystem is the path-based engine behind the mount. It resolves
// paths, serves synthetic content, buffers config.yaml writes and commits
// them on flush.
//
// The engine is not safe for concurrent use; the FUSE server is expected to
// dispatch one operation at a time.
package filesystem

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/brettbedarf/issuefs"
	"github.com/brettbedarf/issuefs/folder"
	"github.com/brettbedarf/issuefs/internal/util"
	"github.com/brettbedarf/issuefs/store"
	"github.com/hashicorp/go-multierror"
)

type FileSystem struct {
	registry *issuefs.Registry
	versions []issuefs.VersionInfo // probed once at mount
	mounted  time.Time

	folders map[string]*folder.Folder
	order   []string          // folder names in creation order
	buffers map[string][]byte // pending config.yaml writes by path

	ctx context.Context // used for refresh; never cancelled
}

// NewFS creates an empty engine. versions are the probe results rendered in
// version.txt.
func NewFS(reg *issuefs.Registry, versions []issuefs.VersionInfo) *FileSystem {
	if reg == nil {
		reg = issuefs.NewRegistry(nil)
	}
	return &FileSystem{
		registry: reg,
		versions: versions,
		mounted:  time.Now(),
		folders:  make(map[string]*folder.Folder),
		buffers:  make(map[string][]byte),
		ctx:      context.Background(),
	}
}

// Folders returns all folders in creation order
func (fs *FileSystem) Folders() []*folder.Folder {
	out := make([]*folder.Folder, 0, len(fs.order))
	for _, name := range fs.order {
		out = append(out, fs.folders[name])
	}
	return out
}

// Folder returns the folder called name
func (fs *FileSystem) Folder(name string) (*folder.Folder, bool) {
	f, ok := fs.folders[name]
	return f, ok
}

// RestoreFolder adds a folder from saved configuration, i.e. from the store at
// mount time. When refresh is set and the folder is enabled its issues are
// fetched before returning.
func (fs *FileSystem) RestoreFolder(name string, cfg folder.Config, refresh bool) error {
	logger := util.GetLogger("FS.RestoreFolder")

	if err := fs.validFolderName(name); err != nil {
		return pathErr("restore", "/"+name, err)
	}
	f := folder.NewWithConfig(name, cfg)
	fs.addFolder(f)
	logger.Info().Str("folder", name).Bool("enabled", cfg.Enabled).Msg("Restored query folder")

	if refresh && cfg.Enabled && cfg.HasQueries() {
		if err := f.Refresh(fs.ctx, fs.registry); err != nil {
			logger.Warn().Err(err).Str("folder", name).Msg("Refresh finished with errors")
		}
	}
	return nil
}

// LoadFolders restores every saved folder in order. Folders that cannot be
// restored are skipped and reported in the returned error.
func (fs *FileSystem) LoadFolders(saved []store.SavedFolder, refresh bool) error {
	var errs *multierror.Error
	for _, sf := range saved {
		if err := fs.RestoreFolder(sf.Name, sf.Config, refresh); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (fs *FileSystem) validFolderName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrPermissionDenied
	}
	if name == VersionFileName {
		return ErrAlreadyExists
	}
	if _, ok := fs.folders[name]; ok {
		return ErrAlreadyExists
	}
	return nil
}

func (fs *FileSystem) addFolder(f *folder.Folder) {
	fs.folders[f.Name()] = f
	fs.order = append(fs.order, f.Name())
}

func (fs *FileSystem) removeFolder(name string) {
	delete(fs.folders, name)
	fs.order = slices.DeleteFunc(fs.order, func(n string) bool { return n == name })
	delete(fs.buffers, cleanPath(name+"/"+folder.ConfigFileName))
}

// content recomputes the synthetic bytes of a file entry
func (fs *FileSystem) content(e entry) ([]byte, error) {
	if e.isDir() {
		return nil, fmt.Errorf("no content for directory: %w", ErrPermissionDenied)
	}
	switch e.kind {
	case versionEntry:
		return []byte(fs.versionText()), nil
	case configEntry:
		return e.folder.Encode()
	case issueEntry:
		return []byte(e.issue.Render()), nil
	}
	return nil, ErrNotFound
}
