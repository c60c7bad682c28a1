// Package store persists the configuration of folders marked persistent
// across mounts. One YAML file holds a section per absolute mount path.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/brettbedarf/issuefs/folder"
	"github.com/brettbedarf/issuefs/internal/util"
	"github.com/facebookgo/atomicfile"
	"gopkg.in/yaml.v3"
)

// Header is written at the top of every store file
const Header = `# issuefs persistent folder store
#
# Written by issuefs on unmount. Only folders with "persistent: true" are kept,
# and only their configuration (never cached issues).
#
# Schema:
#   mounts:
#     <absolute mount path>:
#       saved_at: <RFC3339 timestamp of the last save>
#       folders:
#         <folder name>:
#           enabled: <bool>
#           persistent: true
#           jira:     {jql: <JQL>, ids: [<issue key>, ...]}
#           github:   {repo: <owner/name>, query: <search>, ids: [<number>, ...]}
#           bugzilla: {query: <summary words>, ids: [<bug id>, ...]}
`

// MountSection is the persisted state of one mount path
type MountSection struct {
	SavedAt time.Time                `yaml:"saved_at"`
	Folders map[string]folder.Config `yaml:"folders"`
}

// File is the whole store document
type File struct {
	Mounts map[string]MountSection `yaml:"mounts"`
}

// SavedFolder is one folder restored from the store
type SavedFolder struct {
	Name   string
	Config folder.Config
}

// Store reads and writes the shared store file. It does no cross-process
// locking: concurrent saves from different mounts race and the last write wins.
type Store struct {
	path string
	now  func() time.Time
}

// New creates a Store backed by the file at path
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the store file location
func (s *Store) Path() string {
	return s.path
}

// Load returns the folders saved for mountPath sorted by name.
// A missing store file is created with only the header and yields no folders.
func (s *Store) Load(mountPath string) ([]SavedFolder, error) {
	logger := util.GetLogger("Store.Load")

	file, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info().Str("path", s.path).Msg("No store file; creating a new one")
		if werr := s.write(&File{Mounts: map[string]MountSection{}}); werr != nil {
			return nil, fmt.Errorf("failed to create store: %w", werr)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	section, ok := file.Mounts[mountPath]
	if !ok {
		logger.Debug().Str("mount", mountPath).Msg("No saved folders for mount")
		return nil, nil
	}

	saved := make([]SavedFolder, 0, len(section.Folders))
	for name, cfg := range section.Folders {
		saved = append(saved, SavedFolder{Name: name, Config: cfg})
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].Name < saved[j].Name })

	logger.Info().Str("mount", mountPath).Int("folders", len(saved)).Msg("Loaded saved folders")
	return saved, nil
}

// Save replaces the mountPath section with the persistent subset of folders.
// Nothing is written when no folder is persistent. Other mount sections are
// kept; an unreadable store is replaced.
func (s *Store) Save(mountPath string, folders []*folder.Folder) error {
	logger := util.GetLogger("Store.Save")

	keep := make(map[string]folder.Config)
	for _, f := range folders {
		if cfg := f.Config(); cfg.Persistent {
			keep[f.Name()] = cfg
		}
	}
	if len(keep) == 0 {
		logger.Debug().Str("mount", mountPath).Msg("No persistent folders; store left untouched")
		return nil
	}

	file, err := s.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str("path", s.path).Msg("Could not read store; starting empty")
		}
		file = &File{}
	}
	if file.Mounts == nil {
		file.Mounts = make(map[string]MountSection)
	}
	file.Mounts[mountPath] = MountSection{SavedAt: s.now().UTC(), Folders: keep}

	if err := s.write(file); err != nil {
		return err
	}
	logger.Info().Str("mount", mountPath).Int("folders", len(keep)).Str("path", s.path).Msg("Saved persistent folders")
	return nil
}

func (s *Store) read() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", s.path, err)
	}
	return &file, nil
}

// write replaces the whole store atomically, header first
func (s *Store) write(file *File) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(Header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	f, err := atomicfile.New(s.path, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open store for writing: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Abort()
		return fmt.Errorf("failed to write store: %w", err)
	}
	return f.Close()
}
