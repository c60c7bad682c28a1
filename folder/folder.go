// Package folder implements the query folder: one root-level directory's
// configuration, its config.yaml codec and its cached issue list.
package folder

import (
	"time"

	"github.com/brettbedarf/issuefs"
)

// ConfigFileName is the only writable file inside a folder
const ConfigFileName = "config.yaml"

// Folder holds one directory's configuration and the issues of its last refresh.
// Folder is not safe for concurrent use.
type Folder struct {
	name        string
	cfg         Config
	issues      []*issuefs.Issue
	lastUpdated time.Time
	created     time.Time
}

// New creates a disabled folder with empty configuration
func New(name string) *Folder {
	return &Folder{name: name, created: time.Now()}
}

// NewWithConfig creates a folder from a previously saved configuration.
// The issue cache starts empty.
func NewWithConfig(name string, cfg Config) *Folder {
	f := New(name)
	f.cfg = cfg
	return f
}

// Name returns the folder's immutable name
func (f *Folder) Name() string {
	return f.name
}

// Config returns a copy of the current configuration
func (f *Folder) Config() Config {
	return f.cfg
}

// SetConfig replaces the configuration and reports whether any tracked field changed.
// The issue cache is left alone.
func (f *Folder) SetConfig(cfg Config) (changed bool) {
	changed = !f.cfg.Equal(cfg)
	f.cfg = cfg
	return changed
}

// Issues returns the cached issues in cache order
func (f *Folder) Issues() []*issuefs.Issue {
	return f.issues
}

// Issue finds a cached issue by universal key
func (f *Folder) Issue(key string) (*issuefs.Issue, bool) {
	for _, i := range f.issues {
		if i.Key == key {
			return i, true
		}
	}
	return nil, false
}

// LastUpdated is the time of the last refresh or clear; zero if never
func (f *Folder) LastUpdated() time.Time {
	return f.lastUpdated
}

// Created is the time the folder was created in this session
func (f *Folder) Created() time.Time {
	return f.created
}

// ClearIssues empties the cache
func (f *Folder) ClearIssues() {
	f.issues = nil
	f.lastUpdated = time.Now()
}

// Encode serializes the current configuration. See [Encode].
func (f *Folder) Encode() ([]byte, error) {
	return Encode(f.cfg)
}
