package filesystem

import (
	"strings"

	"github.com/brettbedarf/issuefs"
	"github.com/brettbedarf/issuefs/folder"
)

// VersionFileName is the diagnostic file at the root
const VersionFileName = "version.txt"

const issueFileExt = ".txt"

type entryKind int

const (
	rootEntry entryKind = iota
	versionEntry
	folderEntry
	configEntry
	issueEntry
)

// entry is a resolved path
type entry struct {
	kind   entryKind
	folder *folder.Folder
	issue  *issuefs.Issue
}

func (e entry) isDir() bool {
	return e.kind == rootEntry || e.kind == folderEntry
}

// splitPath splits an absolute path into components, ignoring empty ones.
// "/" yields no components.
func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// cleanPath returns the canonical form of p used as buffer key
func cleanPath(p string) string {
	return "/" + strings.Join(splitPath(p), "/")
}

// resolve maps a path onto the fixed grammar:
//
//	/  /version.txt  /<folder>  /<folder>/config.yaml  /<folder>/<issueKey>.txt
func (fs *FileSystem) resolve(p string) (entry, error) {
	parts := splitPath(p)
	switch len(parts) {
	case 0:
		return entry{kind: rootEntry}, nil
	case 1:
		if parts[0] == VersionFileName {
			return entry{kind: versionEntry}, nil
		}
		if f, ok := fs.folders[parts[0]]; ok {
			return entry{kind: folderEntry, folder: f}, nil
		}
	case 2:
		f, ok := fs.folders[parts[0]]
		if !ok {
			break
		}
		name := parts[1]
		if name == folder.ConfigFileName {
			return entry{kind: configEntry, folder: f}, nil
		}
		if key, ok := strings.CutSuffix(name, issueFileExt); ok {
			if issue, ok := f.Issue(key); ok {
				return entry{kind: issueEntry, folder: f, issue: issue}, nil
			}
		}
	}
	return entry{}, ErrNotFound
}

// isConfigPath reports whether p names /<folder>/config.yaml, existing or not
func isConfigPath(p string) (folderName string, ok bool) {
	parts := splitPath(p)
	if len(parts) == 2 && parts[1] == folder.ConfigFileName {
		return parts[0], true
	}
	return "", false
}
