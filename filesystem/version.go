package filesystem

import (
	"fmt"
	"strings"
	"time"
)

// versionText renders version.txt from the mount time probe results
func (fs *FileSystem) versionText() string {
	var b strings.Builder
	b.WriteString("issuefs tracker connections\n\n")

	if len(fs.versions) == 0 {
		b.WriteString("No issue trackers configured\n")
		return b.String()
	}

	checked := fs.mounted
	for _, v := range fs.versions {
		fmt.Fprintf(&b, "%s:\n", v.Backend.DisplayName())
		if !v.Success {
			reason := v.Error
			if reason == "" {
				reason = "unknown error"
			}
			fmt.Fprintf(&b, "  Error getting version: %s\n\n", reason)
			continue
		}
		writeField(&b, "Server", v.ServerTitle)
		writeField(&b, "Version", v.Version)
		writeField(&b, "Build", v.Build)
		writeField(&b, "Base URL", v.BaseURL)
		writeField(&b, "User", v.User)
		b.WriteByte('\n')
		if !v.CheckedAt.IsZero() {
			checked = v.CheckedAt
		}
	}
	fmt.Fprintf(&b, "Connection tested at mount time: %s\n", checked.Format(time.RFC3339))
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s: %s\n", label, value)
}
