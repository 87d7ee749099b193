package models

import (
	"path"
	"strings"
	"time"
)

// Entry types as reported by the browse and file endpoints.
// Older daemons use the short forms.
const (
	EntryTypeFile      = "FILE_INFO_TYPE_FILE"
	EntryTypeDirectory = "FILE_INFO_TYPE_DIRECTORY"
	EntryTypeSymlink   = "FILE_INFO_TYPE_SYMLINK"
)

// Entry is one child of a directory listing (GET /rest/db/browse?levels=0).
type Entry struct {
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return IsDirectoryType(e.Type)
}

// IsDirectoryType reports whether a daemon-reported item type denotes a directory.
func IsDirectoryType(t string) bool {
	switch strings.ToLower(t) {
	case "dir", "directory", "file_info_type_directory":
		return true
	}
	return false
}

// JoinPath joins a folder-relative prefix and a child name with "/".
// The root prefix is the empty string.
func JoinPath(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// ParentDir returns the folder-relative directory containing p ("" for the root).
func ParentDir(p string) string {
	p = strings.Trim(p, "/")
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// Local flag bits on FileInfo.LocalFlags
const (
	FlagLocalUnsupported = 1 << 0
	FlagLocalIgnored     = 1 << 1
	FlagLocalMustRescan  = 1 << 2
	FlagLocalReceiveOnly = 1 << 3
)

// FileInfo is one side (local or global) of GET /rest/db/file
type FileInfo struct {
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Size          int64     `json:"size"`
	Modified      time.Time `json:"modified"`
	Deleted       bool      `json:"deleted"`
	Ignored       bool      `json:"ignored"`
	Invalid       bool      `json:"invalid"`
	NoPermissions bool      `json:"noPermissions"`
	LocalFlags    uint32    `json:"localFlags"`
	Sequence      int64     `json:"sequence"`
	Version       []string  `json:"version"`
}

// FileDetail is the body of GET /rest/db/file?folder=<id>&file=<path>
type FileDetail struct {
	Local  *FileInfo `json:"local"`
	Global *FileInfo `json:"global"`
}
