package models

import "time"

// Folder types reported by the daemon
const (
	FolderTypeSendReceive = "sendreceive"
	FolderTypeSendOnly    = "sendonly"
	FolderTypeReceiveOnly = "receiveonly"
)

// Folder is one synchronized folder from GET /rest/config/folders
type Folder struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Path   string `json:"path"`
	Type   string `json:"type"`
	Paused bool   `json:"paused"`
}

// DisplayName returns the label, falling back to the folder ID.
func (f Folder) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

// IsReceiveOnly reports whether local changes can be reverted on this folder.
func (f Folder) IsReceiveOnly() bool {
	return f.Type == FolderTypeReceiveOnly
}

// FolderStatus is the snapshot from GET /rest/db/status?folder=<id>
type FolderStatus struct {
	State                 string    `json:"state"`
	StateChanged          time.Time `json:"stateChanged"`
	Error                 string    `json:"error"`
	Errors                int       `json:"errors"`
	Sequence              int64     `json:"sequence"`
	ReceiveOnlyTotalItems int       `json:"receiveOnlyTotalItems"`
	NeedFiles             int       `json:"needFiles"`
	NeedDirectories       int       `json:"needDirectories"`
	NeedDeletes           int       `json:"needDeletes"`
	NeedBytes             int64     `json:"needBytes"`
	GlobalFiles           int       `json:"globalFiles"`
	GlobalBytes           int64     `json:"globalBytes"`
	LocalFiles            int       `json:"localFiles"`
	LocalBytes            int64     `json:"localBytes"`
	InSyncFiles           int       `json:"inSyncFiles"`
}

// NeedTotal is the number of items the folder still has to pull.
func (s FolderStatus) NeedTotal() int {
	return s.NeedFiles + s.NeedDirectories + s.NeedDeletes
}

// NeedItem is one entry of the needed-files listing.
type NeedItem struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// NeedResponse is the body of GET /rest/db/need?folder=<id>
type NeedResponse struct {
	Progress []NeedItem `json:"progress"`
	Queued   []NeedItem `json:"queued"`
	Rest     []NeedItem `json:"rest"`
	Page     int        `json:"page"`
	PerPage  int        `json:"perpage"`
}

// Paths returns every needed path across progress, queued and rest.
func (n NeedResponse) Paths() []string {
	out := make([]string, 0, len(n.Progress)+len(n.Queued)+len(n.Rest))
	for _, group := range [][]NeedItem{n.Progress, n.Queued, n.Rest} {
		for _, item := range group {
			if item.Name != "" {
				out = append(out, item.Name)
			}
		}
	}
	return out
}

// FileVersion is one archived version from GET /rest/folder/versions
type FileVersion struct {
	VersionTime time.Time `json:"versionTime"`
	ModTime     time.Time `json:"modTime"`
	Size        int64     `json:"size"`
}

// Ignores is the body of GET/POST /rest/db/ignores
type Ignores struct {
	Ignore   []string `json:"ignore"`
	Expanded []string `json:"expanded,omitempty"`
}
