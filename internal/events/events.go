// Package events consumes the daemon's long-polled event feed and turns it
// into cache invalidations and watermark updates.
package events

import (
	"encoding/json"
	"time"
)

// Event kinds consumed from GET /rest/events.
const (
	KindLocalIndexUpdated    = "LocalIndexUpdated"
	KindLocalChangeDetected  = "LocalChangeDetected"
	KindRemoteChangeDetected = "RemoteChangeDetected"
	KindItemFinished         = "ItemFinished"
	KindFolderSummary        = "FolderSummary"
	KindStateChanged         = "StateChanged"
)

// RawEvent is one element of the event feed before its data is decoded.
type RawEvent struct {
	ID       uint64          `json:"id"`
	GlobalID uint64          `json:"globalID"`
	Time     time.Time       `json:"time"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
}

// Payload is the decoded data of an event. The set of variants is closed.
type Payload interface {
	isPayload()
}

// IndexUpdated reports a batch of changed files in a folder.
type IndexUpdated struct {
	Folder    string
	Filenames []string
}

// ItemChanged reports one item written locally, remotely, or finished syncing.
type ItemChanged struct {
	Folder   string
	Item     string
	ItemType string
	Error    string
}

// FolderSummary carries a folder status snapshot pushed by the daemon.
type FolderSummary struct {
	Folder           string
	State            string
	Sequence         int64
	ReceiveOnlyItems int64
}

// StateChanged reports a folder state transition.
type StateChanged struct {
	Folder string
	From   string
	To     string
}

// Ignored is any event kind the cache does not care about, or a known kind
// whose data could not be decoded.
type Ignored struct {
	Type string
}

func (IndexUpdated) isPayload()  {}
func (ItemChanged) isPayload()   {}
func (FolderSummary) isPayload() {}
func (StateChanged) isPayload()  {}
func (Ignored) isPayload()       {}

type indexUpdatedData struct {
	Folder    string   `json:"folder"`
	Filenames []string `json:"filenames"`
}

type itemData struct {
	Folder   string  `json:"folder"`
	FolderID string  `json:"folderID"`
	Path     string  `json:"path"`
	Item     string  `json:"item"`
	Type     string  `json:"type"`
	Error    *string `json:"error"`
}

type folderSummaryData struct {
	Folder  string `json:"folder"`
	Summary struct {
		State                 string `json:"state"`
		Sequence              int64  `json:"sequence"`
		ReceiveOnlyTotalItems int64  `json:"receiveOnlyTotalItems"`
	} `json:"summary"`
}

type stateChangedData struct {
	Folder string `json:"folder"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Decode maps a raw event to its payload variant. It never fails: unknown
// kinds and undecodable data both yield Ignored.
func Decode(ev RawEvent) Payload {
	switch ev.Type {
	case KindLocalIndexUpdated:
		var d indexUpdatedData
		if err := json.Unmarshal(ev.Data, &d); err != nil || d.Folder == "" {
			return Ignored{Type: ev.Type}
		}
		return IndexUpdated{Folder: d.Folder, Filenames: d.Filenames}

	case KindLocalChangeDetected, KindRemoteChangeDetected, KindItemFinished:
		var d itemData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return Ignored{Type: ev.Type}
		}
		folder := d.Folder
		if folder == "" {
			folder = d.FolderID
		}
		item := d.Item
		if item == "" {
			item = d.Path
		}
		if folder == "" || item == "" {
			return Ignored{Type: ev.Type}
		}
		out := ItemChanged{Folder: folder, Item: item, ItemType: d.Type}
		if d.Error != nil {
			out.Error = *d.Error
		}
		return out

	case KindFolderSummary:
		var d folderSummaryData
		if err := json.Unmarshal(ev.Data, &d); err != nil || d.Folder == "" {
			return Ignored{Type: ev.Type}
		}
		return FolderSummary{
			Folder:           d.Folder,
			State:            d.Summary.State,
			Sequence:         d.Summary.Sequence,
			ReceiveOnlyItems: d.Summary.ReceiveOnlyTotalItems,
		}

	case KindStateChanged:
		var d stateChangedData
		if err := json.Unmarshal(ev.Data, &d); err != nil || d.Folder == "" {
			return Ignored{Type: ev.Type}
		}
		return StateChanged{Folder: d.Folder, From: d.From, To: d.To}
	}
	return Ignored{Type: ev.Type}
}
