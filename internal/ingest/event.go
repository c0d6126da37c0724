// Package ingest watches the capture and transcription directories, extracts text
// from every new stable file and records it in the ledger.
package ingest

import "fmt"

// EventKind distinguishes the two filesystem events the watcher reacts to.
type EventKind int

const (
	FileCreated EventKind = iota + 1
	DirectoryCreated
)

func (k EventKind) String() string {
	switch k {
	case FileCreated:
		return "file_created"
	case DirectoryCreated:
		return "directory_created"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a creation observed under one of the watched roots.
type Event struct {
	Kind EventKind
	Path string
}
