package domain

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the layout of ledger and corpus dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the layout of ledger and corpus times.
	TimeLayout = "15:04:05"
	// legacyDateLayout is the date format of corpora written by earlier releases ("16 May 2024").
	legacyDateLayout = "02 Jan 2006"
)

// Source identifies the ledger table a record lives in
type Source string

const (
	SourceImage         Source = "image"
	SourceTranscription Source = "transcription"
)

// IsValid reports whether the source is a known ledger table
func (s Source) IsValid() bool {
	switch s {
	case SourceImage, SourceTranscription:
		return true
	}
	return false
}

// CaptureFrame is one extracted screen sample or transcription before it reaches the ledger.
type CaptureFrame struct {
	Source     Source
	Image      []byte // optional, usually discarded after extraction
	Title      string // transcriptions only
	Text       string
	Metadata   string
	CapturedAt time.Time
}

// Date returns the capture date in DateLayout.
func (f *CaptureFrame) Date() string {
	return f.CapturedAt.Format(DateLayout)
}

// Time returns the capture time in TimeLayout.
func (f *CaptureFrame) Time() string {
	return f.CapturedAt.Format(TimeLayout)
}

// LedgerRecord is a durable ledger row. IDs are assigned by the store and never reused.
type LedgerRecord struct {
	ID        int64
	Source    Source
	Text      string
	Date      string
	Time      string
	Processed bool
}

// Ref returns the reference used to mark this record processed.
func (r LedgerRecord) Ref() RecordRef {
	return RecordRef{Source: r.Source, ID: r.ID}
}

// Valid reports whether the record carries the date and time needed for grouping.
func (r LedgerRecord) Valid() bool {
	return r.Date != "" && r.Time != ""
}

// RecordRef addresses one ledger row across both tables.
type RecordRef struct {
	Source Source
	ID     int64
}

func (r RecordRef) String() string {
	return fmt.Sprintf("%s:%d", r.Source, r.ID)
}

// FileKey is the persisted watcher dedup key.
type FileKey struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// DeadLetter records a capture whose text extraction failed.
type DeadLetter struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dead-letter stages
const (
	StageRead        = "read"
	StageExtraction  = "extraction"
	StageStore       = "store"
	StageConsolidate = "consolidate"
)

// ParseDate parses a ledger or corpus date. It accepts DateLayout and the legacy
// "02 Jan 2006" layout.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(legacyDateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", s)
	}
	return t, nil
}
