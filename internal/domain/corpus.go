package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// EntryText is one {time, text} pair inside a DayBucket.
type EntryText struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// DayBucket groups corpus entries of one date in arrival order.
type DayBucket struct {
	Date    string      `json:"date"`
	Entries []EntryText `json:"entries"`
}

// CorpusEntry is a flattened {date, time, text} triple.
type CorpusEntry struct {
	Date string
	Time string
	Text string
}

// DocumentID returns the index identifier of the entry.
func (e CorpusEntry) DocumentID() string {
	return DocumentID(e.Date, e.Time, e.Text)
}

// PageContent is the text embedded for the entry, prefixed with its timestamp.
func (e CorpusEntry) PageContent() string {
	return "Date: " + e.Date + ", Time: " + e.Time + "\n" + e.Text
}

// DocumentID derives an identifier from date and time. A short digest of the text
// separates captures recorded within the same second.
func DocumentID(date, time, text string) string {
	sum := sha256.Sum256([]byte(text))
	return date + "T" + time + "-" + hex.EncodeToString(sum[:4])
}

// Corpus is the date-grouped text corpus, in delta or full form.
type Corpus []DayBucket

// Entries flattens the corpus in bucket order, then arrival order.
func (c Corpus) Entries() []CorpusEntry {
	var out []CorpusEntry
	for _, b := range c {
		for _, e := range b.Entries {
			out = append(out, CorpusEntry{Date: b.Date, Time: e.Time, Text: e.Text})
		}
	}
	return out
}

// Bucket returns the bucket for date, or nil.
func (c Corpus) Bucket(date string) *DayBucket {
	for i := range c {
		if c[i].Date == date {
			return &c[i]
		}
	}
	return nil
}

// Len returns the total number of entries.
func (c Corpus) Len() int {
	n := 0
	for _, b := range c {
		n += len(b.Entries)
	}
	return n
}
