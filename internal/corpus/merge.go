package corpus

import (
	"log"

	"github.com/cloo-solutions/remind/internal/domain"
)

// Group buckets ledger records by date, keeping arrival order inside a bucket and
// first-seen order across buckets. Records missing a date or time are skipped and
// reported through the second return value.
func Group(records []domain.LedgerRecord) (domain.Corpus, []domain.LedgerRecord) {
	var out domain.Corpus
	var skipped []domain.LedgerRecord
	index := make(map[string]int)

	for _, rec := range records {
		if !rec.Valid() {
			log.Printf("corpus: skipping %s: missing date or time", rec.Ref())
			skipped = append(skipped, rec)
			continue
		}
		i, ok := index[rec.Date]
		if !ok {
			i = len(out)
			index[rec.Date] = i
			out = append(out, domain.DayBucket{Date: rec.Date})
		}
		out[i].Entries = append(out[i].Entries, domain.EntryText{Time: rec.Time, Text: rec.Text})
	}
	return out, skipped
}

// Merge appends delta into full, matching buckets by exact date string and
// creating new buckets at the end. Entries whose document id already exists in
// the bucket are skipped, so merging the same delta twice is a no-op. full is
// not modified.
func Merge(full, delta domain.Corpus) (domain.Corpus, int) {
	merged := make(domain.Corpus, len(full), len(full)+len(delta))
	for i, b := range full {
		merged[i] = domain.DayBucket{Date: b.Date, Entries: append([]domain.EntryText(nil), b.Entries...)}
	}

	added := 0
	for _, db := range delta {
		bucket := merged.Bucket(db.Date)
		if bucket == nil {
			merged = append(merged, domain.DayBucket{Date: db.Date})
			bucket = &merged[len(merged)-1]
		}

		seen := make(map[string]struct{}, len(bucket.Entries))
		for _, e := range bucket.Entries {
			seen[domain.DocumentID(db.Date, e.Time, e.Text)] = struct{}{}
		}
		for _, e := range db.Entries {
			id := domain.DocumentID(db.Date, e.Time, e.Text)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			bucket.Entries = append(bucket.Entries, e)
			added++
		}
	}
	return merged, added
}
