package ingest

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/rwcarlsen/goexif/exif"
)

// CaptureTime returns when an image was taken: the EXIF DateTime when present,
// else the time encoded in a capture path (<YYYY-MM-DD>/Screen_HH-MM-SS-ffffff.jpeg),
// else fallback.
func CaptureTime(path string, fallback time.Time) time.Time {
	if t, ok := exifTime(path); ok {
		return t
	}
	if t, ok := captureNameTime(path); ok {
		return t
	}
	return fallback
}

func exifTime(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func captureNameTime(path string) (time.Time, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stamp, ok := strings.CutPrefix(base, "Screen_")
	if !ok {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(domain.DateLayout, filepath.Base(filepath.Dir(path)), time.Local)
	if err != nil {
		return time.Time{}, false
	}

	parts := strings.Split(stamp, "-")
	if len(parts) != 4 {
		return time.Time{}, false
	}
	var nums [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	if nums[0] > 23 || nums[1] > 59 || nums[2] > 59 {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), nums[0], nums[1], nums[2], nums[3]*1000, time.Local), true
}
