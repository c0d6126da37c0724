package capture

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/telemetry"
)

const (
	DefaultThreshold = 0.95
	DefaultWindow    = 10

	// adaptiveFactor scales the rolling average when the display is busy.
	adaptiveFactor = 0.9
	// thresholdFloor bounds how far adaptation may lower the bar.
	thresholdFloor = 0.5
	jpegQuality    = 85
)

// Options tune the change gate.
type Options struct {
	Threshold float64
	Adaptive  bool
	Window    int
	// Histogram requires histogram correlation above the threshold as well as SSIM.
	Histogram bool
}

// Capturer saves a screen sample only when it differs enough from the last saved
// frame. It is safe for concurrent use, though one loop normally drives it.
type Capturer struct {
	grabber Grabber
	root    string
	opts    Options
	now     func() time.Time

	mu        sync.Mutex
	reference *image.Gray
	scores    []float64
}

func NewCapturer(grabber Grabber, root string, opts Options) *Capturer {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Window < 2 {
		opts.Window = DefaultWindow
	}
	return &Capturer{
		grabber: grabber,
		root:    root,
		opts:    opts,
		now:     time.Now,
	}
}

// Result describes one capture step.
type Result struct {
	Saved      bool
	Path       string
	Similarity float64
	Threshold  float64
}

// Step grabs one frame and persists it under <root>/<YYYY-MM-DD>/ when it is not
// similar to the reference. The first frame of a run is always saved. A similar
// frame causes no I/O and leaves the reference unchanged.
func (c *Capturer) Step(ctx context.Context) (*Result, error) {
	img, err := c.grabber.Grab(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to grab screen: %w", err)
	}
	gray := Gray(img)

	c.mu.Lock()
	defer c.mu.Unlock()

	threshold := c.threshold()
	res := &Result{Threshold: threshold}

	if c.reference != nil {
		score := SSIM(gray, c.reference)
		if c.opts.Histogram {
			score = min(score, HistogramCorrelation(gray, c.reference))
		}
		res.Similarity = score
		c.observe(score)

		if score >= threshold {
			return res, nil
		}
	}

	path, err := c.save(img)
	if err != nil {
		return nil, err
	}
	c.reference = gray
	res.Saved = true
	res.Path = path
	return res, nil
}

// Run implements jobs.Task. Failures are returned for the worker to log; the
// loop continues at the next interval.
func (c *Capturer) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "capture")
	defer span.Finish()

	res, err := c.Step(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}
	if res.Saved {
		log.Printf("capture: saved %s (similarity %.3f, threshold %.3f)", filepath.Base(res.Path), res.Similarity, res.Threshold)
	}
	return nil
}

// Threshold returns the current effective threshold.
func (c *Capturer) Threshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold()
}

// threshold lowers the configured bar towards the rolling average of recent
// similarity scores when that average is below it. Needs at least two scores.
func (c *Capturer) threshold() float64 {
	if !c.opts.Adaptive || len(c.scores) < 2 {
		return c.opts.Threshold
	}
	var sum float64
	for _, s := range c.scores {
		sum += s
	}
	avg := sum / float64(len(c.scores))
	if avg >= c.opts.Threshold {
		return c.opts.Threshold
	}
	return max(avg*adaptiveFactor, thresholdFloor)
}

func (c *Capturer) observe(score float64) {
	c.scores = append(c.scores, score)
	if len(c.scores) > c.opts.Window {
		c.scores = c.scores[len(c.scores)-c.opts.Window:]
	}
}

// save encodes img as JPEG into a hidden temp file and renames it into place so
// a watcher never sees a partially written capture under its final name.
func (c *Capturer) save(img image.Image) (string, error) {
	now := c.now()
	dir := filepath.Join(c.root, now.Format(domain.DateLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}

	name := fmt.Sprintf("Screen_%s-%06d.jpeg", now.Format("15-04-05"), now.Nanosecond()/1000)
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create capture file: %w", err)
	}
	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to encode capture: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store capture: %w", err)
	}
	return path, nil
}
