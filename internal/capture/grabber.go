// Package capture takes periodic screen samples and keeps only frames that differ
// from the last saved one.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// Grabber acquires one screen image.
type Grabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// ScreenGrabber captures a physical display. Display falls back to the primary
// display when the configured index is not active.
type ScreenGrabber struct {
	Display int
}

var ErrNoDisplay = errors.New("no active display")

func (g *ScreenGrabber) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplay
	}
	idx := g.Display
	if idx < 0 || idx >= n {
		idx = 0
	}

	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(idx))
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", idx, err)
	}
	return img, nil
}
