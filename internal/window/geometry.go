// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package window

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/planly/planly-tui/internal/store"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// boundsKey is the persistence key for the overlay surface's geometry.
const boundsKey = "window.bounds"

// Dimension limits for the overlay surface, in terminal cells.
const (
	MinWidth  = 40
	MinHeight = 6
	MaxWidth  = 160
	MaxHeight = 40
)

// Default overlay size used when nothing is saved or the saved rectangle
// cannot be made visible.
const (
	DefaultWidth  = 80
	DefaultHeight = 12
)

// visibleMargin is how much of the rectangle must intersect the work area
// for a saved position to be considered on-screen.
const visibleMargin = 10

// bottomMargin is the gap between the default position and the bottom edge
// of the work area.
const bottomMargin = 1

// =============================================================================
// TYPES
// =============================================================================

// Bounds is a placed rectangle in work-area coordinates.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is an available screen region: the work area bounds are validated
// against. In the terminal rendition this is the terminal's cell grid.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// String renders bounds for logging.
func (b Bounds) String() string {
	return fmt.Sprintf("%dx%d@%d,%d", b.Width, b.Height, b.X, b.Y)
}

// =============================================================================
// CLAMPING
// =============================================================================

// DefaultBounds computes the fallback placement: horizontally centered,
// anchored near the bottom of the work area. The result always fits inside
// the work area, however small the terminal.
func DefaultBounds(screen Rect) Bounds {
	w := fitAxis(DefaultWidth, screen.Width)
	h := fitAxis(DefaultHeight, screen.Height)

	y := screen.Y + screen.Height - h - bottomMargin
	if y < screen.Y {
		y = screen.Y
	}

	return Bounds{
		X:      screen.X + (screen.Width-w)/2,
		Y:      y,
		Width:  w,
		Height: h,
	}
}

// Clamp validates saved bounds against the current work area. Dimensions are
// forced into their limits and capped at the work area; the position must
// leave at least visibleMargin cells of the rectangle inside the work area
// on both axes, otherwise the computed default wins. Pure: no I/O,
// deterministic for a given input pair.
func Clamp(saved Bounds, screen Rect) Bounds {
	b := saved
	b.Width = clampInt(b.Width, MinWidth, MaxWidth)
	b.Height = clampInt(b.Height, MinHeight, MaxHeight)
	b.Width = fitAxis(b.Width, screen.Width)
	b.Height = fitAxis(b.Height, screen.Height)

	// The margin can't exceed the rectangle itself.
	marginX := minInt(visibleMargin, b.Width)
	marginY := minInt(visibleMargin, b.Height)

	// Overlap between the rectangle and the work area, per axis.
	overlapX := minInt(b.X+b.Width, screen.X+screen.Width) - maxInt(b.X, screen.X)
	overlapY := minInt(b.Y+b.Height, screen.Y+screen.Height) - maxInt(b.Y, screen.Y)

	if overlapX < marginX || overlapY < marginY {
		return DefaultBounds(screen)
	}
	return b
}

// fitAxis caps a dimension at the work-area extent, ignoring a zero or
// negative extent (unknown screen).
func fitAxis(v, extent int) int {
	if extent > 0 && v > extent {
		return extent
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// =============================================================================
// STORE
// =============================================================================

// Store persists overlay geometry across restarts.
type Store struct {
	kv *store.KV
}

// NewStore creates a geometry store backed by kv.
func NewStore(kv *store.KV) *Store {
	return &Store{kv: kv}
}

// Save persists bounds. Called on move/resize completion, not per frame.
func (s *Store) Save(b Bounds) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bounds: %w", err)
	}
	if err := s.kv.Put(boundsKey, data); err != nil {
		return fmt.Errorf("failed to save bounds: %w", err)
	}
	log.Debug().Stringer("bounds", b).Msg("window bounds saved")
	return nil
}

// Restore reads the last saved bounds and clamps them against screen. With
// nothing saved, or an unreadable record, it returns the computed default.
func (s *Store) Restore(screen Rect) Bounds {
	data, err := s.kv.Get(boundsKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read saved window bounds")
		}
		return DefaultBounds(screen)
	}

	var saved Bounds
	if err := json.Unmarshal(data, &saved); err != nil {
		log.Warn().Err(err).Msg("discarding corrupt window bounds")
		return DefaultBounds(screen)
	}

	return Clamp(saved, screen)
}
