// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package window

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planly/planly-tui/internal/store"
)

var primary = Rect{X: 0, Y: 0, Width: 200, Height: 60}

func TestClamp(t *testing.T) {
	def := DefaultBounds(primary)

	tests := []struct {
		name  string
		saved Bounds
		want  Bounds
	}{
		{
			name:  "on-screen bounds survive unchanged",
			saved: Bounds{X: 40, Y: 20, Width: 80, Height: 12},
			want:  Bounds{X: 40, Y: 20, Width: 80, Height: 12},
		},
		{
			name:  "entirely off-screen falls back to default",
			saved: Bounds{X: -5000, Y: -5000, Width: 80, Height: 12},
			want:  def,
		},
		{
			name:  "off the right edge falls back to default",
			saved: Bounds{X: 195, Y: 20, Width: 80, Height: 12},
			want:  def,
		},
		{
			name:  "below the bottom edge falls back to default",
			saved: Bounds{X: 40, Y: 58, Width: 80, Height: 12},
			want:  def,
		},
		{
			name:  "partially visible with enough margin is kept",
			saved: Bounds{X: -60, Y: 20, Width: 80, Height: 12},
			want:  Bounds{X: -60, Y: 20, Width: 80, Height: 12},
		},
		{
			name:  "too small is grown to the minimum",
			saved: Bounds{X: 40, Y: 20, Width: 3, Height: 2},
			want:  Bounds{X: 40, Y: 20, Width: MinWidth, Height: MinHeight},
		},
		{
			name:  "too large is shrunk to the maximum",
			saved: Bounds{X: 10, Y: 5, Width: 900, Height: 500},
			want:  Bounds{X: 10, Y: 5, Width: MaxWidth, Height: MaxHeight},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.saved, primary)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClamp_CapsDimensionsAtWorkArea(t *testing.T) {
	term := Rect{X: 0, Y: 0, Width: 80, Height: 24}

	got := Clamp(Bounds{X: 0, Y: 0, Width: 160, Height: 40}, term)
	assert.LessOrEqual(t, got.Width, term.Width)
	assert.LessOrEqual(t, got.Height, term.Height)
	assert.Equal(t, Bounds{X: 0, Y: 0, Width: 80, Height: 24}, got)
}

// Bounds that are fully visible on a standard terminal must survive a
// round trip through Clamp instead of collapsing to the default.
func TestClamp_StandardTerminalKeepsVisibleBounds(t *testing.T) {
	term := Rect{X: 0, Y: 0, Width: 80, Height: 24}

	saved := Bounds{X: 0, Y: 0, Width: 60, Height: 10}
	assert.Equal(t, saved, Clamp(saved, term))
}

func TestClamp_Deterministic(t *testing.T) {
	saved := Bounds{X: -5000, Y: -5000, Width: 80, Height: 12}
	first := Clamp(saved, primary)
	second := Clamp(saved, primary)
	assert.Equal(t, first, second)
}

func TestDefaultBounds(t *testing.T) {
	def := DefaultBounds(primary)

	// Horizontally centered, bottom-anchored.
	assert.Equal(t, (200-DefaultWidth)/2, def.X)
	assert.Equal(t, 60-DefaultHeight-bottomMargin, def.Y)
	assert.Equal(t, DefaultWidth, def.Width)
	assert.Equal(t, DefaultHeight, def.Height)
}

// The default must fit entirely inside the work area on any terminal size.
func TestDefaultBounds_AlwaysOnScreen(t *testing.T) {
	screens := []Rect{
		{X: 0, Y: 0, Width: 80, Height: 24},
		{X: 0, Y: 0, Width: 40, Height: 10},
		{X: 0, Y: 0, Width: 20, Height: 5},
		{X: 0, Y: 0, Width: 300, Height: 90},
	}

	for _, screen := range screens {
		def := DefaultBounds(screen)
		assert.GreaterOrEqual(t, def.X, screen.X, "screen %dx%d", screen.Width, screen.Height)
		assert.GreaterOrEqual(t, def.Y, screen.Y, "screen %dx%d", screen.Width, screen.Height)
		assert.LessOrEqual(t, def.X+def.Width, screen.X+screen.Width, "screen %dx%d", screen.Width, screen.Height)
		assert.LessOrEqual(t, def.Y+def.Height, screen.Y+screen.Height, "screen %dx%d", screen.Width, screen.Height)
	}
}

func TestDefaultBounds_NarrowScreen(t *testing.T) {
	small := Rect{X: 0, Y: 0, Width: 50, Height: 30}
	def := DefaultBounds(small)
	assert.Equal(t, 50, def.Width)
	assert.Equal(t, 0, def.X)
}

func TestStore_SaveRestore(t *testing.T) {
	kv, err := store.Open(filepath.Join(t.TempDir(), "planly.db"))
	require.NoError(t, err)
	defer kv.Close()

	s := NewStore(kv)

	// Nothing saved yet: the default.
	assert.Equal(t, DefaultBounds(primary), s.Restore(primary))

	saved := Bounds{X: 40, Y: 20, Width: 80, Height: 12}
	require.NoError(t, s.Save(saved))
	assert.Equal(t, saved, s.Restore(primary))

	// The same record restored against a shrunken work area gets re-clamped.
	tiny := Rect{X: 0, Y: 0, Width: 30, Height: 8}
	assert.Equal(t, DefaultBounds(tiny), s.Restore(tiny))
}

func TestStore_CorruptRecord(t *testing.T) {
	kv, err := store.Open(filepath.Join(t.TempDir(), "planly.db"))
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Put("window.bounds", []byte("not json")))

	s := NewStore(kv)
	assert.Equal(t, DefaultBounds(primary), s.Restore(primary))
}
