package imaging

import (
	"errors"
	"testing"
)

func TestMinProjection(t *testing.T) {
	frames := make(RasterSource, 5)
	for i := range frames {
		frames[i] = NewFilledRaster(3, 3, 100)
	}
	frames[2].Set(1, 1, 10)
	frames[4].Set(0, 0, 50)

	minImg, sampled, err := MinProjection(frames)
	if err != nil {
		t.Fatalf("MinProjection failed: %v", err)
	}
	if sampled != 5 {
		t.Errorf("sampled: got %d, want 5", sampled)
	}
	if minImg.At(1, 1) != 10 || minImg.At(0, 0) != 50 || minImg.At(2, 2) != 100 {
		t.Errorf("unexpected projection: %v", minImg.Pix)
	}
}

func TestMinProjection_Stride(t *testing.T) {
	// 25 frames sample every second frame; the dark odd frame is never seen.
	frames := make(RasterSource, 25)
	for i := range frames {
		frames[i] = NewFilledRaster(2, 2, 200)
	}
	frames[3] = NewFilledRaster(2, 2, 0)

	minImg, sampled, err := MinProjection(frames)
	if err != nil {
		t.Fatal(err)
	}
	if sampled != 13 {
		t.Errorf("sampled: got %d, want 13", sampled)
	}
	if minImg.At(0, 0) != 200 {
		t.Errorf("unsampled frame leaked into projection: %v", minImg.At(0, 0))
	}
}

func TestMinProjection_SkipsBadFrames(t *testing.T) {
	frames := RasterSource{nil, NewFilledRaster(4, 4, 30), NewFilledRaster(2, 2, 0)}

	minImg, sampled, err := MinProjection(frames)
	if err != nil {
		t.Fatal(err)
	}
	if sampled != 1 {
		t.Errorf("sampled: got %d, want 1", sampled)
	}
	if minImg.Width != 4 || minImg.At(0, 0) != 30 {
		t.Errorf("unexpected projection %dx%d %v", minImg.Width, minImg.Height, minImg.At(0, 0))
	}
}

func TestMinProjection_Errors(t *testing.T) {
	if _, _, err := MinProjection(RasterSource{}); !errors.Is(err, ErrInput) {
		t.Errorf("empty source: expected ErrInput, got %v", err)
	}
	if _, _, err := MinProjection(RasterSource{nil, nil}); !errors.Is(err, ErrInput) {
		t.Errorf("unreadable source: expected ErrInput, got %v", err)
	}
}

func TestDiskOffsets(t *testing.T) {
	tests := []struct {
		radius int
		want   int
	}{
		{0, 1},
		{1, 5},
		{2, 13},
		{3, 29},
	}
	for _, tt := range tests {
		if got := len(DiskOffsets(tt.radius)); got != tt.want {
			t.Errorf("DiskOffsets(%d): got %d offsets, want %d", tt.radius, got, tt.want)
		}
	}
}

func TestDilate(t *testing.T) {
	src := NewRaster(9, 9)
	src.Set(4, 4, 10)

	dst := Dilate(src, 3)

	if dst.At(4, 1) != 10 || dst.At(7, 4) != 10 {
		t.Error("points at distance 3 should be covered by the disk")
	}
	// (2,2) from the centre lies outside a radius 3 disk
	if dst.At(6, 6) != 0 || dst.At(1, 1) != 0 {
		t.Error("disk corners should not be covered")
	}
	if dst.At(4, 0) != 0 {
		t.Error("points at distance 4 should not be covered")
	}
}

func TestBackgroundCache(t *testing.T) {
	frames := RasterSource{NewFilledRaster(4, 4, 9)}
	cache := NewBackgroundCache(0)

	bg1, err := cache.Get("seq", frames, 3)
	if err != nil {
		t.Fatal(err)
	}
	bg2, err := cache.Get("seq", frames, 3)
	if err != nil {
		t.Fatal(err)
	}
	if bg1 != bg2 {
		t.Error("second Get should return the cached background")
	}
	if _, err := cache.Get("seq", frames, 1); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 2 {
		t.Errorf("Len: got %d, want 2 (radius is part of the key)", cache.Len())
	}

	if n := cache.Clear(); n != 2 {
		t.Errorf("Clear: got %d removed, want 2", n)
	}
	if cache.Len() != 0 {
		t.Errorf("Len after Clear: got %d", cache.Len())
	}
}

func TestBackgroundCache_EvictsOldest(t *testing.T) {
	frames := RasterSource{NewFilledRaster(4, 4, 9)}
	cache := NewBackgroundCache(2)

	first, err := cache.Get("a", frames, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"b", "c"} {
		if _, err := cache.Get(key, frames, 1); err != nil {
			t.Fatal(err)
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", cache.Len())
	}

	again, err := cache.Get("a", frames, 1)
	if err != nil {
		t.Fatal(err)
	}
	if again == first {
		t.Error("oldest entry should have been evicted and rebuilt")
	}
	if cache.Len() != 2 {
		t.Errorf("Len after rebuild: got %d, want 2", cache.Len())
	}
}
