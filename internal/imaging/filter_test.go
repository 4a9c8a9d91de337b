package imaging

import (
	"math"
	"testing"
)

func TestDiskKernel(t *testing.T) {
	k := DiskKernel(5)
	if k.MaxX() != 11 || k.MaxY() != 11 {
		t.Fatalf("kernel size: got %dx%d, want 11x11", k.MaxX(), k.MaxY())
	}

	var sum float64
	for y := 0; y < k.MaxY(); y++ {
		for x := 0; x < k.MaxX(); x++ {
			sum += k.At(x, y)
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("kernel sum: got %v, want 1", sum)
	}
	if k.At(0, 0) != 0 {
		t.Error("corner of a disk kernel should be zero")
	}
	if k.At(5, 5) == 0 {
		t.Error("centre of a disk kernel should be non-zero")
	}
}

func TestCorrelate_FlatInput(t *testing.T) {
	src := NewFilledRaster(7, 5, 3)
	dst := Correlate(src, DiskKernel(2))
	for i, v := range dst.Pix {
		if math.Abs(v-3) > 1e-9 {
			t.Fatalf("pixel %d: got %v, want 3 (nearest-border padding keeps flat input flat)", i, v)
		}
	}
}

func TestCorrelate_PeakStaysInPlace(t *testing.T) {
	src := NewRaster(20, 15)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			src.Set(x, y, math.Max(0, 20-math.Hypot(float64(x-9), float64(y-6))))
		}
	}

	dst := Correlate(src, DiskKernel(2))
	_, x, y := dst.Max()
	if x != 9 || y != 6 {
		t.Errorf("peak moved to (%d,%d), want (9,6)", x, y)
	}
}

func TestHanning(t *testing.T) {
	w := Hanning(5)
	want := []float64{0, 0.5, 1, 0.5, 0}
	for i := range want {
		if math.Abs(w[i]-want[i]) > 1e-12 {
			t.Errorf("w[%d]: got %v, want %v", i, w[i], want[i])
		}
	}
	if got := Hanning(1); len(got) != 1 || got[0] != 1 {
		t.Errorf("Hanning(1): got %v", got)
	}
	if Hanning(0) != nil {
		t.Error("Hanning(0) should be nil")
	}
}

func TestPeakWindow_CentredOnPeak(t *testing.T) {
	w := PeakWindow(40, 30, 9, 20, 12)

	v, x, y := w.Max()
	if x != 20 || y != 12 {
		t.Errorf("window maximum at (%d,%d), want (20,12)", x, y)
	}
	if math.Abs(v-1) > 1e-12 {
		t.Errorf("window maximum: got %v, want 1", v)
	}
	if w.At(0, 0) != 0 || w.At(39, 29) != 0 {
		t.Error("pixels far from the peak should be zero")
	}
}

func TestPeakWindow_WrapsAround(t *testing.T) {
	w := PeakWindow(20, 20, 9, 0, 0)

	if w.At(0, 0) != 1 {
		t.Errorf("peak value: got %v, want 1", w.At(0, 0))
	}
	// The window spills over the left and top edges onto the far side.
	if w.At(19, 0) == 0 || w.At(0, 19) == 0 {
		t.Error("window should wrap circularly")
	}
}

func TestPeakWindow_HalfShiftRoundsToEven(t *testing.T) {
	// 11/2 = 5.5 rounds to 6, so the centre sample lands one pixel before the peak.
	w := PeakWindow(40, 40, 11, 20, 20)
	if _, x, y := w.Max(); x != 19 || y != 19 {
		t.Errorf("window maximum at (%d,%d), want (19,19)", x, y)
	}
}

func TestPeakWindow_EvenSize(t *testing.T) {
	w := PeakWindow(30, 30, 10, 15, 15)
	// An even Hanning window has no single centre sample; the shift places the
	// two equal middle samples at the peak and one pixel before it.
	a := w.At(15, 15)
	b := w.At(14, 14)
	if a == 0 || math.Abs(a-b) > 1e-12 {
		t.Errorf("even window not centred: w(15,15)=%v w(14,14)=%v", a, b)
	}
}
