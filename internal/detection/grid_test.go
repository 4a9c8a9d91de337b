package detection

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// gridCircles lays out a cols x rows grid of circles with a little jitter.
func gridCircles(cols, rows int) []Circle {
	var out []Circle
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			out = append(out, Circle{
				X:      100 + c*150 + (r%2)*3,
				Y:      80 + r*140 - (c%2)*2,
				Radius: 50,
			})
		}
	}
	return out
}

func TestAssignGrid_ColumnMajor(t *testing.T) {
	got := AssignGrid(gridCircles(4, 3), 4, 3)
	if len(got) != 12 {
		t.Fatalf("got %d circles, want 12", len(got))
	}

	for i, c := range got {
		wantCol, wantRow := i/3, i%3
		if c.Col != wantCol || c.Row != wantRow {
			t.Errorf("circle %d at (%d,%d): got cell (%d,%d), want (%d,%d)",
				i, c.X, c.Y, c.Col, c.Row, wantCol, wantRow)
		}
		if c.Label != i+1 {
			t.Errorf("circle %d: got label %d, want %d", i, c.Label, i+1)
		}
	}
}

func TestAssignGrid_IndependentOfInputOrder(t *testing.T) {
	base := gridCircles(4, 3)
	want := AssignGrid(base, 4, 3)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([]Circle, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := AssignGrid(shuffled, 4, 3)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("trial %d: labels depend on input order (-want +got):\n%s", trial, diff)
		}
	}
}

func TestAssignGrid_DoesNotModifyInput(t *testing.T) {
	in := gridCircles(2, 2)
	before := make([]Circle, len(in))
	copy(before, in)

	AssignGrid(in, 2, 2)
	if diff := cmp.Diff(before, in); diff != "" {
		t.Errorf("input modified (-before +after):\n%s", diff)
	}
}

func TestAssignGrid_SingleColumn(t *testing.T) {
	// all x equal: every circle falls into column 0
	in := []Circle{{X: 50, Y: 300}, {X: 50, Y: 100}, {X: 50, Y: 200}}
	got := AssignGrid(in, 4, 3)

	wantY := []int{100, 200, 300}
	for i, c := range got {
		if c.Col != 0 {
			t.Errorf("circle %d: got col %d, want 0", i, c.Col)
		}
		if c.Y != wantY[i] {
			t.Errorf("circle %d: got y %d, want %d", i, c.Y, wantY[i])
		}
		if c.Row != i {
			t.Errorf("circle %d: got row %d, want %d", i, c.Row, i)
		}
	}
}

func TestAssignGrid_Empty(t *testing.T) {
	if got := AssignGrid(nil, 4, 3); len(got) != 0 {
		t.Errorf("got %d circles, want 0", len(got))
	}
}

func TestCut(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		n      int
		want   []int
	}{
		{"edges", []float64{0, 10, 20, 30, 40}, 4, []int{0, 0, 1, 2, 3}},
		{"interior", []float64{0, 11, 21, 40}, 4, []int{0, 1, 2, 3}},
		{"zero range", []float64{5, 5, 5}, 3, []int{0, 0, 0}},
		{"single bin", []float64{1, 9, 4}, 1, []int{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, cut(tt.values, tt.n)); diff != "" {
				t.Errorf("bins (-want +got):\n%s", diff)
			}
		})
	}
}
