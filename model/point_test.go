package model

import (
	"math"
	"testing"
)

func TestPointTowards(t *testing.T) {
	tests := []struct {
		name   string
		from   Point
		target Point
		d      float64
		want   Point
	}{
		{"toward", Point{0, 0}, Point{10, 0}, 4, Point{4, 0}},
		{"away", Point{0, 0}, Point{10, 0}, -4, Point{-4, 0}},
		{"past target", Point{0, 0}, Point{0, 3}, 5, Point{0, 5}},
		{"same point", Point{2, 2}, Point{2, 2}, 3, Point{2, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.from.Towards(tc.target, tc.d)
			if math.Abs(got.X-tc.want.X) > 1e-9 || math.Abs(got.Y-tc.want.Y) > 1e-9 {
				t.Errorf("Towards = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCentroid(t *testing.T) {
	if got := Centroid(nil); got != (Point{}) {
		t.Errorf("Centroid(nil) = %+v, want zero", got)
	}
	got := Centroid([]Point{{0, 0}, {4, 0}, {2, 6}})
	if got != (Point{2, 2}) {
		t.Errorf("Centroid = %+v, want {2 2}", got)
	}
}
