package detection

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Centroid returns the coordinate-wise mean of points.
// It panics on an empty slice; callers check Detection.Complete first.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		panic("detection: Centroid of empty point set")
	}
	xs, ys := split(points)
	return Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}

// ExtremeY returns the largest y among points. Image y grows downward, so
// this is the lowest point on screen (the chin for a jaw outline).
// It panics on an empty slice.
func ExtremeY(points []Point) float64 {
	if len(points) == 0 {
		panic("detection: ExtremeY of empty point set")
	}
	_, ys := split(points)
	return floats.Max(ys)
}

// Bounds returns the tight box around points.
func Bounds(points []Point) Box {
	if len(points) == 0 {
		return Box{}
	}
	xs, ys := split(points)
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)
	return Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func split(points []Point) (xs, ys []float64) {
	xs = make([]float64, len(points))
	ys = make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}
