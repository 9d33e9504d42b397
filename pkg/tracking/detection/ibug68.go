package detection

// NumLandmarks68 is the point count of the iBUG 300-W layout.
const NumLandmarks68 = 68

// Index ranges of the iBUG 300-W 68-point layout. Eyes are named from the
// image's point of view, matching the layout used by browser landmark models.
var ibug68Ranges = map[Part][2]int{
	PartJaw:      {0, 17},
	PartNose:     {27, 36},
	PartLeftEye:  {36, 42},
	PartRightEye: {42, 48},
	PartMouth:    {48, 68},
}

// SplitIBUG68 groups a 68-point landmark set into named parts. It returns nil
// if the slice does not hold exactly 68 points.
func SplitIBUG68(points []Point) map[Part][]Point {
	if len(points) != NumLandmarks68 {
		return nil
	}
	parts := make(map[Part][]Point, len(ibug68Ranges))
	for part, r := range ibug68Ranges {
		parts[part] = append([]Point(nil), points[r[0]:r[1]]...)
	}
	return parts
}
