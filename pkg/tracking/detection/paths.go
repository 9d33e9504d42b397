package detection

// Path is one closed polyline of the debug overlay.
type Path struct {
	Part   Part    `json:"part"`
	Points []Point `json:"points"`
	Closed bool    `json:"closed"`
}

// Paths converts landmark groups into overlay polylines, one per present part,
// in AllParts order. It is presentational only.
func Paths(parts map[Part][]Point) []Path {
	paths := make([]Path, 0, len(parts))
	for _, part := range AllParts {
		pts := parts[part]
		if len(pts) == 0 {
			continue
		}
		paths = append(paths, Path{
			Part:   part,
			Points: append([]Point(nil), pts...),
			Closed: true,
		})
	}
	return paths
}
