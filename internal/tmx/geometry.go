package tmx

// Orientation is the map's coordinate system.
type Orientation string

const (
	Orthogonal Orientation = "orthogonal"
	Isometric  Orientation = "isometric"
	Staggered  Orientation = "staggered"
	Hexagonal  Orientation = "hexagonal"
)

func parseOrientation(value string) (Orientation, error) {
	switch Orientation(value) {
	case Orthogonal, Isometric, Staggered, Hexagonal:
		return Orientation(value), nil
	}
	return "", malformedGeometryf("unknown orientation %q", value)
}

// validateGeometry checks that the parsed document carries the attributes
// its orientation requires and that finite layer grids agree with the map's
// declared dimensions. Grid sizes are checked here rather than at render
// time so a malformed map never reaches storage.
func validateGeometry(m *MapDoc) error {
	if m.Width < 0 || m.Height < 0 {
		return malformedGeometryf("negative map dimensions %dx%d", m.Width, m.Height)
	}
	if m.TileWidth <= 0 || m.TileHeight <= 0 {
		return malformedGeometryf("tile dimensions must be positive, got %dx%d", m.TileWidth, m.TileHeight)
	}

	switch m.Orientation {
	case Staggered:
		if err := validateStagger(m); err != nil {
			return err
		}
	case Hexagonal:
		if err := validateStagger(m); err != nil {
			return err
		}
		if m.HexSideLength <= 0 {
			return malformedGeometryf("hexagonal maps require a positive hexsidelength")
		}
	}

	for i := range m.Layers {
		layer := &m.Layers[i]
		if layer.Kind != TileLayer {
			continue
		}
		if m.Infinite {
			continue
		}
		if layer.Width != m.Width || layer.Height != m.Height {
			return malformedGeometryf("layer %q grid is %dx%d but map is %dx%d",
				layer.Name, layer.Width, layer.Height, m.Width, m.Height)
		}
	}
	return nil
}

func validateStagger(m *MapDoc) error {
	switch m.StaggerAxis {
	case "x", "y":
	default:
		return malformedGeometryf("%s maps require staggeraxis \"x\" or \"y\", got %q",
			m.Orientation, m.StaggerAxis)
	}
	switch m.StaggerIndex {
	case "even", "odd":
	default:
		return malformedGeometryf("%s maps require staggerindex \"even\" or \"odd\", got %q",
			m.Orientation, m.StaggerIndex)
	}
	return nil
}
