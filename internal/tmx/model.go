package tmx

import "sort"

// MapDoc is the intermediate document model produced by Parse. It is a tree
// with only downward references: the map owns its tilesets, layers and
// properties; layers own their cells or objects. A MapDoc is created per
// parse and fully consumed by materialization.
type MapDoc struct {
	Orientation     Orientation
	Width           int
	Height          int
	TileWidth       int
	TileHeight      int
	RenderOrder     string
	BackgroundColor string
	Infinite        bool

	// Stagger attributes, meaningful for staggered and hexagonal maps.
	StaggerAxis   string
	StaggerIndex  string
	HexSideLength int

	Tilesets   []TilesetRef
	Layers     []LayerDoc
	Properties []PropertyDoc

	// Indices into Tilesets ordered by ascending FirstGID, built lazily
	// for range resolution.
	byFirstGID []int
}

// TilesetRef describes one embedded tileset and the GID range it supplies.
type TilesetRef struct {
	FirstGID    uint32
	Name        string
	TileWidth   int
	TileHeight  int
	TileCount   int
	Columns     int
	ImageSource string
	ImageWidth  int
	ImageHeight int
	Properties  []PropertyDoc
}

// LayerKind distinguishes tile layers from object layers.
type LayerKind string

const (
	TileLayer   LayerKind = "tile"
	ObjectLayer LayerKind = "object"
)

// LayerDoc is one layer of the map. Tile layers carry Cells (finite maps) or
// Chunks (infinite maps); object layers carry Objects.
type LayerDoc struct {
	Kind    LayerKind
	Name    string
	Visible bool
	Opacity float64
	OffsetX float64
	OffsetY float64
	Width   int
	Height  int

	// Cells holds the non-empty cells of a finite tile layer. Empty cells
	// (gid 0) are not stored.
	Cells []TileCell
	// Chunks holds the populated chunks of an infinite tile layer, keyed
	// by chunk origin in tile coordinates.
	Chunks map[ChunkOrigin]*Chunk

	Objects    []ObjectDoc
	Properties []PropertyDoc
}

// ChunkOrigin is the top-left tile coordinate of an infinite-layer chunk.
type ChunkOrigin struct {
	X int
	Y int
}

// Chunk is one populated region of an infinite tile layer. Cell coordinates
// are absolute (already offset by the chunk origin).
type Chunk struct {
	Origin ChunkOrigin
	Width  int
	Height int
	Cells  []TileCell
}

// TileCell is a single placed tile. GID is the raw tile id with flip bits
// already stripped; gid 0 cells are never stored.
type TileCell struct {
	X     int
	Y     int
	GID   uint32
	FlipH bool
	FlipV bool
	FlipD bool
}

// ObjectShape classifies an object's geometry. Polygon and polyline objects
// are recognized but not decoded; they surface as ShapeUnknown with their
// positional fields intact so future support won't reshape the model.
type ObjectShape string

const (
	ShapeRectangle ObjectShape = "rectangle"
	ShapeEllipse   ObjectShape = "ellipse"
	ShapePoint     ObjectShape = "point"
	ShapeUnknown   ObjectShape = "unknown"
)

// ObjectDoc is one object in an object layer. Coordinates are pixels.
type ObjectDoc struct {
	ID         int
	Name       string
	Type       string
	Shape      ObjectShape
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Rotation   float64
	Visible    bool
	Properties []PropertyDoc
}

// PropertyType is the semantic type of a custom property value.
type PropertyType string

const (
	PropertyString PropertyType = "string"
	PropertyInt    PropertyType = "int"
	PropertyFloat  PropertyType = "float"
	PropertyBool   PropertyType = "bool"
	PropertyColor  PropertyType = "color"
	PropertyFile   PropertyType = "file"
)

// PropertyDoc is one custom property. Ownership in the document tree
// determines the parent; materialization turns that into an explicit
// (parent kind, parent id) pair.
type PropertyDoc struct {
	Name  string
	Type  PropertyType
	Value string
}

// TilesetFor resolves a decoded tile id to the tileset supplying it: the
// tileset with the largest FirstGID not exceeding the id wins. An id below
// every FirstGID, or beyond the winning tileset's tile count, fails with
// ErrUnresolvedTileset. Id 0 means "no tile" and never resolves.
func (m *MapDoc) TilesetFor(tileID uint32) (*TilesetRef, error) {
	if tileID == 0 || len(m.Tilesets) == 0 {
		return nil, unresolvedTileset(tileID)
	}
	if m.byFirstGID == nil {
		m.byFirstGID = make([]int, len(m.Tilesets))
		for i := range m.Tilesets {
			m.byFirstGID[i] = i
		}
		sort.Slice(m.byFirstGID, func(a, b int) bool {
			return m.Tilesets[m.byFirstGID[a]].FirstGID < m.Tilesets[m.byFirstGID[b]].FirstGID
		})
	}

	// First index whose FirstGID exceeds tileID; the winner sits just
	// before it.
	n := sort.Search(len(m.byFirstGID), func(i int) bool {
		return m.Tilesets[m.byFirstGID[i]].FirstGID > tileID
	})
	if n == 0 {
		return nil, unresolvedTileset(tileID)
	}
	ts := &m.Tilesets[m.byFirstGID[n-1]]
	if ts.TileCount > 0 && tileID >= ts.FirstGID+uint32(ts.TileCount) {
		return nil, unresolvedTileset(tileID)
	}
	return ts, nil
}
