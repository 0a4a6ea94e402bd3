package tilemap

import "time"

// Map is one loaded tile map. Name is unique: reloading under the same name
// atomically replaces every row belonging to the previous load.
type Map struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	TileWidth       int       `json:"tile_width"`
	TileHeight      int       `json:"tile_height"`
	Orientation     string    `json:"orientation"`
	RenderOrder     string    `json:"render_order"`
	BackgroundColor *string   `json:"background_color"`
	CreatedAt       time.Time `json:"created_at"`
}

// Layer is one layer of a map. Kind is "tile" or "object"; ZOrder is the
// layer's position in source order, lower renders first.
type Layer struct {
	ID      int     `json:"id"`
	MapID   int     `json:"map_id"`
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Visible bool    `json:"visible"`
	Opacity float64 `json:"opacity"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	ZOrder  int     `json:"z_order"`
}

// Tile is one placed tile in a tile layer. GID has its flip bits already
// stripped; empty cells (gid 0) are never stored.
type Tile struct {
	ID      int64  `json:"id"`
	LayerID int    `json:"layer_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	GID     int64  `json:"gid"`
	FlipH   bool   `json:"flip_h"`
	FlipV   bool   `json:"flip_v"`
	FlipD   bool   `json:"flip_d"`
}

// Tileset is one tileset used by a map, identified by the first GID it
// supplies.
type Tileset struct {
	ID          int     `json:"id"`
	MapID       int     `json:"map_id"`
	Name        string  `json:"name"`
	FirstGID    int64   `json:"first_gid"`
	TileWidth   int     `json:"tile_width"`
	TileHeight  int     `json:"tile_height"`
	TileCount   int     `json:"tile_count"`
	Columns     int     `json:"columns"`
	ImageSource *string `json:"image_source"`
}

// Object is one object in an object layer. Coordinates are pixels.
type Object struct {
	ID       int64   `json:"id"`
	LayerID  int     `json:"layer_id"`
	Name     string  `json:"name"`
	ObjType  string  `json:"obj_type"`
	Shape    string  `json:"shape"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	Visible  bool    `json:"visible"`
}

// Property is one custom property attached to a map, layer, tileset or
// object through its (parent kind, parent id) pair.
type Property struct {
	ID         int64  `json:"id"`
	ParentKind string `json:"parent_kind"`
	ParentID   int64  `json:"parent_id"`
	Name       string `json:"name"`
	ValueType  string `json:"value_type"`
	Value      string `json:"value"`
}

// Summary reports what one load inserted, for observability.
type Summary struct {
	MapID      int `json:"map_id"`
	Layers     int `json:"layers"`
	Tiles      int `json:"tiles"`
	Tilesets   int `json:"tilesets"`
	Objects    int `json:"objects"`
	Properties int `json:"properties"`
}

// Parent kinds for Property rows.
const (
	ParentMap     = "map"
	ParentLayer   = "layer"
	ParentTileset = "tileset"
	ParentObject  = "object"
)
