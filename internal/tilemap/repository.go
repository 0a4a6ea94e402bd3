package tilemap

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"tilemap-server/internal/shared/database"
)

// Repository is the Postgres implementation of the storage collaborator. It
// serves both the materializer (through Store) and the read-side queries
// behind the HTTP handlers.
type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing tilemap repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Begin opens one materialization transaction.
func (r *Repository) Begin(ctx context.Context) (StoreTx, error) {
	tx, err := r.db.BeginTxContext(ctx)
	if err != nil {
		return nil, err
	}
	return &repoTx{tx: tx, logger: r.logger}, nil
}

type repoTx struct {
	tx     *database.Tx
	logger *slog.Logger
	done   bool
}

func (t *repoTx) Commit() error {
	t.done = true
	return t.tx.Commit()
}

func (t *repoTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// DeleteMapByName removes every row belonging to the named map, children
// first. A name with no prior load is a no-op.
func (t *repoTx) DeleteMapByName(ctx context.Context, name string) error {
	logger := t.logger.With("component", "tilemap_repository", "operation", "delete_map", "map_name", name)

	var mapID int
	err := t.tx.QueryRowContext(ctx, "SELECT id FROM maps WHERE name = $1", name).Scan(&mapID)
	if err == sql.ErrNoRows {
		logger.Debug("No previous map to delete")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up map %q: %w", name, err)
	}

	queries := []string{
		`DELETE FROM map_properties
		 WHERE (parent_kind = 'map' AND parent_id = $1)
		    OR (parent_kind = 'layer' AND parent_id IN (SELECT id FROM map_layers WHERE map_id = $1))
		    OR (parent_kind = 'tileset' AND parent_id IN (SELECT id FROM map_tilesets WHERE map_id = $1))
		    OR (parent_kind = 'object' AND parent_id IN (
		        SELECT o.id FROM map_objects o JOIN map_layers l ON o.layer_id = l.id WHERE l.map_id = $1))`,
		`DELETE FROM map_tiles WHERE layer_id IN (SELECT id FROM map_layers WHERE map_id = $1)`,
		`DELETE FROM map_objects WHERE layer_id IN (SELECT id FROM map_layers WHERE map_id = $1)`,
		`DELETE FROM map_layers WHERE map_id = $1`,
		`DELETE FROM map_tilesets WHERE map_id = $1`,
		`DELETE FROM maps WHERE id = $1`,
	}
	for _, query := range queries {
		if _, err := t.tx.ExecContext(ctx, query, mapID); err != nil {
			return fmt.Errorf("failed to delete rows for map %q: %w", name, err)
		}
	}

	logger.Debug("Previous map rows deleted", "map_id", mapID)
	return nil
}

func (t *repoTx) InsertMap(ctx context.Context, m *Map) error {
	query := `
		INSERT INTO maps (name, width, height, tile_width, tile_height, orientation, render_order, background_color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		m.Name, m.Width, m.Height, m.TileWidth, m.TileHeight, m.Orientation, m.RenderOrder, m.BackgroundColor,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert map: %w", err)
	}
	return nil
}

func (t *repoTx) InsertTileset(ctx context.Context, ts *Tileset) error {
	query := `
		INSERT INTO map_tilesets (map_id, name, first_gid, tile_width, tile_height, tile_count, columns, image_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := t.tx.QueryRowContext(ctx, query,
		ts.MapID, ts.Name, ts.FirstGID, ts.TileWidth, ts.TileHeight, ts.TileCount, ts.Columns, ts.ImageSource,
	).Scan(&ts.ID)
	if err != nil {
		return fmt.Errorf("failed to insert tileset: %w", err)
	}
	return nil
}

func (t *repoTx) InsertLayer(ctx context.Context, l *Layer) error {
	query := `
		INSERT INTO map_layers (map_id, name, kind, visible, opacity, offset_x, offset_y, z_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := t.tx.QueryRowContext(ctx, query,
		l.MapID, l.Name, l.Kind, l.Visible, l.Opacity, l.OffsetX, l.OffsetY, l.ZOrder,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to insert layer: %w", err)
	}
	return nil
}

// InsertTiles writes a whole layer's tiles in one statement via a JSON
// unnest; a dense layer can carry tens of thousands of rows.
func (t *repoTx) InsertTiles(ctx context.Context, tiles []Tile) error {
	if len(tiles) == 0 {
		return nil
	}

	tilesJSON, err := json.Marshal(tiles)
	if err != nil {
		return fmt.Errorf("failed to marshal tiles: %w", err)
	}

	query := `
		INSERT INTO map_tiles (layer_id, x, y, gid, flip_h, flip_v, flip_d)
		SELECT
			(data->>'layer_id')::integer,
			(data->>'x')::integer,
			(data->>'y')::integer,
			(data->>'gid')::bigint,
			(data->>'flip_h')::boolean,
			(data->>'flip_v')::boolean,
			(data->>'flip_d')::boolean
		FROM json_array_elements($1::json) AS data`

	if _, err := t.tx.ExecContext(ctx, query, string(tilesJSON)); err != nil {
		return fmt.Errorf("failed to batch insert tiles: %w", err)
	}
	return nil
}

func (t *repoTx) InsertObject(ctx context.Context, o *Object) error {
	query := `
		INSERT INTO map_objects (layer_id, name, obj_type, shape, x, y, width, height, rotation, visible)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := t.tx.QueryRowContext(ctx, query,
		o.LayerID, o.Name, o.ObjType, o.Shape, o.X, o.Y, o.Width, o.Height, o.Rotation, o.Visible,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to insert object: %w", err)
	}
	return nil
}

func (t *repoTx) InsertProperties(ctx context.Context, props []Property) error {
	if len(props) == 0 {
		return nil
	}

	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}

	query := `
		INSERT INTO map_properties (parent_kind, parent_id, name, value_type, value)
		SELECT
			data->>'parent_kind',
			(data->>'parent_id')::bigint,
			data->>'name',
			data->>'value_type',
			data->>'value'
		FROM json_array_elements($1::json) AS data`

	if _, err := t.tx.ExecContext(ctx, query, string(propsJSON)); err != nil {
		return fmt.Errorf("failed to batch insert properties: %w", err)
	}
	return nil
}

// Read-side queries. These run outside any transaction.

func (r *Repository) GetMapByName(ctx context.Context, name string) (*Map, error) {
	query := `
		SELECT id, name, width, height, tile_width, tile_height, orientation, render_order, background_color, created_at
		FROM maps
		WHERE name = $1
	`

	var m Map
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&m.ID, &m.Name, &m.Width, &m.Height, &m.TileWidth, &m.TileHeight,
		&m.Orientation, &m.RenderOrder, &m.BackgroundColor, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query map %q: %w", name, err)
	}
	return &m, nil
}

func (r *Repository) ListMaps(ctx context.Context) ([]Map, error) {
	logger := r.logger.With("component", "tilemap_repository", "operation", "list_maps")

	query := `
		SELECT id, name, width, height, tile_width, tile_height, orientation, render_order, background_color, created_at
		FROM maps
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query maps: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var maps []Map
	for rows.Next() {
		var m Map
		err := rows.Scan(
			&m.ID, &m.Name, &m.Width, &m.Height, &m.TileWidth, &m.TileHeight,
			&m.Orientation, &m.RenderOrder, &m.BackgroundColor, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan map: %w", err)
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating maps: %w", err)
	}

	logger.Debug("Maps retrieved", "count", len(maps))
	return maps, nil
}

func (r *Repository) GetLayersByMapID(ctx context.Context, mapID int) ([]Layer, error) {
	logger := r.logger.With("component", "tilemap_repository", "operation", "get_layers", "map_id", mapID)

	query := `
		SELECT id, map_id, name, kind, visible, opacity, offset_x, offset_y, z_order
		FROM map_layers
		WHERE map_id = $1
		ORDER BY z_order
	`

	rows, err := r.db.QueryContext(ctx, query, mapID)
	if err != nil {
		return nil, fmt.Errorf("failed to query layers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var layers []Layer
	for rows.Next() {
		var l Layer
		err := rows.Scan(&l.ID, &l.MapID, &l.Name, &l.Kind, &l.Visible, &l.Opacity, &l.OffsetX, &l.OffsetY, &l.ZOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating layers: %w", err)
	}

	return layers, nil
}

// GetLayer returns the layer only when it belongs to the given map, so a
// tile query can't cross map boundaries.
func (r *Repository) GetLayer(ctx context.Context, mapID, layerID int) (*Layer, error) {
	query := `
		SELECT id, map_id, name, kind, visible, opacity, offset_x, offset_y, z_order
		FROM map_layers
		WHERE id = $1 AND map_id = $2
	`

	var l Layer
	err := r.db.QueryRowContext(ctx, query, layerID, mapID).Scan(
		&l.ID, &l.MapID, &l.Name, &l.Kind, &l.Visible, &l.Opacity, &l.OffsetX, &l.OffsetY, &l.ZOrder,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query layer %d: %w", layerID, err)
	}
	return &l, nil
}

func (r *Repository) GetTilesByLayerID(ctx context.Context, layerID int) ([]Tile, error) {
	logger := r.logger.With("component", "tilemap_repository", "operation", "get_tiles", "layer_id", layerID)

	query := `
		SELECT id, layer_id, x, y, gid, flip_h, flip_v, flip_d
		FROM map_tiles
		WHERE layer_id = $1
		ORDER BY y, x
	`

	rows, err := r.db.QueryContext(ctx, query, layerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiles: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var tiles []Tile
	for rows.Next() {
		var t Tile
		err := rows.Scan(&t.ID, &t.LayerID, &t.X, &t.Y, &t.GID, &t.FlipH, &t.FlipV, &t.FlipD)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		tiles = append(tiles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tiles: %w", err)
	}

	logger.Debug("Tiles retrieved", "count", len(tiles))
	return tiles, nil
}

func (r *Repository) GetTilesetsByMapID(ctx context.Context, mapID int) ([]Tileset, error) {
	logger := r.logger.With("component", "tilemap_repository", "operation", "get_tilesets", "map_id", mapID)

	query := `
		SELECT id, map_id, name, first_gid, tile_width, tile_height, tile_count, columns, image_source
		FROM map_tilesets
		WHERE map_id = $1
		ORDER BY first_gid
	`

	rows, err := r.db.QueryContext(ctx, query, mapID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tilesets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var tilesets []Tileset
	for rows.Next() {
		var ts Tileset
		err := rows.Scan(&ts.ID, &ts.MapID, &ts.Name, &ts.FirstGID, &ts.TileWidth, &ts.TileHeight, &ts.TileCount, &ts.Columns, &ts.ImageSource)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tileset: %w", err)
		}
		tilesets = append(tilesets, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tilesets: %w", err)
	}

	return tilesets, nil
}

func (r *Repository) GetObjectsByMapID(ctx context.Context, mapID int) ([]Object, error) {
	logger := r.logger.With("component", "tilemap_repository", "operation", "get_objects", "map_id", mapID)

	query := `
		SELECT o.id, o.layer_id, o.name, o.obj_type, o.shape, o.x, o.y, o.width, o.height, o.rotation, o.visible
		FROM map_objects o
		JOIN map_layers l ON o.layer_id = l.id
		WHERE l.map_id = $1
		ORDER BY o.id
	`

	rows, err := r.db.QueryContext(ctx, query, mapID)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var objects []Object
	for rows.Next() {
		var o Object
		err := rows.Scan(&o.ID, &o.LayerID, &o.Name, &o.ObjType, &o.Shape, &o.X, &o.Y, &o.Width, &o.Height, &o.Rotation, &o.Visible)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}

	logger.Debug("Objects retrieved", "count", len(objects))
	return objects, nil
}

func (r *Repository) GetPropertiesByParent(ctx context.Context, parentKind string, parentID int64) ([]Property, error) {
	query := `
		SELECT id, parent_kind, parent_id, name, value_type, value
		FROM map_properties
		WHERE parent_kind = $1 AND parent_id = $2
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, parentKind, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("Failed to close rows", "error", err)
		}
	}()

	var props []Property
	for rows.Next() {
		var p Property
		err := rows.Scan(&p.ID, &p.ParentKind, &p.ParentID, &p.Name, &p.ValueType, &p.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}

	return props, nil
}
