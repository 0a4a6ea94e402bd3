package tilemap

import (
	"context"
	"log/slog"
	"sort"

	"tilemap-server/internal/tmx"
)

// Materialize converts a parsed document into the six normalized record sets
// and writes them through a single storage transaction. Any prior rows for
// the same map name are deleted first, so reloading a map replaces it
// atomically; on failure the transaction rolls back and readers never see a
// partial load. The document is fully consumed within this call.
func Materialize(ctx context.Context, name string, doc *tmx.MapDoc, store Store) (*Summary, error) {
	logger := slog.With("component", "materializer", "map_name", name)
	logger.Debug("Materializing map",
		"width", doc.Width,
		"height", doc.Height,
		"orientation", doc.Orientation,
		"layers", len(doc.Layers),
		"tilesets", len(doc.Tilesets),
	)

	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, &MaterializeError{Op: "begin", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("Failed to roll back materialization", "error", rbErr)
			}
		}
	}()

	if err := tx.DeleteMapByName(ctx, name); err != nil {
		return nil, &MaterializeError{Op: "delete previous map", Err: err}
	}

	var background *string
	if doc.BackgroundColor != "" {
		bg := doc.BackgroundColor
		background = &bg
	}
	mapRow := &Map{
		Name:            name,
		Width:           doc.Width,
		Height:          doc.Height,
		TileWidth:       doc.TileWidth,
		TileHeight:      doc.TileHeight,
		Orientation:     string(doc.Orientation),
		RenderOrder:     doc.RenderOrder,
		BackgroundColor: background,
	}
	if err := tx.InsertMap(ctx, mapRow); err != nil {
		return nil, &MaterializeError{Op: "insert map", Err: err}
	}

	summary := &Summary{MapID: mapRow.ID}
	var properties []Property

	for _, prop := range doc.Properties {
		properties = append(properties, propertyRow(ParentMap, int64(mapRow.ID), prop))
	}

	for i := range doc.Tilesets {
		ts := &doc.Tilesets[i]
		var imageSource *string
		if ts.ImageSource != "" {
			src := ts.ImageSource
			imageSource = &src
		}
		row := &Tileset{
			MapID:       mapRow.ID,
			Name:        ts.Name,
			FirstGID:    int64(ts.FirstGID),
			TileWidth:   ts.TileWidth,
			TileHeight:  ts.TileHeight,
			TileCount:   ts.TileCount,
			Columns:     ts.Columns,
			ImageSource: imageSource,
		}
		if err := tx.InsertTileset(ctx, row); err != nil {
			return nil, &MaterializeError{Op: "insert tileset", Err: err}
		}
		summary.Tilesets++
		for _, prop := range ts.Properties {
			properties = append(properties, propertyRow(ParentTileset, int64(row.ID), prop))
		}
	}

	for zOrder := range doc.Layers {
		layer := &doc.Layers[zOrder]
		row := &Layer{
			MapID:   mapRow.ID,
			Name:    layer.Name,
			Kind:    string(layer.Kind),
			Visible: layer.Visible,
			Opacity: layer.Opacity,
			OffsetX: layer.OffsetX,
			OffsetY: layer.OffsetY,
			ZOrder:  zOrder,
		}
		if err := tx.InsertLayer(ctx, row); err != nil {
			return nil, &MaterializeError{Op: "insert layer", Err: err}
		}
		summary.Layers++

		switch layer.Kind {
		case tmx.TileLayer:
			tiles, err := tileRows(doc, layer, row.ID)
			if err != nil {
				return nil, err
			}
			if err := tx.InsertTiles(ctx, tiles); err != nil {
				return nil, &MaterializeError{Op: "insert tiles", Err: err}
			}
			summary.Tiles += len(tiles)
		case tmx.ObjectLayer:
			for _, obj := range layer.Objects {
				objRow := &Object{
					LayerID:  row.ID,
					Name:     obj.Name,
					ObjType:  obj.Type,
					Shape:    string(obj.Shape),
					X:        obj.X,
					Y:        obj.Y,
					Width:    obj.Width,
					Height:   obj.Height,
					Rotation: obj.Rotation,
					Visible:  obj.Visible,
				}
				if err := tx.InsertObject(ctx, objRow); err != nil {
					return nil, &MaterializeError{Op: "insert object", Err: err}
				}
				summary.Objects++
				for _, prop := range obj.Properties {
					properties = append(properties, propertyRow(ParentObject, objRow.ID, prop))
				}
			}
		}

		for _, prop := range layer.Properties {
			properties = append(properties, propertyRow(ParentLayer, int64(row.ID), prop))
		}
	}

	if err := tx.InsertProperties(ctx, properties); err != nil {
		return nil, &MaterializeError{Op: "insert properties", Err: err}
	}
	summary.Properties = len(properties)

	if err := tx.Commit(); err != nil {
		return nil, &MaterializeError{Op: "commit", Err: err}
	}
	committed = true

	logger.Info("Map materialized",
		"map_id", summary.MapID,
		"layers", summary.Layers,
		"tiles", summary.Tiles,
		"tilesets", summary.Tilesets,
		"objects", summary.Objects,
		"properties", summary.Properties,
	)
	return summary, nil
}

// tileRows flattens a tile layer's cells into Tile records, validating each
// tile id against the declared tileset ranges. Empty cells were already
// dropped at parse time, so gid 0 never reaches resolution.
func tileRows(doc *tmx.MapDoc, layer *tmx.LayerDoc, layerID int) ([]Tile, error) {
	appendCells := func(tiles []Tile, cells []tmx.TileCell) ([]Tile, error) {
		for _, cell := range cells {
			if _, err := doc.TilesetFor(cell.GID); err != nil {
				return nil, err
			}
			tiles = append(tiles, Tile{
				LayerID: layerID,
				X:       cell.X,
				Y:       cell.Y,
				GID:     int64(cell.GID),
				FlipH:   cell.FlipH,
				FlipV:   cell.FlipV,
				FlipD:   cell.FlipD,
			})
		}
		return tiles, nil
	}

	tiles, err := appendCells(nil, layer.Cells)
	if err != nil {
		return nil, err
	}
	// Chunk iteration is sorted so reloads insert rows in a stable order.
	origins := make([]tmx.ChunkOrigin, 0, len(layer.Chunks))
	for origin := range layer.Chunks {
		origins = append(origins, origin)
	}
	sort.Slice(origins, func(a, b int) bool {
		if origins[a].Y != origins[b].Y {
			return origins[a].Y < origins[b].Y
		}
		return origins[a].X < origins[b].X
	})
	for _, origin := range origins {
		if tiles, err = appendCells(tiles, layer.Chunks[origin].Cells); err != nil {
			return nil, err
		}
	}
	return tiles, nil
}

func propertyRow(parentKind string, parentID int64, prop tmx.PropertyDoc) Property {
	return Property{
		ParentKind: parentKind,
		ParentID:   parentID,
		Name:       prop.Name,
		ValueType:  string(prop.Type),
		Value:      prop.Value,
	}
}
