package tilemap

import (
	"context"
	"errors"
	"testing"

	"tilemap-server/internal/tmx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with snapshot-based transactions: writes
// land in a copy of the table set and become visible only on Commit.
type memStore struct {
	maps       []Map
	layers     []Layer
	tiles      []Tile
	tilesets   []Tileset
	objects    []Object
	properties []Property

	nextID int64

	// failOn makes the named insert operation fail, for rollback tests.
	failOn string
}

type memTx struct {
	store *memStore
	memStore
	done bool
}

func (s *memStore) Begin(ctx context.Context) (StoreTx, error) {
	return &memTx{store: s, memStore: *s}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	snapshot := t.memStore
	snapshot.failOn = t.store.failOn
	*t.store = snapshot
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

func (t *memTx) allocID() int64 {
	t.nextID++
	return t.nextID
}

func (t *memTx) DeleteMapByName(ctx context.Context, name string) error {
	var mapID int
	found := false
	for _, m := range t.maps {
		if m.Name == name {
			mapID = m.ID
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	layerIDs := map[int]bool{}
	var keptLayers []Layer
	for _, l := range t.layers {
		if l.MapID == mapID {
			layerIDs[l.ID] = true
		} else {
			keptLayers = append(keptLayers, l)
		}
	}
	t.layers = keptLayers

	tilesetIDs := map[int]bool{}
	var keptTS []Tileset
	for _, ts := range t.tilesets {
		if ts.MapID == mapID {
			tilesetIDs[ts.ID] = true
		} else {
			keptTS = append(keptTS, ts)
		}
	}
	t.tilesets = keptTS

	var keptTiles []Tile
	for _, tile := range t.tiles {
		if !layerIDs[tile.LayerID] {
			keptTiles = append(keptTiles, tile)
		}
	}
	t.tiles = keptTiles

	objectIDs := map[int64]bool{}
	var keptObjs []Object
	for _, o := range t.objects {
		if layerIDs[o.LayerID] {
			objectIDs[o.ID] = true
		} else {
			keptObjs = append(keptObjs, o)
		}
	}
	t.objects = keptObjs

	var keptProps []Property
	for _, p := range t.properties {
		owned := false
		switch p.ParentKind {
		case ParentMap:
			owned = p.ParentID == int64(mapID)
		case ParentLayer:
			owned = layerIDs[int(p.ParentID)]
		case ParentTileset:
			owned = tilesetIDs[int(p.ParentID)]
		case ParentObject:
			owned = objectIDs[p.ParentID]
		}
		if !owned {
			keptProps = append(keptProps, p)
		}
	}
	t.properties = keptProps

	var keptMaps []Map
	for _, m := range t.maps {
		if m.ID != mapID {
			keptMaps = append(keptMaps, m)
		}
	}
	t.maps = keptMaps
	return nil
}

func (t *memTx) InsertMap(ctx context.Context, m *Map) error {
	if t.failOn == "map" {
		return errors.New("induced map insert failure")
	}
	m.ID = int(t.allocID())
	t.maps = append(t.maps, *m)
	return nil
}

func (t *memTx) InsertTileset(ctx context.Context, ts *Tileset) error {
	if t.failOn == "tileset" {
		return errors.New("induced tileset insert failure")
	}
	ts.ID = int(t.allocID())
	t.tilesets = append(t.tilesets, *ts)
	return nil
}

func (t *memTx) InsertLayer(ctx context.Context, l *Layer) error {
	if t.failOn == "layer" {
		return errors.New("induced layer insert failure")
	}
	l.ID = int(t.allocID())
	t.layers = append(t.layers, *l)
	return nil
}

func (t *memTx) InsertTiles(ctx context.Context, tiles []Tile) error {
	if t.failOn == "tiles" {
		return errors.New("induced tile insert failure")
	}
	for i := range tiles {
		tiles[i].ID = t.allocID()
	}
	t.tiles = append(t.tiles, tiles...)
	return nil
}

func (t *memTx) InsertObject(ctx context.Context, o *Object) error {
	if t.failOn == "object" {
		return errors.New("induced object insert failure")
	}
	o.ID = t.allocID()
	t.objects = append(t.objects, *o)
	return nil
}

func (t *memTx) InsertProperties(ctx context.Context, props []Property) error {
	if t.failOn == "properties" {
		return errors.New("induced property insert failure")
	}
	for i := range props {
		props[i].ID = t.allocID()
	}
	t.properties = append(t.properties, props...)
	return nil
}

const endToEndMap = `<map orientation="orthogonal" width="2" height="2" tilewidth="16" tileheight="16">
 <tileset firstgid="1" name="terrain" tilewidth="16" tileheight="16" tilecount="10" columns="5"/>
 <layer name="ground" width="2" height="2">
  <data encoding="csv">1,2,0,3</data>
 </layer>
 <objectgroup name="markers">
  <object id="1" name="spawn" x="8" y="8"><point/></object>
 </objectgroup>
</map>`

func TestMaterializeEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	doc, err := tmx.Parse(endToEndMap)
	require.NoError(t, err)

	summary, err := Materialize(ctx, "level1", doc, store)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Layers)
	assert.Equal(t, 3, summary.Tiles)
	assert.Equal(t, 1, summary.Tilesets)
	assert.Equal(t, 1, summary.Objects)
	assert.Equal(t, 0, summary.Properties)

	require.Len(t, store.maps, 1)
	assert.Equal(t, "level1", store.maps[0].Name)
	assert.Equal(t, summary.MapID, store.maps[0].ID)

	require.Len(t, store.layers, 2)
	assert.Equal(t, "tile", store.layers[0].Kind)
	assert.Equal(t, 0, store.layers[0].ZOrder)
	assert.Equal(t, "object", store.layers[1].Kind)
	assert.Equal(t, 1, store.layers[1].ZOrder)
	for _, l := range store.layers {
		assert.Equal(t, store.maps[0].ID, l.MapID)
	}

	// The gid 0 cell at (0,1) is omitted, never stored as an empty row.
	require.Len(t, store.tiles, 3)
	assert.Equal(t, int64(1), store.tiles[0].GID)
	assert.Equal(t, 0, store.tiles[0].X)
	assert.Equal(t, int64(3), store.tiles[2].GID)
	assert.Equal(t, 1, store.tiles[2].X)
	assert.Equal(t, 1, store.tiles[2].Y)

	require.Len(t, store.objects, 1)
	assert.Equal(t, "spawn", store.objects[0].Name)
	assert.Equal(t, "point", store.objects[0].Shape)
	assert.Equal(t, store.layers[1].ID, store.objects[0].LayerID)

	require.Len(t, store.tilesets, 1)
	assert.Equal(t, int64(1), store.tilesets[0].FirstGID)
}

func TestMaterializeReloadReplaces(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	doc, err := tmx.Parse(endToEndMap)
	require.NoError(t, err)
	_, err = Materialize(ctx, "level1", doc, store)
	require.NoError(t, err)

	// Reload a smaller revision under the same name: only the second
	// load's rows may remain.
	doc2, err := tmx.Parse(`<map orientation="orthogonal" width="1" height="1" tilewidth="16" tileheight="16">
 <tileset firstgid="1" name="terrain" tilewidth="16" tileheight="16"/>
 <layer name="ground" width="1" height="1"><data encoding="csv">2</data></layer>
</map>`)
	require.NoError(t, err)
	summary, err := Materialize(ctx, "level1", doc2, store)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Layers)
	assert.Equal(t, 1, summary.Tiles)
	assert.Len(t, store.maps, 1)
	assert.Len(t, store.layers, 1)
	assert.Len(t, store.tiles, 1)
	assert.Len(t, store.tilesets, 1)
	assert.Len(t, store.objects, 0)
}

func TestMaterializeReloadLeavesOtherMapsAlone(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	doc, err := tmx.Parse(endToEndMap)
	require.NoError(t, err)
	_, err = Materialize(ctx, "level1", doc, store)
	require.NoError(t, err)

	doc2, err := tmx.Parse(endToEndMap)
	require.NoError(t, err)
	_, err = Materialize(ctx, "level2", doc2, store)
	require.NoError(t, err)

	assert.Len(t, store.maps, 2)
	assert.Len(t, store.layers, 4)
	assert.Len(t, store.tiles, 6)

	doc3, err := tmx.Parse(endToEndMap)
	require.NoError(t, err)
	_, err = Materialize(ctx, "level1", doc3, store)
	require.NoError(t, err)

	assert.Len(t, store.maps, 2)
	assert.Len(t, store.layers, 4)
	assert.Len(t, store.tiles, 6)
}

func TestMaterializeUnresolvedTileset(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	// Tileset covers gids 1..10; gid 99 is out of range.
	doc, err := tmx.Parse(`<map orientation="orthogonal" width="2" height="1" tilewidth="16" tileheight="16">
 <tileset firstgid="1" name="terrain" tilewidth="16" tileheight="16" tilecount="10"/>
 <layer name="ground" width="2" height="1"><data encoding="csv">1,99</data></layer>
</map>`)
	require.NoError(t, err)

	_, err = Materialize(ctx, "broken", doc, store)
	require.Error(t, err)
	assert.True(t, tmx.IsKind(err, tmx.ErrUnresolvedTileset))

	// The rolled-back load leaves nothing behind.
	assert.Empty(t, store.maps)
	assert.Empty(t, store.layers)
	assert.Empty(t, store.tiles)
}

func TestMaterializeStorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &memStore{failOn: "tiles"}

	doc, err := tmx.Parse(endToEndMap)
	require.NoError(t, err)

	_, err = Materialize(ctx, "level1", doc, store)
	require.Error(t, err)

	var matErr *MaterializeError
	require.ErrorAs(t, err, &matErr)
	assert.Equal(t, "insert tiles", matErr.Op)

	assert.Empty(t, store.maps)
	assert.Empty(t, store.layers)
	assert.Empty(t, store.tiles)
}

func TestMaterializeProperties(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	doc, err := tmx.Parse(`<map orientation="orthogonal" width="1" height="1" tilewidth="16" tileheight="16">
 <properties><property name="music" value="cave.ogg"/></properties>
 <tileset firstgid="1" name="terrain" tilewidth="16" tileheight="16">
  <properties><property name="style" value="rocky"/></properties>
 </tileset>
 <layer name="ground" width="1" height="1">
  <data encoding="csv">1</data>
  <properties><property name="collision" type="bool" value="true"/></properties>
 </layer>
 <objectgroup name="markers">
  <object id="1" name="spawn" x="0" y="0">
   <properties><property name="team" type="int" value="2"/></properties>
  </object>
 </objectgroup>
</map>`)
	require.NoError(t, err)

	summary, err := Materialize(ctx, "props", doc, store)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Properties)

	byParent := map[string]Property{}
	for _, p := range store.properties {
		byParent[p.ParentKind] = p
	}

	require.Contains(t, byParent, ParentMap)
	assert.Equal(t, int64(store.maps[0].ID), byParent[ParentMap].ParentID)
	assert.Equal(t, "music", byParent[ParentMap].Name)
	assert.Equal(t, "string", byParent[ParentMap].ValueType)

	require.Contains(t, byParent, ParentTileset)
	assert.Equal(t, int64(store.tilesets[0].ID), byParent[ParentTileset].ParentID)

	require.Contains(t, byParent, ParentLayer)
	assert.Equal(t, int64(store.layers[0].ID), byParent[ParentLayer].ParentID)
	assert.Equal(t, "bool", byParent[ParentLayer].ValueType)

	require.Contains(t, byParent, ParentObject)
	assert.Equal(t, store.objects[0].ID, byParent[ParentObject].ParentID)
	assert.Equal(t, "2", byParent[ParentObject].Value)
}

func TestMaterializeInfiniteMapChunks(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	doc, err := tmx.Parse(`<map orientation="orthogonal" infinite="1" width="4" height="4" tilewidth="8" tileheight="8">
 <tileset firstgid="1" name="terrain" tilewidth="8" tileheight="8"/>
 <layer name="ground" width="4" height="4">
  <data encoding="csv">
   <chunk x="0" y="0" width="2" height="2">1,0,0,2</chunk>
   <chunk x="16" y="16" width="2" height="2">0,3,0,0</chunk>
  </data>
 </layer>
</map>`)
	require.NoError(t, err)

	summary, err := Materialize(ctx, "endless", doc, store)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Tiles)

	require.Len(t, store.tiles, 3)
	assert.Equal(t, 0, store.tiles[0].X)
	assert.Equal(t, 0, store.tiles[0].Y)
	assert.Equal(t, 1, store.tiles[1].X)
	assert.Equal(t, 1, store.tiles[1].Y)
	assert.Equal(t, 17, store.tiles[2].X)
	assert.Equal(t, 16, store.tiles[2].Y)
}
