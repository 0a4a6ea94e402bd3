package tilemap

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	sharederrors "tilemap-server/internal/shared/errors"
	"tilemap-server/internal/tmx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store Store) *Service {
	return NewService(store, nil, nil, slog.Default())
}

func TestLoadMapRejectsEmptyInput(t *testing.T) {
	svc := newTestService(&memStore{})

	_, err := svc.LoadMap(context.Background(), "", "<map/>")
	require.Error(t, err)
	assert.Equal(t, sharederrors.ErrorTypeValidation, sharederrors.GetType(err))

	_, err = svc.LoadMap(context.Background(), "level1", "")
	require.Error(t, err)
	assert.Equal(t, sharederrors.ErrorTypeValidation, sharederrors.GetType(err))
}

func TestLoadMapUnsupportedEncodingInsertsNothing(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	_, err := svc.LoadMap(context.Background(), "level1", `<map orientation="orthogonal" width="1" height="1" tilewidth="8" tileheight="8">
 <layer name="l" width="1" height="1"><data encoding="base64">AAAB</data></layer>
</map>`)
	require.Error(t, err)
	assert.Equal(t, sharederrors.ErrorTypeValidation, sharederrors.GetType(err))
	// The typed parse error survives wrapping for diagnostics.
	assert.True(t, tmx.IsKind(err, tmx.ErrUnsupportedEncoding))

	assert.Empty(t, store.maps)
	assert.Empty(t, store.layers)
	assert.Empty(t, store.tiles)
}

func TestLoadMapSuccess(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	summary, err := svc.LoadMap(context.Background(), "level1", endToEndMap)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Layers)
	assert.Equal(t, 3, summary.Tiles)
	assert.Len(t, store.maps, 1)
}

func TestLoadMapSerializesSameName(t *testing.T) {
	svc := newTestService(&memStore{})

	// Simulate an in-flight load of the same name.
	require.True(t, svc.acquire("level1"))

	_, err := svc.LoadMap(context.Background(), "level1", endToEndMap)
	require.Error(t, err)
	assert.Equal(t, sharederrors.ErrorTypeConflict, sharederrors.GetType(err))

	// Different names are not serialized against each other.
	_, err = svc.LoadMap(context.Background(), "level2", endToEndMap)
	require.NoError(t, err)

	svc.release("level1")
	_, err = svc.LoadMap(context.Background(), "level1", endToEndMap)
	require.NoError(t, err)
}

func TestLoadMapConcurrentDistinctNames(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d"}
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = svc.LoadMap(context.Background(), name, endToEndMap)
		}(i, name)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "map %s", names[i])
	}
}
