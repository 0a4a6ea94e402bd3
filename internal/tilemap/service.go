package tilemap

import (
	"context"
	"log/slog"
	"sync"

	"tilemap-server/internal/shared/errors"
	"tilemap-server/internal/tmx"
)

// Service is the loader boundary: it parses TMX text, materializes the
// result through the store, and answers read queries. Concurrent loads of
// different maps may interleave freely; loads of the same name are rejected
// while one is in flight, since the materializer assumes at most one active
// materialization per name.
type Service struct {
	store  Store
	repo   *Repository
	cache  *Cache
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewService(store Store, repo *Repository, cache *Cache, logger *slog.Logger) *Service {
	logger.Debug("Initializing tilemap service")

	return &Service{
		store:    store,
		repo:     repo,
		cache:    cache,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// LoadMap parses tmxText and replaces any previously loaded map of the same
// name. The caller gets either a complete Summary or a typed error; a failed
// load leaves the previous rows untouched.
func (s *Service) LoadMap(ctx context.Context, name, tmxText string) (*Summary, error) {
	logger := s.logger.With("component", "tilemap_service", "operation", "load_map", "map_name", name)

	if name == "" {
		return nil, errors.Validationf("map name must not be empty")
	}
	if tmxText == "" {
		return nil, errors.Validationf("map content must not be empty")
	}

	if !s.acquire(name) {
		return nil, errors.Conflictf("map %q is already being loaded", name)
	}
	defer s.release(name)

	logger.Info("Loading map", "size_bytes", len(tmxText))

	doc, err := tmx.Parse(tmxText)
	if err != nil {
		logger.Debug("Map failed to parse", "error", err)
		return nil, wrapParseError(err)
	}

	summary, err := Materialize(ctx, name, doc, s.store)
	if err != nil {
		if tmxErr, ok := err.(*tmx.Error); ok {
			return nil, wrapParseError(tmxErr)
		}
		logger.Error("Failed to materialize map", "error", err)
		return nil, errors.WrapInternal("failed to store map", err)
	}

	s.cache.SetSummary(ctx, name, summary)
	return summary, nil
}

// DeleteMap removes every row of the named map.
func (s *Service) DeleteMap(ctx context.Context, name string) error {
	logger := s.logger.With("component", "tilemap_service", "operation", "delete_map", "map_name", name)

	m, err := s.repo.GetMapByName(ctx, name)
	if err != nil {
		return errors.WrapInternal("failed to look up map", err)
	}
	if m == nil {
		return errors.NotFoundf("map %q not found", name)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return errors.WrapInternal("failed to begin delete", err)
	}
	if err := tx.DeleteMapByName(ctx, name); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Failed to roll back delete", "error", rbErr)
		}
		return errors.WrapInternal("failed to delete map", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapInternal("failed to commit delete", err)
	}

	s.cache.Invalidate(ctx, name)
	logger.Info("Map deleted", "map_id", m.ID)
	return nil
}

// MapDetail is a map row with its layers and tilesets, plus the cached load
// summary when available.
type MapDetail struct {
	Map      Map       `json:"map"`
	Layers   []Layer   `json:"layers"`
	Tilesets []Tileset `json:"tilesets"`
	Summary  *Summary  `json:"summary,omitempty"`
}

func (s *Service) ListMaps(ctx context.Context) ([]Map, error) {
	maps, err := s.repo.ListMaps(ctx)
	if err != nil {
		return nil, errors.WrapInternal("failed to list maps", err)
	}
	return maps, nil
}

func (s *Service) GetMapDetail(ctx context.Context, name string) (*MapDetail, error) {
	m, err := s.repo.GetMapByName(ctx, name)
	if err != nil {
		return nil, errors.WrapInternal("failed to look up map", err)
	}
	if m == nil {
		return nil, errors.NotFoundf("map %q not found", name)
	}

	layers, err := s.repo.GetLayersByMapID(ctx, m.ID)
	if err != nil {
		return nil, errors.WrapInternal("failed to load layers", err)
	}
	tilesets, err := s.repo.GetTilesetsByMapID(ctx, m.ID)
	if err != nil {
		return nil, errors.WrapInternal("failed to load tilesets", err)
	}

	detail := &MapDetail{Map: *m, Layers: layers, Tilesets: tilesets}
	if summary, ok := s.cache.Summary(ctx, name); ok {
		detail.Summary = summary
	}
	return detail, nil
}

// GetLayerTiles returns the tile rows of one layer of the named map.
func (s *Service) GetLayerTiles(ctx context.Context, name string, layerID int) ([]Tile, error) {
	m, err := s.repo.GetMapByName(ctx, name)
	if err != nil {
		return nil, errors.WrapInternal("failed to look up map", err)
	}
	if m == nil {
		return nil, errors.NotFoundf("map %q not found", name)
	}

	layer, err := s.repo.GetLayer(ctx, m.ID, layerID)
	if err != nil {
		return nil, errors.WrapInternal("failed to look up layer", err)
	}
	if layer == nil {
		return nil, errors.NotFoundf("layer %d not found in map %q", layerID, name)
	}

	tiles, err := s.repo.GetTilesByLayerID(ctx, layerID)
	if err != nil {
		return nil, errors.WrapInternal("failed to load tiles", err)
	}
	return tiles, nil
}

func (s *Service) GetMapObjects(ctx context.Context, name string) ([]Object, error) {
	m, err := s.repo.GetMapByName(ctx, name)
	if err != nil {
		return nil, errors.WrapInternal("failed to look up map", err)
	}
	if m == nil {
		return nil, errors.NotFoundf("map %q not found", name)
	}

	objects, err := s.repo.GetObjectsByMapID(ctx, m.ID)
	if err != nil {
		return nil, errors.WrapInternal("failed to load objects", err)
	}
	return objects, nil
}

func (s *Service) acquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[name]; busy {
		return false
	}
	s.inFlight[name] = struct{}{}
	return true
}

func (s *Service) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, name)
}

// wrapParseError maps the parser's typed errors onto the HTTP error
// taxonomy, preserving the underlying error for diagnostics.
func wrapParseError(err error) error {
	return errors.WrapValidation("invalid TMX document", err)
}
