package server

import (
	"log/slog"
	"net/http"

	"tilemap-server/internal/middleware"
	serverHandlers "tilemap-server/internal/server/handlers"
	"tilemap-server/internal/shared/database"
	"tilemap-server/internal/shared/redis"
	"tilemap-server/internal/tilemap"
	tilemapHandlers "tilemap-server/internal/tilemap/handlers"
)

type Routes struct {
	db             *database.DB
	redis          *redis.Client
	tilemapService *tilemap.Service
	logger         *slog.Logger
}

func NewRoutes(db *database.DB, redis *redis.Client, tilemapService *tilemap.Service, logger *slog.Logger) *Routes {
	return &Routes{
		db:             db,
		redis:          redis,
		tilemapService: tilemapService,
		logger:         logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db, r.redis)
	mapHandler := tilemapHandlers.NewMapHandler(r.tilemapService)

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.HandleFunc("GET /api/maps", mapHandler.GetMaps)
	mux.HandleFunc("GET /api/maps/{name}", mapHandler.GetMap)
	mux.HandleFunc("GET /api/maps/{name}/layers/{layerID}/tiles", mapHandler.GetLayerTiles)
	mux.HandleFunc("GET /api/maps/{name}/objects", mapHandler.GetObjects)

	// Write endpoints (authenticated editors only)
	mux.Handle("POST /api/maps/{name}", middleware.RequireEditor(http.HandlerFunc(mapHandler.LoadMap)))
	mux.Handle("DELETE /api/maps/{name}", middleware.RequireEditor(http.HandlerFunc(mapHandler.DeleteMap)))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/maps", "/api/maps/{name}", "/api/maps/{name}/layers/{layerID}/tiles", "/api/maps/{name}/objects"},
		"editor_endpoints", []string{"POST /api/maps/{name}", "DELETE /api/maps/{name}"},
	)

	return mux
}
