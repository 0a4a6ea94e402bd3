package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"tilemap-server/internal/shared/config"
	"tilemap-server/internal/shared/errors"
	"tilemap-server/internal/shared/response"
	"tilemap-server/internal/tilemap"
)

type MapHandler struct {
	service *tilemap.Service
}

func NewMapHandler(service *tilemap.Service) *MapHandler {
	return &MapHandler{service: service}
}

// LoadMap accepts a raw TMX document as the request body and loads it under
// the name in the path, replacing any previous version.
func (h *MapHandler) LoadMap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "load_map")

	name := r.PathValue("name")
	if name == "" {
		response.Error(w, r, logger, errors.Validationf("map name is required"))
		return
	}

	maxBytes := config.GlobalConfig.Loader.MaxMapBytes
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		if _, tooLarge := err.(*http.MaxBytesError); tooLarge {
			response.Error(w, r, logger, errors.Validationf("map exceeds the %d byte limit", maxBytes))
			return
		}
		response.Error(w, r, logger, errors.WrapInternal("failed to read request body", err))
		return
	}

	summary, err := h.service.LoadMap(ctx, name, string(body))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, summary)
}

func (h *MapHandler) GetMaps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_maps")

	maps, err := h.service.ListMaps(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if maps == nil {
		maps = []tilemap.Map{}
	}

	response.Success(w, http.StatusOK, maps)
}

func (h *MapHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_map")

	name := r.PathValue("name")
	if name == "" {
		response.Error(w, r, logger, errors.Validationf("map name is required"))
		return
	}

	detail, err := h.service.GetMapDetail(ctx, name)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, detail)
}

func (h *MapHandler) GetLayerTiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_layer_tiles")

	name := r.PathValue("name")
	layerIDStr := r.PathValue("layerID")
	if name == "" || layerIDStr == "" {
		response.Error(w, r, logger, errors.Validationf("map name and layer ID are required"))
		return
	}

	layerID, err := strconv.Atoi(layerIDStr)
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid layer ID format", err))
		return
	}

	tiles, err := h.service.GetLayerTiles(ctx, name, layerID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if tiles == nil {
		tiles = []tilemap.Tile{}
	}

	response.Success(w, http.StatusOK, tiles)
}

func (h *MapHandler) GetObjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_objects")

	name := r.PathValue("name")
	if name == "" {
		response.Error(w, r, logger, errors.Validationf("map name is required"))
		return
	}

	objects, err := h.service.GetMapObjects(ctx, name)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if objects == nil {
		objects = []tilemap.Object{}
	}

	response.Success(w, http.StatusOK, objects)
}

func (h *MapHandler) DeleteMap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "delete_map")

	name := r.PathValue("name")
	if name == "" {
		response.Error(w, r, logger, errors.Validationf("map name is required"))
		return
	}

	if err := h.service.DeleteMap(ctx, name); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusNoContent, nil)
}
