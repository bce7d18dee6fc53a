package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/mcdev12/quizhub/go/internal/catalog"
	"github.com/mcdev12/quizhub/go/internal/models"
)

const (
	defaultQRSize       = 256
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GameLister lists the playable games.
type GameLister interface {
	ListGames(ctx context.Context) ([]models.GameSummary, error)
}

// RoomCreator opens a room for a game and returns its id.
type RoomCreator interface {
	CreateRoom(ctx context.Context, gameID string) (string, error)
}

// ChatHistory returns the stored chat of a room.
type ChatHistory interface {
	History(roomID string) []models.ChatMessage
}

// ResultReader returns recently finished games.
type ResultReader interface {
	Recent(ctx context.Context, limit int) ([]models.GameResult, error)
}

type APIConfig struct {
	// PublicURL is the address players open to join, e.g. https://quiz.example.com
	PublicURL string
	QRSize    int
}

type APIHandler struct {
	config  APIConfig
	games   GameLister
	rooms   RoomCreator
	checker RoomChecker
	chat    ChatHistory
	results ResultReader
}

// NewAPIHandler builds the REST handler. results may be nil when history is
// disabled.
func NewAPIHandler(config APIConfig, games GameLister, rooms RoomCreator, checker RoomChecker, chat ChatHistory, results ResultReader) *APIHandler {
	if config.QRSize <= 0 {
		config.QRSize = defaultQRSize
	}
	return &APIHandler{
		config:  config,
		games:   games,
		rooms:   rooms,
		checker: checker,
		chat:    chat,
		results: results,
	}
}

type createRoomRequest struct {
	GameID string `json:"game_id"`
}

type createRoomResponse struct {
	RoomID  string `json:"room_id"`
	JoinURL string `json:"join_url"`
}

func (h *APIHandler) joinURL(roomID string) string {
	base := strings.TrimRight(h.config.PublicURL, "/")
	return fmt.Sprintf("%s/join?%s", base, url.Values{"room": {roomID}}.Encode())
}

// HandleListGames handles GET /api/games
func (h *APIHandler) HandleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListGames(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list games")
		http.Error(w, "failed to list games", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []models.GameSummary{}
	}
	writeJSON(w, http.StatusOK, games)
}

// HandleCreateRoom handles POST /api/rooms
func (h *APIHandler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.GameID) == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}

	roomID, err := h.rooms.CreateRoom(r.Context(), req.GameID)
	switch {
	case errors.Is(err, catalog.ErrGameNotFound):
		http.Error(w, "game not found", http.StatusNotFound)
		return
	case errors.Is(err, catalog.ErrInvalidGame):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		log.Error().Err(err).Str("game_id", req.GameID).Msg("failed to create room")
		http.Error(w, "failed to create room", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createRoomResponse{RoomID: roomID, JoinURL: h.joinURL(roomID)})
}

// HandleRoomQRCode handles GET /api/rooms/{id}/qr and returns a PNG of the
// room's join URL.
func (h *APIHandler) HandleRoomQRCode(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if !h.checker.RoomExists(roomID) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(h.joinURL(roomID), qrcode.Medium, h.config.QRSize)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode qr code")
		http.Error(w, "failed to encode qr code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		log.Debug().Err(err).Str("room_id", roomID).Msg("failed to write qr code")
	}
}

// HandleRoomChat handles GET /api/rooms/{id}/chat
func (h *APIHandler) HandleRoomChat(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if !h.checker.RoomExists(roomID) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	history := h.chat.History(roomID)
	if history == nil {
		history = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleHistory handles GET /api/history?limit=
func (h *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	results, err := h.results.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read game history")
		http.Error(w, "failed to read game history", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []models.GameResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/games", h.HandleListGames)
	mux.HandleFunc("POST /api/rooms", h.HandleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}/qr", h.HandleRoomQRCode)
	mux.HandleFunc("GET /api/rooms/{id}/chat", h.HandleRoomChat)
	mux.HandleFunc("GET /api/history", h.HandleHistory)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
