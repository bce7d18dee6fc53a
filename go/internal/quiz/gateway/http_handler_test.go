package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizhub/go/internal/catalog"
	"github.com/mcdev12/quizhub/go/internal/models"
)

type MockRoomCreator struct {
	mock.Mock
}

func (m *MockRoomCreator) CreateRoom(ctx context.Context, gameID string) (string, error) {
	args := m.Called(ctx, gameID)
	return args.String(0), args.Error(1)
}

type MockResultReader struct {
	mock.Mock
}

func (m *MockResultReader) Recent(ctx context.Context, limit int) ([]models.GameResult, error) {
	args := m.Called(ctx, limit)
	results, _ := args.Get(0).([]models.GameResult)
	return results, args.Error(1)
}

type staticGames []models.GameSummary

func (s staticGames) ListGames(context.Context) ([]models.GameSummary, error) {
	return s, nil
}

type staticChat map[string][]models.ChatMessage

func (s staticChat) History(roomID string) []models.ChatMessage {
	return s[roomID]
}

func newTestAPI(rooms RoomCreator, results ResultReader) *http.ServeMux {
	h := NewAPIHandler(
		APIConfig{PublicURL: "https://quiz.example.com/"},
		staticGames{{ID: "capitals", Title: "Capitals", QuestionCount: 2}},
		rooms,
		staticRooms{"1234": true},
		staticChat{"1234": {{Name: "Alice", Message: "hi"}}},
		results,
	)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAPIHandler_ListGames(t *testing.T) {
	w := serve(newTestAPI(&MockRoomCreator{}, nil), http.MethodGet, "/api/games", "")
	require.Equal(t, http.StatusOK, w.Code)

	var games []models.GameSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &games))
	require.Len(t, games, 1)
	assert.Equal(t, "capitals", games[0].ID)
}

func TestAPIHandler_CreateRoom(t *testing.T) {
	testCases := []struct {
		name         string
		body         string
		setupMock    func(*MockRoomCreator)
		expectedCode int
		expectedBody string
	}{
		{
			name: "created",
			body: `{"game_id":"capitals"}`,
			setupMock: func(m *MockRoomCreator) {
				m.On("CreateRoom", mock.Anything, "capitals").Return("4321", nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: `"join_url":"https://quiz.example.com/join?room=4321"`,
		},
		{
			name:         "invalid json",
			body:         `{invalid}`,
			setupMock:    func(*MockRoomCreator) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: "invalid request body",
		},
		{
			name:         "missing game",
			body:         `{"game_id":" "}`,
			setupMock:    func(*MockRoomCreator) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: "game_id is required",
		},
		{
			name: "unknown game",
			body: `{"game_id":"nope"}`,
			setupMock: func(m *MockRoomCreator) {
				m.On("CreateRoom", mock.Anything, "nope").Return("", fmt.Errorf("load game nope: %w", catalog.ErrGameNotFound))
			},
			expectedCode: http.StatusNotFound,
			expectedBody: "game not found",
		},
		{
			name: "failure",
			body: `{"game_id":"capitals"}`,
			setupMock: func(m *MockRoomCreator) {
				m.On("CreateRoom", mock.Anything, "capitals").Return("", errors.New("boom"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: "failed to create room",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rooms := &MockRoomCreator{}
			tc.setupMock(rooms)

			w := serve(newTestAPI(rooms, nil), http.MethodPost, "/api/rooms", tc.body)

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectedBody)
			rooms.AssertExpectations(t)
		})
	}
}

func TestAPIHandler_RoomQRCode(t *testing.T) {
	mux := newTestAPI(&MockRoomCreator{}, nil)

	w := serve(mux, http.MethodGet, "/api/rooms/1234/qr", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))

	w = serve(mux, http.MethodGet, "/api/rooms/9999/qr", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIHandler_RoomChat(t *testing.T) {
	mux := newTestAPI(&MockRoomCreator{}, nil)

	w := serve(mux, http.MethodGet, "/api/rooms/1234/chat", "")
	require.Equal(t, http.StatusOK, w.Code)

	var history []models.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Message)

	w = serve(mux, http.MethodGet, "/api/rooms/9999/chat", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIHandler_History(t *testing.T) {
	results := &MockResultReader{}
	results.On("Recent", mock.Anything, 100).Return([]models.GameResult{{
		RoomID:  "1234",
		GameID:  "capitals",
		EndedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Scores:  []models.FinalScore{{Name: "Alice", Score: 12, BonusCount: 1}},
	}}, nil)
	results.On("Recent", mock.Anything, 20).Return(nil, nil)

	mux := newTestAPI(&MockRoomCreator{}, results)

	w := serve(mux, http.MethodGet, "/api/history?limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"roomId":"1234"`)

	w = serve(mux, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(mux, http.MethodGet, "/api/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	results.AssertExpectations(t)
}

func TestAPIHandler_HistoryDisabled(t *testing.T) {
	w := serve(newTestAPI(&MockRoomCreator{}, nil), http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
