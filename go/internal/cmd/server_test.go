package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizhub/go/internal/adminrpc"
)

const testGameYAML = `
id: capitals
title: Capitals
duration: 20
questions:
  - type: QCM
    text: Capital of France?
    points: 10
    choices:
      - text: Paris
        isCorrect: true
      - text: Lyon
        isCorrect: false
`

func newTestServer(t *testing.T) (*httptest.Server, *Services) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "capitals.yaml"), []byte(testGameYAML), 0o644))

	cfg := validConfig()
	cfg.catalogDir = dir
	cfg.publicURL = "https://quiz.example.com"

	ctx, cancel := context.WithCancel(context.Background())
	services, err := setupServices(ctx, cfg)
	require.NoError(t, err)
	services.Start(ctx)

	srv, err := setupServer(cfg, services)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		services.Close()
	})
	return ts, services
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Rooms)
}

func TestServer_CreateRoomAndAdmin(t *testing.T) {
	ts, services := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/rooms", "application/json", strings.NewReader(`{"game_id":"capitals"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		RoomID  string `json:"room_id"`
		JoinURL string `json:"join_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.True(t, services.Manager.RoomExists(created.RoomID))
	assert.Equal(t, "https://quiz.example.com/join?room="+created.RoomID, created.JoinURL)

	client := adminrpc.NewClient(ts.Client(), ts.URL)
	rooms, err := client.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, created.RoomID, rooms[0]["room_id"])
	assert.Equal(t, "Capitals", rooms[0]["game_title"])

	require.NoError(t, client.CloseRoom(context.Background(), created.RoomID))
	assert.Eventually(t, func() bool {
		return !services.Manager.RoomExists(created.RoomID)
	}, time.Second, 10*time.Millisecond)
}

func TestServer_ListGames(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/games", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://quiz.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var games []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&games))
	require.Len(t, games, 1)
	assert.Equal(t, "capitals", games[0]["id"])
}
