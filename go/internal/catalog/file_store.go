package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/quizhub/go/internal/models"
)

// FileStore serves games read from *.yaml, *.yml and *.json files in a directory.
type FileStore struct {
	dir string

	mu    sync.RWMutex
	games map[string]models.Game
}

// NewFileStore loads every game in dir. Files that fail to parse or validate
// are skipped and logged.
func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{dir: dir, games: make(map[string]models.Game)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the directory.
func (s *FileStore) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read catalog dir %s: %w", s.dir, err)
	}

	games := make(map[string]models.Game)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		game, err := loadGameFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping catalog file")
			continue
		}
		if game == nil {
			continue
		}
		if _, dup := games[game.ID]; dup {
			log.Warn().Str("path", path).Str("game_id", game.ID).Msg("duplicate game id, skipping")
			continue
		}
		if game.LastModified.IsZero() {
			if info, err := entry.Info(); err == nil {
				game.LastModified = info.ModTime().UTC()
			}
		}
		games[game.ID] = *game
	}

	s.mu.Lock()
	s.games = games
	s.mu.Unlock()

	log.Info().Str("dir", s.dir).Int("games", len(games)).Msg("catalog loaded")
	return nil
}

// loadGameFile returns nil without error for files that are not game files.
func loadGameFile(path string) (*models.Game, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var game models.Game
	if ext == ".json" {
		err = json.Unmarshal(data, &game)
	} else {
		err = yaml.Unmarshal(data, &game)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if game.ID == "" {
		game.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := Validate(&game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *FileStore) GetGame(_ context.Context, id string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("get game %s: %w", id, ErrGameNotFound)
	}
	clone := game.Clone()
	return &clone, nil
}

func (s *FileStore) ListGames(_ context.Context) ([]models.GameSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.GameSummary, 0, len(s.games))
	for _, game := range s.games {
		out = append(out, game.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}
