package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlGame = `
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

const jsonGame = `{
  "title": "Science",
  "duration": 30,
  "questions": [
    {"type": "QRL", "text": "Explain gravity.", "points": 40}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileStore_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "capitals.yaml", yamlGame)
	writeFile(t, dir, "science.json", jsonGame)
	writeFile(t, dir, "broken.yaml", "title: [")
	writeFile(t, dir, "invalid.yml", "id: bad\ntitle: Bad\nduration: 10\nquestions: []\n")
	writeFile(t, dir, "README.md", "not a game")

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	games, err := store.ListGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Capitals", games[0].Title)
	assert.Equal(t, 1, games[0].QuestionCount)
	assert.Equal(t, "science", games[1].ID, "id defaults to the file name")
	assert.False(t, games[1].LastModified.IsZero())

	game, err := store.GetGame(context.Background(), "capitals")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, game.Questions[0].CorrectVector())
}

func TestFileStore_GetReturnsCopies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "capitals.yaml", yamlGame)
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	first, err := store.GetGame(context.Background(), "capitals")
	require.NoError(t, err)
	first.Questions[0].Text = "changed"

	second, err := store.GetGame(context.Background(), "capitals")
	require.NoError(t, err)
	assert.Equal(t, "Capital of France?", second.Questions[0].Text)
}

func TestFileStore_Missing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetGame(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrGameNotFound)

	_, err = NewFileStore(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
