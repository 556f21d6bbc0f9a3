package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryForge/internal/models"
)

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"The Big Lebowski":       "the-big-lebowski",
		"  Alien: Resurrection ": "alien-resurrection",
		"WALL·E":                 "wall-e",
		"¿¡!?":                   "untitled",
		"":                       "untitled",
		"Se7en":                  "se7en",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeKey(in), in)
	}
}

func TestFileStore_SaveThenLoadAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "analyses")
	store := NewFileStore(dir)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, &models.ScriptAnalysis{Title: "Chinatown", Genre: "noir", AnalyzedAt: at}))
	require.NoError(t, store.Save(ctx, &models.ScriptAnalysis{Title: "Alien", Genre: "horror", AnalyzedAt: at}))

	assert.FileExists(t, filepath.Join(dir, "chinatown.json"))
	assert.NoFileExists(t, filepath.Join(dir, "chinatown.json.tmp"))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alien", all[0].Title)
	assert.Equal(t, "Chinatown", all[1].Title)
	assert.True(t, at.Equal(all[1].AnalyzedAt))
}

func TestFileStore_SaveOverwritesSameKey(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.ScriptAnalysis{Title: "Heat", Genre: "crime"}))
	require.NoError(t, store.Save(ctx, &models.ScriptAnalysis{Title: "HEAT", Genre: "thriller"}))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "thriller", all[0].Genre)
}

func TestFileStore_LoadAllMissingDir(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing"))

	all, err := store.LoadAll(context.Background())
	assert.Empty(t, all)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

// 损坏的文件被跳过，其余条目照常返回
func TestFileStore_LoadAllSkipsCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.ScriptAnalysis{Title: "Fargo"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	all, err := store.LoadAll(ctx)
	assert.Error(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Fargo", all[0].Title)
}

func TestFileStore_SaveFailsWhenDirIsFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(base, []byte("x"), 0o644))

	err := NewFileStore(base).Save(context.Background(), &models.ScriptAnalysis{Title: "Up"})
	assert.Error(t, err)
}
