package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sailboat/pkg/cache"
	"sailboat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, root, project, version string) string {
	t.Helper()
	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, version+".egg")
	require.NoError(t, os.WriteFile(path, []byte("artifact"), 0o644))
	return path
}

func TestArtifactRepository_Locate(t *testing.T) {
	root := t.TempDir()
	want := writeArtifact(t, root, "p", "1.0.0")
	repo := NewArtifactRepository(root, ".egg", t.TempDir(), cache.NewCache(time.Minute, time.Minute), time.Minute, logger.Nop())

	got, err := repo.Locate(context.Background(), "p", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = repo.Locate(context.Background(), "p", "2.0.0")
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	_, err = repo.Locate(context.Background(), "../etc", "1")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestArtifactRepository_StageAndCleanup(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()
	src := writeArtifact(t, root, "p", "v1")
	repo := NewArtifactRepository(root, ".egg", staging, nil, 0, logger.Nop())

	staged, cleanup, err := repo.Stage(context.Background(), src)
	require.NoError(t, err)
	assert.NotEqual(t, src, staged)
	content, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, "artifact", string(content))

	cleanup()
	_, err = os.Stat(filepath.Dir(staged))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArtifactRepository_StageMissing(t *testing.T) {
	staging := t.TempDir()
	repo := NewArtifactRepository(t.TempDir(), ".egg", staging, nil, 0, logger.Nop())

	_, cleanup, err := repo.Stage(context.Background(), filepath.Join(t.TempDir(), "gone.egg"))
	assert.ErrorIs(t, err, ErrArtifactNotFound)
	cleanup()

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogRepository_WriteReadDelete(t *testing.T) {
	root := t.TempDir()
	repo := NewLogRepository(root, logger.Nop())
	ctx := context.Background()

	path, err := repo.Write(ctx, "p", "e-1", []byte("out\n"), []byte("err\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "p", "e-1.log"), path)

	got, err := repo.Read(ctx, "p", "e-1")
	require.NoError(t, err)
	assert.Equal(t, "out\nerr\n", got.Content)
	assert.Equal(t, "8 byte", got.Size)

	deleted, err := repo.Delete(ctx, "p", []string{"e-1", "e-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e-1"}, deleted)

	_, err = repo.Read(ctx, "p", "e-1")
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestLogRepository_RejectsUnsafeSegments(t *testing.T) {
	repo := NewLogRepository(t.TempDir(), logger.Nop())
	ctx := context.Background()

	tests := []struct {
		name    string
		project string
		ids     []string
	}{
		{name: "dotted project", project: "p.q", ids: []string{"e"}},
		{name: "slash in id", project: "p", ids: []string{"a/b"}},
		{name: "parent id", project: "p", ids: []string{".."}},
		{name: "empty project", project: "", ids: []string{"e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Delete(ctx, tt.project, tt.ids)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}

	_, err := repo.Read(ctx, "p", "../secret")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
