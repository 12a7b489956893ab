package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sailboat/pkg/cache"
	"sailboat/pkg/common"
	"sailboat/pkg/logger"
	"sailboat/pkg/utils"
)

// ArtifactRepository resolves immutable artifacts stored as
// {root}/{project}/{version}{ext} and stages them for a single run.
type ArtifactRepository interface {
	Locate(ctx context.Context, project, version string) (string, error)
	// Stage copies the artifact into a fresh directory under the staging root.
	// cleanup removes that directory and must be called on every path.
	Stage(ctx context.Context, path string) (staged string, cleanup func(), err error)
}

type artifactRepository struct {
	root        string
	ext         string
	stagingRoot string
	cache       cache.Cache
	ttl         time.Duration
	log         *logger.Logger
}

func NewArtifactRepository(root, ext, stagingRoot string, c cache.Cache, ttl time.Duration, log *logger.Logger) ArtifactRepository {
	return &artifactRepository{
		root:        root,
		ext:         ext,
		stagingRoot: stagingRoot,
		cache:       c,
		ttl:         ttl,
		log:         log,
	}
}

func (r *artifactRepository) Locate(ctx context.Context, project, version string) (string, error) {
	if !utils.IsSafePathSegment(project) || !utils.IsSafePathSegment(version) {
		return "", fmt.Errorf("%w: project %q version %q", ErrInvalidPath, project, version)
	}

	key := fmt.Sprintf(common.KEY_ARTIFACT_LOCATION, project, version)
	if path, ok := cache.Get[string](r.cache, key); ok {
		return path, nil
	}

	path := filepath.Join(r.root, project, version+r.ext)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s/%s", ErrArtifactNotFound, project, version)
		}
		return "", fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s/%s is a directory", ErrArtifactNotFound, project, version)
	}

	if r.cache != nil && r.ttl > 0 {
		r.cache.Set(key, path, r.ttl)
	}
	return path, nil
}

func (r *artifactRepository) Stage(ctx context.Context, path string) (string, func(), error) {
	if err := os.MkdirAll(r.stagingRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("failed to create staging root: %w", err)
	}
	dir, err := os.MkdirTemp(r.stagingRoot, "run-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create staging dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			r.log.WarnContext(ctx, "Failed to clean staging dir", logger.ErrorField(err), logger.StringField("dir", dir))
		}
	}

	staged := filepath.Join(dir, filepath.Base(path))
	if err := copyFile(path, staged); err != nil {
		cleanup()
		if errors.Is(err, os.ErrNotExist) {
			return "", func() {}, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return "", func() {}, fmt.Errorf("failed to stage artifact: %w", err)
	}
	return staged, cleanup, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o500)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
