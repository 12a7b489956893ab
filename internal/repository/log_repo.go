package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sailboat/pkg/logger"
	"sailboat/pkg/utils"
)

// ExecutionLog is the content of one persisted log artifact.
type ExecutionLog struct {
	Content string `json:"content"`
	Size    string `json:"size"`
}

// LogRepository stores captured output as {root}/{project}/{execution_id}.log.
type LogRepository interface {
	Write(ctx context.Context, project, executionID string, stdout, stderr []byte) (string, error)
	Read(ctx context.Context, project, executionID string) (*ExecutionLog, error)
	// Delete removes each log and returns the ids that were actually deleted.
	Delete(ctx context.Context, project string, executionIDs []string) ([]string, error)
}

type logRepository struct {
	root string
	log  *logger.Logger
}

func NewLogRepository(root string, log *logger.Logger) LogRepository {
	return &logRepository{root: root, log: log}
}

func (r *logRepository) path(project, executionID string) (string, error) {
	if !utils.IsPlainPathSegment(project) || !utils.IsPlainPathSegment(executionID) {
		return "", fmt.Errorf("%w: project %q execution %q", ErrInvalidPath, project, executionID)
	}
	return filepath.Join(r.root, project, executionID+".log"), nil
}

func (r *logRepository) Write(ctx context.Context, project, executionID string, stdout, stderr []byte) (string, error) {
	path, err := r.path(project, executionID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create log dir: %w", err)
	}

	content := make([]byte, 0, len(stdout)+len(stderr))
	content = append(content, stdout...)
	content = append(content, stderr...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write log: %w", err)
	}
	return path, nil
}

func (r *logRepository) Read(ctx context.Context, project, executionID string) (*ExecutionLog, error) {
	path, err := r.path(project, executionID)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrLogNotFound, project, executionID)
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return &ExecutionLog{
		Content: string(content),
		Size:    utils.HumanSize(int64(len(content))),
	}, nil
}

func (r *logRepository) Delete(ctx context.Context, project string, executionIDs []string) ([]string, error) {
	if !utils.IsPlainPathSegment(project) {
		return nil, fmt.Errorf("%w: project %q", ErrInvalidPath, project)
	}
	for _, id := range executionIDs {
		if !utils.IsPlainPathSegment(id) {
			return nil, fmt.Errorf("%w: execution %q", ErrInvalidPath, id)
		}
	}

	deleted := make([]string, 0, len(executionIDs))
	for _, id := range executionIDs {
		path := filepath.Join(r.root, project, id+".log")
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				r.log.WarnContext(ctx, "Failed to delete log", logger.ErrorField(err), logger.StringField("path", path))
			}
			continue
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}
