package strategy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// BinaryStrategy executes the staged artifact directly.
type BinaryStrategy struct{}

func NewBinaryStrategy() *BinaryStrategy {
	return &BinaryStrategy{}
}

func (s *BinaryStrategy) Command(ctx context.Context, target Target) (*exec.Cmd, error) {
	if err := os.Chmod(target.Artifact, 0o755); err != nil {
		return nil, fmt.Errorf("failed to mark artifact executable: %w", err)
	}
	return exec.CommandContext(ctx, target.Artifact), nil
}

func (s *BinaryStrategy) GetType() LaunchType {
	return LaunchTypeBinary
}
