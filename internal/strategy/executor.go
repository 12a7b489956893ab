package strategy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"sailboat/config"
)

// ExitCodeLaunchFailed is recorded when the worker process never started.
const ExitCodeLaunchFailed = -1

// ErrLaunch is returned when the worker process could not be started.
var ErrLaunch = errors.New("worker launch failed")

type LaunchType string

const (
	LaunchTypeInterpreter LaunchType = "interpreter"
	LaunchTypeBinary      LaunchType = "binary"
)

// Target is one staged artifact ready to run.
type Target struct {
	ExecutionID string
	Project     string
	Version     string
	Artifact    string
	WorkDir     string
}

type LaunchResult struct {
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	StartTime time.Time
	EndTime   time.Time
}

func (r LaunchResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// LaunchStrategy builds the worker command for a staged artifact.
type LaunchStrategy interface {
	Command(ctx context.Context, target Target) (*exec.Cmd, error)
	GetType() LaunchType
}

// New selects the launch strategy named by cfg.LaunchType.
func New(cfg config.Executor) (LaunchStrategy, error) {
	switch LaunchType(cfg.LaunchType) {
	case LaunchTypeInterpreter, "":
		if cfg.Interpreter == "" {
			return nil, fmt.Errorf("executor.interpreter is required for the interpreter launch type")
		}
		return NewInterpreterStrategy(cfg.Interpreter, cfg.InterpreterArgs, cfg.EntryPoint), nil
	case LaunchTypeBinary:
		return NewBinaryStrategy(), nil
	}
	return nil, fmt.Errorf("unknown launch type %q", cfg.LaunchType)
}

// Run starts the worker and blocks until it exits, capturing stdout and
// stderr in full. A non-zero exit is not an error. ErrLaunch is returned only
// when the process could not be started; the result still carries the timing.
func Run(ctx context.Context, s LaunchStrategy, target Target) (LaunchResult, error) {
	result := LaunchResult{ExitCode: ExitCodeLaunchFailed}

	cmd, err := s.Command(ctx, target)
	if err != nil {
		result.StartTime = time.Now()
		result.EndTime = result.StartTime
		return result, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = target.WorkDir
	cmd.Env = append(os.Environ(),
		"SAILBOAT_EXECUTION_ID="+target.ExecutionID,
		"SAILBOAT_PROJECT="+target.Project,
		"SAILBOAT_VERSION="+target.Version,
	)
	cmd.WaitDelay = 5 * time.Second

	result.StartTime = time.Now()
	if err := cmd.Start(); err != nil {
		result.EndTime = time.Now()
		return result, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	waitErr := cmd.Wait()
	result.EndTime = time.Now()
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case cmd.ProcessState != nil:
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if waitErr != nil && ctx.Err() != nil {
		result.Stderr = append(result.Stderr, []byte(fmt.Sprintf("\nERROR worker stopped: %v\n", ctx.Err()))...)
	}
	return result, nil
}
