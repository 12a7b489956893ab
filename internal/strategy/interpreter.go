package strategy

import (
	"context"
	"os/exec"
	"strings"
)

// InterpreterStrategy runs the artifact through an interpreter. Arguments
// may reference {artifact}, {entry}, {project} and {version}.
type InterpreterStrategy struct {
	interpreter string
	args        []string
	entryPoint  string
}

func NewInterpreterStrategy(interpreter string, args []string, entryPoint string) *InterpreterStrategy {
	return &InterpreterStrategy{
		interpreter: interpreter,
		args:        args,
		entryPoint:  entryPoint,
	}
}

func (s *InterpreterStrategy) Command(ctx context.Context, target Target) (*exec.Cmd, error) {
	replacer := strings.NewReplacer(
		"{artifact}", target.Artifact,
		"{entry}", s.entryPoint,
		"{project}", target.Project,
		"{version}", target.Version,
	)
	args := make([]string, len(s.args))
	for i, arg := range s.args {
		args[i] = replacer.Replace(arg)
	}
	return exec.CommandContext(ctx, s.interpreter, args...), nil
}

func (s *InterpreterStrategy) GetType() LaunchType {
	return LaunchTypeInterpreter
}
