// Package executor runs the external build step.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

// ErrEmptyCommand indicates the build command has no program.
var ErrEmptyCommand = errors.New("build command is empty")

// Logger defines the logging interface for the executor.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// CommandExecutor runs a shell-style command line inside the working copy.
// The configuration is exported to the command through BUILD_* variables.
type CommandExecutor struct {
	args   []string
	stdout io.Writer
	stderr io.Writer
	logger Logger
}

var _ domain.BuildExecutor = (*CommandExecutor)(nil)

// NewCommandExecutor parses commandLine with shell quoting rules.
// An empty command line yields an executor that skips the build.
func NewCommandExecutor(commandLine string, stdout, stderr io.Writer, log Logger) (*CommandExecutor, error) {
	args, err := shlex.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("invalid build command %q: %w", commandLine, err)
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &CommandExecutor{
		args:   args,
		stdout: stdout,
		stderr: stderr,
		logger: log,
	}, nil
}

// ExecError reports a failed build command with its captured stderr.
type ExecError struct {
	Args   []string
	Err    error
	StdErr string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString(strings.Join(e.Args, " "))
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.StdErr != "" {
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(e.StdErr))
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Build runs the command with the repository home as working directory.
func (c *CommandExecutor) Build(ctx context.Context, env domain.Environment, cfg *domain.PipelineConfig) error {
	if len(c.args) == 0 {
		c.logger.Warn(ctx, "no build command configured, skipping build step", nil)
		return nil
	}
	if c.args[0] == "" {
		return ErrEmptyCommand
	}

	c.logger.Info(ctx, "running build command", map[string]interface{}{
		"command": strings.Join(c.args, " "),
		"dir":     env.RepositoryHome(),
	})

	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Dir = env.RepositoryHome()
	cmd.Env = BuildEnv(env, cfg)

	stderr := &bytes.Buffer{}
	cmd.Stdout = c.stdout
	cmd.Stderr = io.MultiWriter(stderr, c.stderr)

	if err := cmd.Run(); err != nil {
		return &ExecError{Args: c.args, Err: err, StdErr: stderr.String()}
	}
	return nil
}

// BuildEnv flattens env and the pipeline configuration into KEY=VALUE entries,
// sorted for stable output.
func BuildEnv(env domain.Environment, cfg *domain.PipelineConfig) []string {
	vars := make(map[string]string, len(env)+4)
	for k, v := range env {
		vars[k] = v
	}
	vars[domain.EnvRemoteURL] = cfg.RemoteURL
	vars[domain.EnvBranch] = cfg.Branch
	vars[domain.EnvTargetRevision] = cfg.TargetRevision
	if cfg.ReleaseVersion != "" {
		vars[domain.EnvReleaseVersion] = cfg.ReleaseVersion
	}

	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
