// Package build drives the external UI toolkit that creates, builds, and runs
// the scaffold project. The toolkit is opaque to peek: it is only ever invoked
// through the command lines built here, with every argument validated before
// execution.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/logging"
	"github.com/conneroisu/peek/internal/validation"
)

// Option configures a Toolkit.
type Option func(*Toolkit)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *Toolkit) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// WithLogger sets the logger used for command output.
func WithLogger(logger logging.Logger) Option {
	return func(t *Toolkit) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Toolkit wraps the toolkit CLI.
type Toolkit struct {
	binary      string
	projectName string
	exec        Executor
	logger      logging.Logger
}

// NewToolkit constructs a Toolkit for binary. projectName is the scaffold's
// project name, which also names the prebuilt application binary.
func NewToolkit(binary, projectName string, opts ...Option) (*Toolkit, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.NewValidationError(errors.ErrCodeCommandNotAllowed, "toolkit binary required")
	}
	if err := validation.ValidateProjectName(projectName); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeCommandNotAllowed, "invalid project name")
	}

	t := &Toolkit{
		binary:      binary,
		projectName: projectName,
		exec:        NewCommandExecutor(),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithComponent("toolkit")
	return t, nil
}

// Binary returns the configured toolkit binary.
func (t *Toolkit) Binary() string {
	return t.binary
}

// CreateArgs builds the project-creation command line.
func (t *Toolkit) CreateArgs(dir string, platforms []string) []string {
	return []string{
		"create",
		"--platforms=" + strings.Join(platforms, ","),
		"--project-name=" + t.projectName,
		dir,
	}
}

// BuildArgs builds the debug build command line for platform.
func (t *Toolkit) BuildArgs(platform string) []string {
	return []string{"build", platform, "--debug"}
}

// RunArgs builds the machine-mode run command line. binary, when non-empty,
// is a prebuilt application the toolkit should launch instead of rebuilding.
func (t *Toolkit) RunArgs(platform, binary string) []string {
	args := []string{"run", "--machine", "-d", platform}
	if binary != "" {
		args = append(args, "--use-application-binary", binary)
	}
	return args
}

// ApplicationBinary returns the prebuilt debug binary for platform inside the
// scaffold dir, or "" when it has not been built.
func (t *Toolkit) ApplicationBinary(dir, platform string) string {
	path := filepath.Join(dir, "build", platform, "debug", t.projectName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}

// Create runs the project-creation command from the parent of dir.
func (t *Toolkit) Create(ctx context.Context, dir string, platforms []string) error {
	if _, err := t.Run(ctx, filepath.Dir(dir), t.CreateArgs(dir, platforms)); err != nil {
		return errors.BootstrapError(errors.ErrCodeCreateFailed, "creating scaffold project", err)
	}
	return nil
}

// Build runs one debug build of the scaffold for platform.
func (t *Toolkit) Build(ctx context.Context, dir, platform string) error {
	if _, err := t.Run(ctx, dir, t.BuildArgs(platform)); err != nil {
		return errors.BootstrapError(errors.ErrCodeBuildFailed, "building scaffold project", err)
	}
	return nil
}

// Start launches the scaffold in machine mode, reusing the prebuilt binary
// when one exists.
func (t *Toolkit) Start(ctx context.Context, dir, platform string) (Process, error) {
	args := t.RunArgs(platform, t.ApplicationBinary(dir, platform))
	if err := t.validate(args); err != nil {
		return nil, err
	}

	t.logger.Info(ctx, "Starting toolkit", "dir", dir, "args", strings.Join(args, " "))
	proc, err := t.exec.Start(ctx, dir, t.binary, args)
	if err != nil {
		return nil, errors.DaemonError(errors.ErrCodeProcessStart, "starting toolkit run", err)
	}
	return proc, nil
}

// Run executes the toolkit synchronously in dir.
func (t *Toolkit) Run(ctx context.Context, dir string, args []string) ([]byte, error) {
	if err := t.validate(args); err != nil {
		return nil, err
	}

	perf := logging.StartOperation(t.logger, args[0])
	output, err := t.exec.Run(ctx, dir, t.binary, args)
	perf.End(ctx, "dir", dir)

	if err != nil {
		if ctx.Err() != nil {
			return output, fmt.Errorf("%s %s canceled: %w", t.binary, args[0], ctx.Err())
		}
		return output, fmt.Errorf("%s %s failed: %w\nOutput: %s", t.binary, args[0], err, output)
	}
	if len(output) > 0 {
		t.logger.Debug(ctx, "Toolkit output", "command", args[0], "output", string(output))
	}
	return output, nil
}

// validate validates the command and arguments to prevent command injection
func (t *Toolkit) validate(args []string) error {
	if len(args) == 0 {
		return errors.NewValidationError(errors.ErrCodeCommandNotAllowed, "empty toolkit command")
	}
	if err := validation.ValidateArgument(t.binary); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeCommandNotAllowed,
			fmt.Sprintf("invalid toolkit binary %q", t.binary))
	}
	for _, arg := range args {
		if err := validation.ValidateArgument(arg); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeCommandNotAllowed,
				fmt.Sprintf("invalid argument %q", arg))
		}
	}
	return nil
}
