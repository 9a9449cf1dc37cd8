package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"
)

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes binary in dir to completion and returns its combined output.
	Run(ctx context.Context, dir, binary string, args []string) ([]byte, error)
	// Start launches a long-running process with piped stdio.
	Start(ctx context.Context, dir, binary string, args []string) (Process, error)
}

// Process is a started child process. Stdout and Stderr must be read to EOF
// before Wait is called.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until exit and returns the exit code. A non-nil error means
	// the process could not be waited on, not that it exited unsuccessfully.
	Wait() (int, error)
	Kill() error
}

type commandExecutor struct{}

// NewCommandExecutor returns an Executor backed by os/exec.
func NewCommandExecutor() Executor {
	return commandExecutor{}
}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // arguments are validated by Toolkit
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

func (commandExecutor) Start(ctx context.Context, dir, binary string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // arguments are validated by Toolkit
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	return &commandProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

type commandProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
}

func (p *commandProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *commandProcess) Stdout() io.Reader     { return p.stdout }
func (p *commandProcess) Stderr() io.Reader     { return p.stderr }

func (p *commandProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (p *commandProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
