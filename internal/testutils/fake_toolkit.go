package testutils

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/peek/internal/build"
)

// Call records one executor invocation.
type Call struct {
	Dir    string
	Binary string
	Args   []string
}

// FakeExecutor is a build.Executor that records calls instead of running
// anything.
type FakeExecutor struct {
	// OnRun, when set, produces the result of every Run call.
	OnRun func(call Call) ([]byte, error)
	// StartErr fails every Start call.
	StartErr error
	// Process is returned by Start; a new FakeProcess is used when nil.
	Process *FakeProcess

	mutex  sync.Mutex
	runs   []Call
	starts []Call
}

var _ build.Executor = (*FakeExecutor)(nil)

func (f *FakeExecutor) Run(ctx context.Context, dir, binary string, args []string) ([]byte, error) {
	call := Call{Dir: dir, Binary: binary, Args: append([]string(nil), args...)}
	f.mutex.Lock()
	f.runs = append(f.runs, call)
	onRun := f.OnRun
	f.mutex.Unlock()

	if onRun != nil {
		return onRun(call)
	}
	return nil, ctx.Err()
}

func (f *FakeExecutor) Start(ctx context.Context, dir, binary string, args []string) (build.Process, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.starts = append(f.starts, Call{Dir: dir, Binary: binary, Args: append([]string(nil), args...)})
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	if f.Process == nil {
		f.Process = NewFakeProcess()
	}
	return f.Process, nil
}

// Runs returns the recorded Run calls.
func (f *FakeExecutor) Runs() []Call {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]Call(nil), f.runs...)
}

// Starts returns the recorded Start calls.
func (f *FakeExecutor) Starts() []Call {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]Call(nil), f.starts...)
}

// CreatingExecutor returns a FakeExecutor whose "create" command makes the
// target directory with a minimal go.mod, the way the real toolkit would.
func CreatingExecutor() *FakeExecutor {
	return &FakeExecutor{
		OnRun: func(call Call) ([]byte, error) {
			if len(call.Args) == 0 || call.Args[0] != "create" {
				return []byte("ok"), nil
			}
			dir := call.Args[len(call.Args)-1]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
			gomod := []byte("module peek_scaffold\n\ngo 1.24\n")
			return []byte("created"), os.WriteFile(filepath.Join(dir, "go.mod"), gomod, 0o644)
		},
	}
}

// FakeProcess is a build.Process driven by the test. Lines written to its
// stdin are collected and can be awaited with NextRequest.
type FakeProcess struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	exited chan struct{}
	once   sync.Once
	code   int

	mutex    sync.Mutex
	requests []string
	incoming chan string
}

var _ build.Process = (*FakeProcess)(nil)

// NewFakeProcess creates a running fake process.
func NewFakeProcess() *FakeProcess {
	p := &FakeProcess{
		exited:   make(chan struct{}),
		incoming: make(chan string, 256),
	}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()

	go p.readStdin()
	return p
}

func (p *FakeProcess) readStdin() {
	scanner := bufio.NewScanner(p.stdinR)
	for scanner.Scan() {
		line := scanner.Text()
		p.mutex.Lock()
		p.requests = append(p.requests, line)
		p.mutex.Unlock()
		p.incoming <- line
	}
}

func (p *FakeProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *FakeProcess) Stdout() io.Reader     { return p.stdoutR }
func (p *FakeProcess) Stderr() io.Reader     { return p.stderrR }

// Emit writes one line to the process's stdout.
func (p *FakeProcess) Emit(line string) error {
	_, err := io.WriteString(p.stdoutW, line+"\n")
	return err
}

// EmitStderr writes a raw chunk to the process's stderr.
func (p *FakeProcess) EmitStderr(chunk string) error {
	_, err := io.WriteString(p.stderrW, chunk)
	return err
}

// Exit ends the process with code. Later calls are ignored.
func (p *FakeProcess) Exit(code int) {
	p.once.Do(func() {
		p.code = code
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		_ = p.stdinR.CloseWithError(errors.New("process exited"))
		close(p.exited)
	})
}

func (p *FakeProcess) Wait() (int, error) {
	<-p.exited
	return p.code, nil
}

func (p *FakeProcess) Kill() error {
	p.Exit(-1)
	return nil
}

// Exited reports whether Exit or Kill has been called.
func (p *FakeProcess) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// Requests returns every line written to stdin so far.
func (p *FakeProcess) Requests() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.requests...)
}

// NextRequest waits for the next stdin line.
func (p *FakeProcess) NextRequest(timeout time.Duration) (string, bool) {
	select {
	case line := <-p.incoming:
		return line, true
	case <-time.After(timeout):
		return "", false
	}
}
