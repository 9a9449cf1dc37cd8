package daemon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"github.com/conneroisu/peek/internal/build"
	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/logging"
)

// maxLineSize bounds a single stdout line; app.log events can be long.
const maxLineSize = 1 << 20

// Launcher starts the run process. *build.Toolkit satisfies it.
type Launcher interface {
	Start(ctx context.Context, dir, platform string) (build.Process, error)
}

// Options configures a Client.
type Options struct {
	// Dir is the scaffold directory the run process starts in.
	Dir      string
	Platform string
	Launcher Launcher
	// Recorder, when set, sees every request after it is written.
	Recorder Recorder
	Logger   logging.Logger
}

// Client owns one run process and its session.
type Client struct {
	opts    Options
	logger  logging.Logger
	session *Session

	started atomic.Bool
	proc    build.Process

	writeMutex sync.Mutex
	nextID     int64

	done     chan struct{}
	exitCode int
	exitErr  error
}

// New creates a Client. Nothing runs until Start.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	session := NewSession()
	return &Client{
		opts:    opts,
		logger:  opts.Logger.WithComponent("daemon").With("session", session.ID()),
		session: session,
		done:    make(chan struct{}),
	}
}

// Session returns the client's session.
func (c *Client) Session() *Session {
	return c.session
}

// Start spawns the run process and begins reading its output. It returns
// once the process is running.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.DaemonError(errors.ErrCodeProcessStart, "daemon client already started", nil)
	}

	proc, err := c.opts.Launcher.Start(ctx, c.opts.Dir, c.opts.Platform)
	if err != nil {
		c.exitCode = -1
		c.exitErr = err
		close(c.done)
		return err
	}
	c.proc = proc
	c.logger.Info(ctx, "Run process started", "dir", c.opts.Dir, "platform", c.opts.Platform)

	// Both streams must reach EOF before Wait, which closes the pipes.
	var readers conc.WaitGroup
	readers.Go(func() { c.readStdout(ctx, proc.Stdout()) })
	readers.Go(func() { c.readStderr(ctx, proc.Stderr()) })

	go func() {
		readers.Wait()
		code, err := proc.Wait()
		c.exitCode = code
		c.exitErr = err
		c.session.Detach()
		if err != nil {
			c.logger.Error(ctx, err, "Run process wait failed")
		} else {
			c.logger.Info(ctx, "Run process exited", "exit_code", code)
		}
		close(c.done)
	}()

	return nil
}

// Done is closed once the run process has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the run process exits and returns its exit code.
func (c *Client) Wait() (int, error) {
	<-c.done
	return c.exitCode, c.exitErr
}

// ExitCode returns the exit code, or -1 while the process is running.
func (c *Client) ExitCode() int {
	select {
	case <-c.done:
		return c.exitCode
	default:
		return -1
	}
}

// Stop kills the run process. It is safe to call after exit.
func (c *Client) Stop() error {
	if c.proc == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	default:
	}
	if err := c.proc.Kill(); err != nil {
		return errors.DaemonError(errors.ErrCodeProcessExited, "killing run process", err)
	}
	return nil
}

// RequestHotReload asks the application to reload changed code in place.
func (c *Client) RequestHotReload(ctx context.Context, appID string) error {
	return c.send(ctx, appID, false)
}

// RequestHotRestart asks the application to restart with fresh state.
func (c *Client) RequestHotRestart(ctx context.Context, appID string) error {
	return c.send(ctx, appID, true)
}

func (c *Client) send(ctx context.Context, appID string, fullRestart bool) error {
	if c.proc == nil {
		return errors.DaemonError(errors.ErrCodeRequestFailed, "run process not started", nil)
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	c.nextID++
	req := Request{
		ID:     c.nextID,
		Method: MethodAppRestart,
		Params: RestartParams{
			AppID:       appID,
			FullRestart: fullRestart,
			Pause:       false,
			Reason:      ReloadReason,
		},
	}
	line, err := EncodeRequest(req)
	if err != nil {
		return errors.DaemonError(errors.ErrCodeRequestFailed, "encoding request", err)
	}
	if _, err := c.proc.Stdin().Write(line); err != nil {
		return errors.DaemonError(errors.ErrCodeRequestFailed,
			fmt.Sprintf("writing request %d", req.ID), err)
	}

	if c.opts.Recorder != nil {
		c.opts.Recorder.Record(req)
	}
	c.logger.Debug(ctx, "Request sent", "id", req.ID, "app_id", appID, "full_restart", fullRestart)
	return nil
}

func (c *Client) readStdout(ctx context.Context, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if !IsEnvelope(line) {
			if text := strings.TrimSpace(string(line)); text != "" {
				c.logger.Debug(ctx, "Run process output", "line", text)
			}
			continue
		}

		events, err := DecodeEvents(line)
		if err != nil {
			c.logger.Warn(ctx, errors.DaemonError(errors.ErrCodeMalformedEvent, "decoding event", err),
				"Ignoring malformed event", "line", string(line))
			continue
		}
		for _, ev := range events {
			c.handleEvent(ctx, ev)
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.Warn(ctx, err, "Stopped reading run process stdout")
		// Keep the pipe drained so the process never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, stdout)
	}
}

func (c *Client) handleEvent(ctx context.Context, ev Event) {
	switch ev.Event {
	case EventAppStarted:
		appID := ev.AppID()
		if !c.session.SetAppID(appID) {
			c.logger.Debug(ctx, "Application already started", "app_id", appID)
			return
		}
		c.logger.Info(ctx, "Application started", "app_id", appID)
		if err := c.RequestHotRestart(ctx, appID); err != nil {
			c.logger.Warn(ctx, err, "Initial hot restart failed", "app_id", appID)
		}

	case EventAppStop:
		c.session.Detach()
		c.logger.Info(ctx, "Application stopped", "app_id", ev.AppID())

	case EventDaemonLogMessage, EventAppLog:
		c.logger.Info(ctx, "Run process log", "event", ev.Event, "params", string(ev.Params))

	case EventDaemonConnected, EventAppStart, EventAppDebugPort, EventAppProgress:
		c.logger.Debug(ctx, "Run process event", "event", ev.Event, "params", string(ev.Params))

	case "":
		if ev.ID != nil {
			c.logger.Debug(ctx, "Request acknowledged", "id", *ev.ID)
		}

	default:
		c.logger.Debug(ctx, "Unhandled run process event", "event", ev.Event)
	}
}

func (c *Client) readStderr(ctx context.Context, stderr io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if strings.Trim(chunk, "\r\n") != "" {
				c.logger.Warn(ctx, nil, "Run process stderr", "output", chunk)
			}
		}
		if err != nil {
			if err != io.EOF {
				c.logger.Debug(ctx, "Stopped reading run process stderr", "error", err.Error())
			}
			return
		}
	}
}
