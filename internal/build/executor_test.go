//go:build unix

package build

import (
	"bufio"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandExecutorRun(t *testing.T) {
	out, err := NewCommandExecutor().Run(context.Background(), t.TempDir(), "sh", []string{"-c", "echo hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(out))
}

func TestCommandExecutorStart(t *testing.T) {
	proc, err := NewCommandExecutor().Start(context.Background(), t.TempDir(), "sh", []string{"-c", "read line; echo got:$line; echo warn >&2; exit 3"})
	require.NoError(t, err)

	_, err = io.WriteString(proc.Stdin(), "ping\n")
	require.NoError(t, err)

	stdout := bufio.NewScanner(proc.Stdout())
	require.True(t, stdout.Scan())
	assert.Equal(t, "got:ping", stdout.Text())

	stderr, err := io.ReadAll(proc.Stderr())
	require.NoError(t, err)
	assert.Equal(t, "warn\n", string(stderr))

	for stdout.Scan() {
	}

	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}
