package preview

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) RenderFunc {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func TestGroup(t *testing.T) {
	assert.Equal(t, "Card", New("Card/default", nil).Group())
	assert.Equal(t, "", New("Card", nil).Group())
	assert.Equal(t, "", New("/odd", nil).Group())
}

func TestHostRender(t *testing.T) {
	var buf bytes.Buffer
	host := &Host{Out: &buf}

	err := host.Render([]Preview{
		New("Card/b", text("bee")),
		New("Button", text("btn")),
		New("Card/a", text("ay")),
	})
	require.NoError(t, err)

	assert.Equal(t, "=== Button\nbtn\n=== Card/a\nay\n=== Card/b\nbee\n", buf.String())
}

func TestHostRenderFilter(t *testing.T) {
	var buf bytes.Buffer
	host := &Host{Out: &buf, Filter: "Card/"}

	require.NoError(t, host.Render([]Preview{New("Card/a", text("ay")), New("Button", text("btn"))}))
	assert.NotContains(t, buf.String(), "Button")
	assert.Contains(t, buf.String(), "Card/a")
}

func TestHostRenderError(t *testing.T) {
	host := &Host{Out: io.Discard}
	boom := errors.New("boom")

	err := host.Render([]Preview{New("Broken", func(io.Writer) error { return boom })})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Broken")
}

func TestHostRunReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	host := &Host{Out: io.Discard}
	assert.NoError(t, host.Run(ctx, nil))
}
