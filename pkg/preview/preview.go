// Package preview is the runtime library linked into the scaffold project that
// peek generates. Preview functions in a user's project return descriptors from
// this package:
//
//	//peek:preview
//	func CardPreviews() []preview.Preview {
//		return []preview.Preview{
//			preview.New("Card/default", func(w io.Writer) error {
//				return widgets.Card("Hello").Render(w)
//			}),
//		}
//	}
//
// The generated Previews aggregator collects every annotated function and the
// scaffold entry point hands the result to Serve.
package preview

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
)

// RenderFunc writes one preview to w.
type RenderFunc func(w io.Writer) error

// Preview describes one renderable preview instance.
type Preview struct {
	// Name is a slash-separated display name, e.g. "Card/default".
	Name   string
	Render RenderFunc
}

// Func is the signature peek discovers behind the preview directive.
type Func func() []Preview

// New returns a Preview with the given name and renderer.
func New(name string, render RenderFunc) Preview {
	return Preview{Name: name, Render: render}
}

// Group returns the leading path segment of the name, or "" for flat names.
func (p Preview) Group() string {
	if i := strings.IndexByte(p.Name, '/'); i > 0 {
		return p.Name[:i]
	}
	return ""
}

// Host renders previews to an output stream.
type Host struct {
	Out io.Writer
	// Filter restricts rendering to previews whose name has this prefix.
	Filter string
}

// Render writes every selected preview, separated by headers, in name order.
// Previews sharing a name keep their relative order.
func (h *Host) Render(previews []Preview) error {
	selected := make([]Preview, 0, len(previews))
	for _, p := range previews {
		if strings.HasPrefix(p.Name, h.Filter) {
			selected = append(selected, p)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Name < selected[j].Name
	})

	for _, p := range selected {
		if _, err := fmt.Fprintf(h.Out, "=== %s\n", p.Name); err != nil {
			return err
		}
		if p.Render == nil {
			continue
		}
		if err := p.Render(h.Out); err != nil {
			return fmt.Errorf("rendering preview %q: %w", p.Name, err)
		}
		if _, err := fmt.Fprintln(h.Out); err != nil {
			return err
		}
	}
	return nil
}

// Run renders previews and then blocks until ctx is done, keeping the
// application alive for the toolkit to hot reload.
func (h *Host) Run(ctx context.Context, previews []Preview) error {
	if err := h.Render(previews); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Serve is the scaffold entry point. PEEK_PREVIEW_FILTER narrows the rendered
// previews by name prefix.
func Serve(previews []Preview) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := &Host{Out: os.Stdout, Filter: os.Getenv("PEEK_PREVIEW_FILTER")}
	if err := host.Run(ctx, previews); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
