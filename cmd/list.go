package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/peek/internal/orchestrator"
	"github.com/conneroisu/peek/internal/registry"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List discovered previews",
	Long: `Scan the module for preview functions and list them.

Only exported functions without a receiver, outside package main, whose doc
comment carries the preview directive are listed.

Examples:
  peek list                 # Table of previews
  peek list -f json         # Output as JSON
  peek l --format yaml      # Output as YAML`,
	RunE: runList,
}

var listFlags *OutputFlags

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddOutputFlags(listCmd, FormatTable, FormatJSON, FormatYAML)
}

// listedPreview is one preview function as printed by list.
type listedPreview struct {
	Function string `json:"function" yaml:"function"`
	Package  string `json:"package" yaml:"package"`
	File     string `json:"file" yaml:"file"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSession()
	if err != nil {
		return err
	}

	o, err := orchestrator.New(cfg, logger)
	if err != nil {
		return err
	}

	entries, err := o.Discover(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	format := strings.ToLower(listFlags.Format)
	previews := flattenEntries(o.Root(), entries)
	if len(previews) == 0 && format == FormatTable {
		fmt.Fprintln(out, "No previews found.")
		return nil
	}

	return writePreviews(out, format, previews)
}

// flattenEntries expands entries into one row per symbol with paths relative
// to root.
func flattenEntries(root string, entries []registry.Entry) []listedPreview {
	previews := make([]listedPreview, 0, len(entries))
	for _, entry := range entries {
		file := entry.File
		if rel, err := filepath.Rel(root, entry.File); err == nil {
			file = filepath.ToSlash(rel)
		}
		for _, symbol := range entry.Symbols {
			previews = append(previews, listedPreview{
				Function: symbol,
				Package:  entry.Package,
				File:     file,
			})
		}
	}
	return previews
}

func writePreviews(w io.Writer, format string, previews []listedPreview) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(previews)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(previews)
	case FormatTable:
		_, err := fmt.Fprintln(w, renderPreviewTable(previews))
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func renderPreviewTable(previews []listedPreview) string {
	title := cases.Title(language.Und)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{title.String("function"), title.String("package"), title.String("file")})
	for _, p := range previews {
		tw.AppendRow(table.Row{p.Function, p.Package, p.File})
	}
	tw.AppendFooter(table.Row{"", title.String("total"), len(previews)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AlignHeader: text.AlignLeft},
		{Number: 2, AlignHeader: text.AlignLeft},
		{Number: 3, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
