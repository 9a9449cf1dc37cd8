package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/peek/internal/config"
	"github.com/conneroisu/peek/internal/scaffolding"
)

// ConfigFile is the configuration file init writes and the CLI reads.
const ConfigFile = ".peek.yml"

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a default peek configuration",
	Long: `Write a .peek.yml with the default settings into dir, or the current
directory. An existing configuration file is left untouched.

With --example a small annotated preview file is added so "peek list"
has something to show.

Examples:
  peek init                    # Configure the current directory
  peek init ./app              # Configure ./app
  peek init --example          # Also add an example preview`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initExample bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initExample, "example", false, "Add an example preview file")
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}

	out := cmd.OutOrStdout()
	if err := createConfigFile(out, projectDir); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	if initExample {
		if err := createExamplePreview(out, projectDir); err != nil {
			return fmt.Errorf("failed to create example preview: %w", err)
		}
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Annotate preview functions with //"+config.DefaultMarker)
	fmt.Fprintln(out, "  2. peek list")
	fmt.Fprintln(out, "  3. peek start")
	return nil
}

func createConfigFile(out io.Writer, projectDir string) error {
	configPath := filepath.Join(projectDir, ConfigFile)

	// Don't overwrite existing config
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(out, "Configuration file already exists, skipping")
		return nil
	}

	defaults := config.Default()
	// Resolved at load time; writing it would pin the project to this host.
	defaults.Toolkit.Platform = ""

	var buf bytes.Buffer
	buf.WriteString("# peek configuration file\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(defaults); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(configPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(out, "Created "+ConfigFile)
	return nil
}

// ExampleFile is where --example puts its preview, relative to the project.
const ExampleFile = "previews/example_preview.go"

var exampleTemplate = template.Must(template.New("example").Parse(`package previews

import (
	"fmt"
	"io"

	preview "{{.Runtime}}"
)

// ExamplePreviews shows the shape of a preview function.
//
//{{.Marker}}
func ExamplePreviews() []preview.Preview {
	return []preview.Preview{
		preview.New("Example/hello", func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "Hello from peek")
			return err
		}),
	}
}
`))

func createExamplePreview(out io.Writer, projectDir string) error {
	path := filepath.Join(projectDir, filepath.FromSlash(ExampleFile))
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintln(out, "Example preview already exists, skipping")
		return nil
	}

	var buf bytes.Buffer
	err := exampleTemplate.Execute(&buf, struct{ Runtime, Marker string }{
		Runtime: scaffolding.RuntimeImport(config.DefaultRuntimeModule),
		Marker:  config.DefaultMarker,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}

	fmt.Fprintln(out, "Created "+ExampleFile)
	return nil
}
