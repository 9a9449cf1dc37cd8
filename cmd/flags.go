package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Output formats accepted by commands that print data.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// OutputFlags holds the shared output flag.
type OutputFlags struct {
	Format string
}

// AddOutputFlags adds --format/-f to cmd, restricted to formats.
func AddOutputFlags(cmd *cobra.Command, formats ...string) *OutputFlags {
	flags := &OutputFlags{}
	cmd.Flags().StringVarP(&flags.Format, "format", "f", formats[0],
		fmt.Sprintf("Output format (%s)", strings.Join(formats, "|")))

	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, formats)
	})
	return flags
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: flag.Value.Set,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidateFormatWithSuggestion rejects formats outside allowed and suggests
// the closest match by prefix.
func ValidateFormatWithSuggestion(format string, allowed []string) error {
	lower := strings.ToLower(format)
	for _, candidate := range allowed {
		if lower == candidate {
			return nil
		}
	}

	for _, candidate := range allowed {
		if lower != "" && strings.HasPrefix(candidate, lower) {
			return fmt.Errorf("unsupported format %q, did you mean %q?", format, candidate)
		}
	}
	return fmt.Errorf("unsupported format %q (supported: %s)", format, strings.Join(allowed, ", "))
}
