package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/report"
)

const formatText = "text"

func addFormatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "format", "o", formatText,
		"output format: "+strings.Join(append([]string{formatText}, report.Formats()...), ", "))
}

// render writes v in a machine format, or calls text for the default.
func render(cmd *cobra.Command, format string, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if format == "" || format == formatText {
		return text(w)
	}
	if !slices.Contains(report.Formats(), format) {
		return fmt.Errorf("unknown format %q", format)
	}
	return report.Encode(w, format, v)
}
