package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatFqnText prints the binary name followed by its resource URI.
func formatFqnText(w io.Writer, r CLIFqn) {
	fmt.Fprintf(w, "%s\t%s\n", r.FQN, r.Resource.URI)
}

// formatMatchesText formats CLIMatch results as aligned columns.
func formatMatchesText(w io.Writer, matches []CLIMatch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONFIDENCE\tKIND\tURI")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Confidence, m.Resource.Kind, m.Resource.URI)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	return writeResultText(os.Stdout, result)
}

func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIFqn:
		formatFqnText(w, v)
	case []CLIMatch:
		formatMatchesText(w, v)
	case CLIContent:
		io.WriteString(w, v.Text)
	case nil:
		// No output for nil results.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
