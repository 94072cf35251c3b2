package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/typeloc"
)

// --- Helpers ---

// openEngine opens the Engine over the existing index for the repository
// containing the working directory.
func openEngine() (*typeloc.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	st, err := loadSettings(findRepoRoot(cwd))
	if err != nil {
		return nil, err
	}
	dbPath := st.dbPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'typeloc index' first)", dbPath)
	}
	return typeloc.New(dbPath, typeloc.WithLogger(st.logger))
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// resolveRef accepts a file:// or jdt:// URI, or a plain file path.
func resolveRef(arg string) (typeloc.ResourceRef, error) {
	if strings.Contains(arg, "://") || strings.HasPrefix(arg, "file:") {
		return typeloc.ParseResourceRef(arg)
	}
	path, err := resolveFilePath(arg)
	if err != nil {
		return typeloc.ResourceRef{}, err
	}
	return typeloc.FileRef(path), nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

func refToCLI(ref typeloc.ResourceRef) CLIResource {
	return CLIResource{
		URI:      ref.URI(),
		Kind:     ref.Kind.String(),
		Path:     ref.Path,
		Archive:  ref.Archive,
		Entry:    ref.Entry,
		Editable: ref.Editable(),
	}
}

// --- Commands ---

var flagOffset int

var fqnCmd = &cobra.Command{
	Use:   "fqn <file-or-uri> [line]",
	Short: "Binary name of the type enclosing a position",
	Long:  "Prints the binary name of the innermost type declaration enclosing the first non-blank character of a 1-based line, or a byte offset given with --offset.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runFqn,
}

func init() {
	fqnCmd.Flags().IntVar(&flagOffset, "offset", 0, "byte offset instead of a line")
}

func runFqn(cmd *cobra.Command, args []string) error {
	ref, err := resolveRef(args[0])
	if err != nil {
		return outputError("fqn", err)
	}
	useOffset := cmd.Flags().Changed("offset")
	if !useOffset && len(args) < 2 {
		return outputError("fqn", fmt.Errorf("requires either a <line> argument or --offset flag"))
	}

	e, err := openEngine()
	if err != nil {
		return outputError("fqn", err)
	}
	defer e.Close()

	ctx := context.Background()
	r := e.Resolver()
	var res typeloc.FqnResult
	if useOffset {
		res, err = r.IdentifyFqnInResource(ctx, ref, flagOffset)
	} else {
		line, lineErr := parseIntArg(args[1], "line")
		if lineErr != nil {
			return outputError("fqn", lineErr)
		}
		res, err = r.IdentifyFqnAtLine(ctx, ref, line)
	}
	if err != nil {
		return outputError("fqn", err)
	}

	return outputResult(CLIResult{
		Command: "fqn",
		Results: CLIFqn{FQN: res.FQN, Resource: refToCLI(res.Resource)},
	})
}

var findCmd = &cobra.Command{
	Use:   "find <fqn> <line>",
	Short: "Resources declaring a binary name",
	Long:  "Finds the resources declaring a binary name such as pkg.Outer$1Local. When several resources declare the outer type, the 1-based hint line selects among them.",
	Args:  cobra.ExactArgs(2),
	RunE:  runFind,
}

func runFind(cmd *cobra.Command, args []string) error {
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("find", err)
	}

	e, err := openEngine()
	if err != nil {
		return outputError("find", err)
	}
	defer e.Close()

	matches, err := e.Resolver().FindResourcesByFqn(context.Background(), args[0], line)
	if err != nil {
		return outputError("find", err)
	}

	results := make([]CLIMatch, len(matches))
	for i, m := range matches {
		results[i] = CLIMatch{Resource: refToCLI(m.Resource), Confidence: m.Confidence.String()}
	}
	total := len(results)
	return outputResult(CLIResult{
		Command:    "find",
		Results:    results,
		TotalCount: &total,
	})
}

var contentCmd = &cobra.Command{
	Use:   "content <uri>",
	Short: "Print the text of a file or library resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runContent,
}

func runContent(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("content", err)
	}
	defer e.Close()

	content, err := e.Content(context.Background(), args[0])
	if err != nil {
		return outputError("content", err)
	}
	return outputResult(CLIResult{
		Command: "content",
		Results: CLIContent{URI: args[0], Text: string(content)},
	})
}
