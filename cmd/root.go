// Package cmd implements the xsdflat CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/ndckit/xsdflat/internal/schema"
)

// NewRootCmd creates the root xsdflat command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xsdflat",
		Short:         "xsdflat - flatten multi-file NDC schema distributions",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := GetBaseLogger(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(slogcontext.NewCtx(cmd.Context(), logger))
			return nil
		},
		RunE: rootRunE,
	}
	RegisterLoggingFlags(root)
	root.AddCommand(NewFlattenCmd(newDefaultFlattenIO()))
	root.AddCommand(NewBatchCmd(newDefaultBatchIO()))
	root.AddCommand(NewValidateCmd(newDefaultValidateRunner()))
	root.AddCommand(NewManifestCmd(newDefaultManifestIO()))
	return root
}

func rootRunE(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}

// emitFLTE001AndError writes an FLTE001 error diagnostic and returns a
// non-nil error so the caller exits with non-zero code. When jsonMode is
// true the diagnostic is written as a flattenOutput JSON object to stdout;
// otherwise it is written as a human-readable message to stderr.
func emitFLTE001AndError(cmd *cobra.Command, jsonMode bool, entry string, origErr error) error {
	if jsonMode {
		diags := []schema.Diagnostic{{
			Severity: "error",
			Code:     schema.CodeEntryUnloadable,
			Message:  origErr.Error(),
			Path:     entry,
		}}
		out := flattenOutput{
			Version:     "1",
			RunID:       newRunID(),
			Entry:       entry,
			Outputs:     []string{},
			Copied:      []string{},
			Diagnostics: diags,
		}
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: cannot load entry document: %v (FLTE001)\n", origErr)
	}
	return fmt.Errorf("flatten failed: %w", origErr)
}

// printDiagnostics writes each diagnostic to stderr in human-readable form.
// Paths and messages carry text taken from schema files, so both are
// sanitized before printing.
func printDiagnostics(cmd *cobra.Command, diags []schema.Diagnostic) {
	for _, d := range diags {
		if d.Path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s (%s)\n", d.Severity, sanitizeText(d.Path), sanitizeText(d.Message), d.Code)
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s (%s)\n", d.Severity, sanitizeText(d.Message), d.Code)
	}
}

// sanitizeText replaces control characters (runes < 0x20 or == 0x7F) with '?'
// before including file-derived values in human-readable output, preventing
// ANSI injection.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return '?'
		}
		return r
	}, s)
}

// hasErrorDiagnostic reports whether any diagnostic carries error severity.
func hasErrorDiagnostic(diags []schema.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == "error" {
			return true
		}
	}
	return false
}

// palette is the set of line colorizers for progress output. Colors are
// applied only when the destination is a terminal.
type palette struct {
	ok   func(format string, a ...interface{}) string
	info func(format string, a ...interface{}) string
	bad  func(format string, a ...interface{}) string
}

func newPalette(w io.Writer) palette {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return palette{ok: color.GreenString, info: color.CyanString, bad: color.RedString}
	}
	return palette{ok: fmt.Sprintf, info: fmt.Sprintf, bad: fmt.Sprintf}
}
