package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

// ValidateRunner executes external validator processes.
type ValidateRunner interface {
	// LookPath resolves an executable name against PATH.
	LookPath(name string) (string, error)
	// Run executes the command and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewValidateCmd creates the validate subcommand. It shells out to xmllint,
// which handles the actual XSD validation.
func NewValidateCmd(runner ValidateRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "validate <xml-file>...",
		Short:        "Validate XML instance documents against a flattened schema",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaPath, _ := cmd.Flags().GetString("schema")

			lint, err := runner.LookPath("xmllint")
			if err != nil {
				return fmt.Errorf("xmllint not found on PATH; install libxml2 tools")
			}

			colors := newPalette(cmd.OutOrStdout())
			passed, failed := 0, 0
			for _, file := range args {
				// Well-formedness first, so a truncated file fails with a
				// parse message instead of a wall of schema errors.
				if out, err := runner.Run(cmd.Context(), lint, "--noout", file); err != nil {
					failed++
					fmt.Fprintln(cmd.OutOrStdout(), colors.bad("FAIL %s: not well-formed: %s", file, firstErrorLine(out)))
					continue
				}
				out, err := runner.Run(cmd.Context(), lint, "--noout", "--schema", schemaPath, file)
				if err != nil {
					failed++
					fmt.Fprintln(cmd.OutOrStdout(), colors.bad("FAIL %s: %s", file, firstErrorLine(out)))
					continue
				}
				passed++
				fmt.Fprintln(cmd.OutOrStdout(), colors.ok("PASS %s", file))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d passed, %d failed\n", passed, failed)
			if failed > 0 {
				return fmt.Errorf("%d document(s) failed validation", failed)
			}
			return nil
		},
	}

	cmd.Flags().String("schema", "", "flattened schema document to validate against")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

// firstErrorLine extracts the first meaningful line from xmllint output.
// xmllint prints "<file> validates" on success and per-error lines on
// failure, so the success marker is skipped.
func firstErrorLine(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, " validates") {
			continue
		}
		return line
	}
	return "validation failed"
}

// execValidateRunner implements ValidateRunner using os/exec.
type execValidateRunner struct{}

func newDefaultValidateRunner() *execValidateRunner {
	return &execValidateRunner{}
}

func (r *execValidateRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r *execValidateRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
