package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ndckit/xsdflat/internal/manifest"
)

// BatchIO handles I/O for the batch command.
type BatchIO interface {
	// ReadManifest loads the message manifest from path.
	ReadManifest(path string) (*manifest.Manifest, error)
	// ListVersionDirs returns the sorted directory names directly under root.
	ListVersionDirs(root string) ([]string, error)
	// NewSession opens a flatten session over the schema corpus rooted at dir.
	NewSession(dir string, families []string) FlattenSession
	// WriteFile writes data to dir/name, creating directories as needed.
	WriteFile(dir, name string, data []byte) error
	// FileExists reports whether dir/name exists.
	FileExists(dir, name string) (bool, error)
}

// batchOutput is the JSON output schema for the batch command.
type batchOutput struct {
	Version string          `json:"version"`
	RunID   string          `json:"runId"`
	Results []versionResult `json:"results"`
}

type versionResult struct {
	Label    string          `json:"label"`
	Folder   string          `json:"folder,omitempty"`
	Missing  bool            `json:"missing,omitempty"`
	Messages []messageResult `json:"messages"`
}

type messageResult struct {
	Name    string   `json:"name"`
	Outputs []string `json:"outputs"`
	Copied  []string `json:"copied"`
	Error   string   `json:"error,omitempty"`
}

// NewBatchCmd creates the batch subcommand.
func NewBatchCmd(io BatchIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "batch",
		Short:        "Flatten every manifest message across schema versions",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, _ := cmd.Flags().GetString("manifest")
			inputRoot, _ := cmd.Flags().GetString("input-dir")
			outputRoot, _ := cmd.Flags().GetString("output-dir")
			onlyVersion, _ := cmd.Flags().GetString("version")
			families, _ := cmd.Flags().GetStringSlice("family")
			jobs, _ := cmd.Flags().GetInt("jobs")
			jsonMode, _ := cmd.Flags().GetBool("json")
			if jobs < 1 {
				jobs = 1
			}

			mf, err := io.ReadManifest(manifestPath)
			if err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}
			labels := mf.VersionLabels()
			if onlyVersion != "" {
				if _, err := mf.Messages(onlyVersion); err != nil {
					return err
				}
				labels = []string{onlyVersion}
			}
			dirs, err := io.ListVersionDirs(inputRoot)
			if err != nil {
				return fmt.Errorf("listing %s: %w", inputRoot, err)
			}

			results := make([]versionResult, len(labels))
			wg, ctx := errgroup.WithContext(cmd.Context())
			wg.SetLimit(jobs)
			for i, label := range labels {
				i, label := i, label
				messages, err := mf.Messages(label)
				if err != nil {
					return err
				}
				wg.Go(func() error {
					results[i] = flattenVersion(ctx, io, versionJob{
						label:     label,
						folder:    matchVersionDir(dirs, label),
						messages:  messages,
						inputRoot: inputRoot,
						outputDir: filepath.Join(outputRoot, label),
						families:  families,
					})
					return nil
				})
			}
			_ = wg.Wait()

			flattened, failures := 0, 0
			colors := newPalette(cmd.OutOrStdout())
			for _, vr := range results {
				if vr.Missing {
					failures++
					if !jsonMode {
						fmt.Fprintln(cmd.OutOrStdout(), colors.bad("No schema folder matches version %s", vr.Label))
					}
					continue
				}
				if !jsonMode {
					fmt.Fprintf(cmd.OutOrStdout(), "=== %s (%s) ===\n", vr.Label, vr.Folder)
				}
				for _, mr := range vr.Messages {
					if mr.Error != "" {
						failures++
						if !jsonMode {
							fmt.Fprintln(cmd.OutOrStdout(), colors.bad("  %s: FAILED: %s", mr.Name, mr.Error))
						}
						continue
					}
					flattened++
					if !jsonMode {
						line := colors.ok("  %s: %d documents", mr.Name, len(mr.Outputs))
						if len(mr.Copied) > 0 {
							line += colors.info(", %d copied", len(mr.Copied))
						}
						fmt.Fprintln(cmd.OutOrStdout(), line)
					}
				}
			}

			if jsonMode {
				out := batchOutput{Version: "1", RunID: newRunID(), Results: results}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Flattened %d messages across %d versions (%d failures)\n",
					flattened, len(labels), failures)
			}
			if failures > 0 {
				return fmt.Errorf("%d message(s) failed", failures)
			}
			return nil
		},
	}

	cmd.Flags().String("manifest", "message_manifest.yaml", "manifest mapping versions to message schemas")
	cmd.Flags().String("input-dir", ".", "root directory holding one folder per schema version")
	cmd.Flags().String("output-dir", "flattened", "root directory for generated documents")
	cmd.Flags().String("version", "", "flatten a single manifest version")
	cmd.Flags().StringSlice("family", nil, "namespace-URI prefix owned by the project (repeatable)")
	cmd.Flags().Int("jobs", 4, "number of versions to flatten concurrently")
	cmd.Flags().Bool("json", false, "output a machine-readable run report")

	return cmd
}

type versionJob struct {
	label     string
	folder    string
	messages  []string
	inputRoot string
	outputDir string
	families  []string
}

// flattenVersion flattens every manifest message for one schema version.
// Failures are recorded per message, never propagated, so one broken
// message does not stop the rest of the run.
func flattenVersion(ctx context.Context, io BatchIO, job versionJob) versionResult {
	vr := versionResult{Label: job.label, Folder: job.folder, Messages: []messageResult{}}
	if job.folder == "" {
		vr.Missing = true
		return vr
	}
	session := io.NewSession(filepath.Join(job.inputRoot, job.folder), job.families)
	for _, msg := range job.messages {
		mr := messageResult{Name: msg, Outputs: []string{}, Copied: []string{}}
		res, err := session.Flatten(ctx, msg)
		if err != nil {
			mr.Error = err.Error()
			vr.Messages = append(vr.Messages, mr)
			continue
		}
		outDir := filepath.Join(job.outputDir, messageFolder(msg))
		for _, f := range res.Files {
			if err := io.WriteFile(outDir, f.Name, f.Data); err != nil {
				mr.Error = fmt.Sprintf("writing %s: %v", f.Name, err)
				break
			}
			mr.Outputs = append(mr.Outputs, f.Name)
		}
		if mr.Error == "" {
			for _, ff := range res.Foreign {
				exists, err := io.FileExists(outDir, ff.Name)
				if err != nil {
					mr.Error = fmt.Sprintf("checking %s: %v", ff.Name, err)
					break
				}
				if exists {
					continue
				}
				if err := io.WriteFile(outDir, ff.Name, ff.Data); err != nil {
					mr.Error = fmt.Sprintf("copying %s: %v", ff.Name, err)
					break
				}
				mr.Copied = append(mr.Copied, ff.Name)
			}
		}
		vr.Messages = append(vr.Messages, mr)
	}
	return vr
}

// matchVersionDir finds the directory for a version label. An exact match
// wins; otherwise the first sorted directory extending the label with a dot
// or underscore does, so "21.3" matches "21.3.1" and "21.3_fixed".
func matchVersionDir(dirs []string, label string) string {
	for _, d := range dirs {
		if d == label {
			return d
		}
	}
	for _, d := range dirs {
		if strings.HasPrefix(d, label+".") || strings.HasPrefix(d, label+"_") {
			return d
		}
	}
	return ""
}

// messageFolder names the per-message output folder, stripping the vendor
// prefix and extension so IATA_OrderViewRS.xsd lands in OrderViewRS/.
func messageFolder(message string) string {
	base := path.Base(filepath.ToSlash(message))
	base = strings.TrimPrefix(base, "IATA_")
	return strings.TrimSuffix(base, ".xsd")
}

// fileBatchIO implements BatchIO using OS file I/O.
// Impl methods wrap OS calls.
type fileBatchIO struct {
	fileFlattenIO
}

func newDefaultBatchIO() *fileBatchIO {
	return &fileBatchIO{}
}

func (f *fileBatchIO) ReadManifest(path string) (*manifest.Manifest, error) {
	return manifest.Load(path)
}

func (f *fileBatchIO) ListVersionDirs(root string) ([]string, error) {
	return f.ListVersionDirsImpl(root)
}

// ListVersionDirsImpl lists directories using os.ReadDir, which returns
// entries already sorted by name.
func (f *fileBatchIO) ListVersionDirsImpl(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}
