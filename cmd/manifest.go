package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndckit/xsdflat/internal/manifest"
)

// ManifestIO handles I/O for the manifest command.
type ManifestIO interface {
	// ReadManifest loads the message manifest from path.
	ReadManifest(path string) (*manifest.Manifest, error)
}

// manifestOutput is the JSON output schema for the manifest command.
type manifestOutput struct {
	Version  string            `json:"version"`
	Versions []manifestVersion `json:"versions"`
}

type manifestVersion struct {
	Label    string   `json:"label"`
	Messages []string `json:"messages"`
}

// NewManifestCmd creates the manifest subcommand, which shows the versions
// and normalized message filenames a manifest defines.
func NewManifestCmd(io ManifestIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "manifest",
		Short:        "Show the versions and messages a manifest defines",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, _ := cmd.Flags().GetString("manifest")
			onlyVersion, _ := cmd.Flags().GetString("version")
			jsonMode, _ := cmd.Flags().GetBool("json")

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

			if jsonMode {
				out := manifestOutput{Version: "1", Versions: []manifestVersion{}}
				for _, label := range labels {
					messages, err := mf.Messages(label)
					if err != nil {
						return err
					}
					out.Versions = append(out.Versions, manifestVersion{Label: label, Messages: messages})
				}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
				return nil
			}
			for _, label := range labels {
				messages, err := mf.Messages(label)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", label)
				for _, msg := range messages {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", msg)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("manifest", "message_manifest.yaml", "manifest mapping versions to message schemas")
	cmd.Flags().String("version", "", "show a single manifest version")
	cmd.Flags().Bool("json", false, "output the manifest as JSON")

	return cmd
}

// fileManifestIO implements ManifestIO using OS file I/O.
type fileManifestIO struct{}

func newDefaultManifestIO() *fileManifestIO {
	return &fileManifestIO{}
}

func (f *fileManifestIO) ReadManifest(path string) (*manifest.Manifest, error) {
	return manifest.Load(path)
}
