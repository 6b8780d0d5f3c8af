package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/symkit/chunkpub"
	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/pubtypes"
	"github.com/symkit/chunkpub/source"
)

func newUploadCmd(root *rootOptions) *cobra.Command {
	var (
		debugID string
		name    string
	)

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files or directories of artifacts",
		Long: `Upload chunks the given files, asks the server which chunks it is
missing, transmits only those, and waits for every artifact to assemble.
Directories are walked recursively; hidden files are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.resolveConfig()
			if err != nil {
				return err
			}
			if cfg.URL == "" || cfg.Organization == "" {
				return puberrors.NewError("upload", puberrors.ErrInvalidInput).
					WithMessage("url and org are required (flags, config file, or environment)")
			}
			if cfg.Token == "" {
				return puberrors.NewError("upload", puberrors.ErrInvalidInput).
					WithMessage("no token; set CHUNKPUB_TOKEN or the config file")
			}
			if len(args) > 1 && (name != "" || debugID != "") {
				return puberrors.NewError("upload", puberrors.ErrInvalidInput).
					WithMessage("--name and --debug-id apply to a single path only")
			}

			log, err := root.newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			sources, err := collectSources(args, name, debugID)
			if err != nil {
				return err
			}

			client, err := chunkpub.New(cfg.URL, cfg.Organization,
				pubtypes.StaticToken(cfg.Token),
				chunkpub.WithProject(cfg.Project),
				chunkpub.WithMaxRounds(cfg.MaxRounds),
				chunkpub.WithMaxAttempts(cfg.MaxAttempts),
				chunkpub.WithLogger(log),
			)
			if err != nil {
				return err
			}

			result, err := client.Publish(cmd.Context(), sources,
				chunkpub.WithProgressTracker(newConsoleProgress(cmd.ErrOrStderr())))
			if result != nil {
				printSummary(cmd, result)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "artifact name (single file upload only)")
	cmd.Flags().StringVar(&debugID, "debug-id", "", "artifact debug identifier (single file upload only)")
	return cmd
}

// collectSources expands the given paths into file sources. Directories are
// scanned recursively.
func collectSources(paths []string, name, debugID string) ([]pubtypes.ArtifactSource, error) {
	var sources []pubtypes.ArtifactSource
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := source.ScanDir(nil, path)
			if err != nil {
				return nil, err
			}
			for _, src := range found {
				sources = append(sources, src)
			}
			continue
		}
		sources = append(sources, source.NewFileSource(nil, path, name, debugID))
	}
	if len(sources) == 0 {
		return nil, puberrors.NewError("upload", puberrors.ErrInvalidInput).
			WithMessage("no files found at the given paths")
	}
	return sources, nil
}

// printSummary writes the per-artifact outcome table.
func printSummary(cmd *cobra.Command, result *pubtypes.PublishResult) {
	out := cmd.OutOrStdout()
	for _, a := range result.Artifacts {
		if a.Status == pubtypes.StatusComplete {
			fmt.Fprintf(out, "  %-9s %s (%s)\n", a.Status, a.Name, a.Checksum[:12])
			continue
		}
		fmt.Fprintf(out, "  %-9s %s: %v\n", a.Status, a.Name, a.Err)
	}
	fmt.Fprintf(out, "uploaded %d chunks (%d bytes) in %d rounds over %s\n",
		result.ChunksUploaded, result.BytesUploaded, result.Rounds,
		result.Duration.Truncate(time.Millisecond))
}
