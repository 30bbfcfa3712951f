package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapbinder/snapbinder/internal/blob"
	"github.com/snapbinder/snapbinder/internal/config"
	"github.com/snapbinder/snapbinder/internal/export"
	"github.com/snapbinder/snapbinder/internal/session"
)

func newExportCmd() *cobra.Command {
	var out string
	var configPath string

	cmd := &cobra.Command{
		Use:   "export <session.json>",
		Short: "Export a saved capture session to a searchable PDF",
		Long: `Reloads a serialized capture session and renders it as a paginated PDF
with an invisible text layer, without starting the server.`,
		Example: `  snapbinder export session.json
  snapbinder export session.json -o notes.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store := session.NewStore(blob.New(), session.Limits{
				MaxImages:   cfg.MaxImages,
				MaxBytes:    cfg.MaxSessionBytes,
				WarnRatio:   cfg.MemoryWarnRatio,
				UndoTimeout: cfg.UndoTimeout,
			})
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open session file: %w", err)
			}
			defer f.Close()
			if err := store.Load(f); err != nil {
				return err
			}

			sess := store.Current()
			if sess == nil || sess.ImageCount == 0 {
				return session.ErrNoScreenshots
			}

			images := store.Images()
			inputs := make([]export.Input, 0, len(images))
			for _, img := range images {
				if payload, ok := store.Payload(img.ID); ok {
					inputs = append(inputs, export.Input{Image: img, Payload: payload})
				}
			}

			exporter := export.New(export.Options{
				Margin:       cfg.PageMargin,
				MinPageW:     cfg.MinPageW,
				MinPageH:     cfg.MinPageH,
				MinWordBoxPt: cfg.MinWordBoxPt,
			})
			data, err := exporter.Export(sess.Name, inputs)
			if err != nil {
				return err
			}

			if out == "" {
				out = "snapbinder.pdf"
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("write document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d images to %s\n", sess.ImageCount, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Output PDF path")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	return cmd
}
