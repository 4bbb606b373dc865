package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/levelbgm/previewd/internal/api"
	"github.com/levelbgm/previewd/internal/preview"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		hash       string
		start, end int64
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Cut one preview clip and print the JSON response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash = strings.TrimSpace(hash)
			if hash == "" {
				return fmt.Errorf("--hash is required")
			}

			req := preview.Request{SourceHash: hash}
			if cmd.Flags().Changed("start") {
				req.Start = &start
			}
			if cmd.Flags().Changed("end") {
				req.End = &end
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()

			comps, err := buildComponents(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			out, err := comps.service.Convert(cmd.Context(), req)
			if err != nil {
				return err
			}

			_, body := api.OutcomeResponse(out)
			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(body); err != nil {
				return err
			}
			return outcomeError(out)
		},
	}

	cmd.Flags().StringVar(&hash, "hash", "", "Source track hash (object LevelBgm/<hash>)")
	cmd.Flags().Int64Var(&start, "start", 0, "Clip start in milliseconds")
	cmd.Flags().Int64Var(&end, "end", 0, "Clip end in milliseconds")

	return cmd
}

// outcomeError maps an outcome to the command's exit status. Only success and
// a missing source exit zero.
func outcomeError(out preview.Outcome) error {
	switch out.Kind {
	case preview.KindSuccess, preview.KindNotFound:
		return nil
	case preview.KindTranscodeFailed:
		return fmt.Errorf("conversion failed: ffmpeg exited with code %d", out.ExitCode)
	default:
		return fmt.Errorf("conversion failed: %s", out.Kind)
	}
}
