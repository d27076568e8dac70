package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"arguard/internal/engine"
	"arguard/internal/ingest"
	"arguard/internal/normalize"
)

func newLiveCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Evaluate a recorded stream and annotate every record with its verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := mgr.Get()
			logger := newLogger(cfg)
			ctx := context.Background()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			m, err := loadModel(ctx, cfg, store)
			if err != nil {
				return err
			}
			session, err := engine.NewSession("live:"+input, m)
			if err != nil {
				return err
			}

			rc, err := ingest.Open(input)
			if err != nil {
				return err
			}
			defer rc.Close()

			var out io.Writer = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			bw := bufio.NewWriter(out)
			defer bw.Flush()
			enc := json.NewEncoder(bw)

			reader := ingest.NewReader(rc)
			for {
				obs, err := reader.Next()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					var de *normalize.DataError
					if !errors.As(err, &de) {
						return fmt.Errorf("read input: %w", err)
					}
					if obs == nil {
						logger.Warn("live record dropped", "line", reader.Line(), "err", err)
						continue
					}
					logger.Debug("live record incomplete", "line", reader.Line(), "fields", de.Fields)
				}
				v := session.Observe(*obs)
				record := make(map[string]any, len(obs.Raw)+2)
				for k, val := range obs.Raw {
					record[k] = val
				}
				record["ids"] = v.Alert()
				record["explanation"] = v.Explanation()
				if err := enc.Encode(record); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Recorded stream to evaluate (.gz is decompressed)")
	cmd.Flags().StringVar(&output, "output", "-", "Annotated output file, - for stdout")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
