package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/internal/realtime"
	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/schema"
)

const maxReplayLine = 4 << 20

type replayReport struct {
	Envelopes int                         `yaml:"envelopes"`
	Results   map[realtime.Result]int     `yaml:"results"`
	Revisions map[schema.StoreName]uint64 `yaml:"revisions"`
	Stores    map[schema.StoreName]any    `yaml:"stores"`
}

func newReplayCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Apply a JSON-lines envelope log to empty stores and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				input = args[0]
			}
			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			report, err := replayEnvelopes(cmd.Context(), r)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "envelope log path (- for stdin)")
	return cmd
}

// replayEnvelopes dispatches every non-empty line of r into a fresh store set.
// Lines starting with # are skipped.
func replayEnvelopes(ctx context.Context, r io.Reader) (replayReport, error) {
	logger := pslog.Ctx(ctx)
	stores := store.NewSet(nil, logger)
	dispatcher, err := realtime.New(realtime.Config{Stores: stores})
	if err != nil {
		return replayReport{}, err
	}
	report := replayReport{Results: map[realtime.Result]int{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	line := 0
	for scanner.Scan() {
		line++
		frame := bytes.TrimSpace(scanner.Bytes())
		if len(frame) == 0 || frame[0] == '#' {
			continue
		}
		report.Envelopes++
		result := dispatcher.DispatchFrame(ctx, frame)
		report.Results[result]++
		if result == realtime.ResultRejected {
			logger.Warn("replay envelope rejected", "line", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return replayReport{}, fmt.Errorf("replay line %d: %w", line+1, err)
	}
	report.Revisions = stores.Revisions()
	report.Stores = stores.Snapshot()
	return report, nil
}
