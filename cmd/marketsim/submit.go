package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/GoSim-25-26J-441/marketsim/internal/simd"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
)

type submitOpts struct {
	grpcAddr string
	runID    string
	records  string
	detach   bool
	pollMs   int
}

func newSubmitCmd() *cobra.Command {
	var o submitOpts
	cmd := &cobra.Command{
		Use:   "submit [scenario.yaml]",
		Short: "Submit a scenario to a running daemon over gRPC and follow it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(scenarioArg(args))
			if err != nil {
				return fmt.Errorf("failed to read scenario file: %w", err)
			}

			conn, err := grpc.NewClient(o.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("connect %s: %w", o.grpcAddr, err)
			}
			defer conn.Close()
			client := simd.NewClient(conn)

			ctx := cmd.Context()
			run, err := client.CreateRun(ctx, o.runID, string(data))
			if err != nil {
				return err
			}
			runID, _ := run["id"].(string)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s %s\n", runID, run["status"])
			if o.detach {
				return nil
			}

			var sink io.Writer
			if o.records != "" {
				f, err := os.Create(o.records)
				if err != nil {
					return err
				}
				defer f.Close()
				sink = f
			}
			return follow(ctx, client, runID, o.pollMs, out, sink)
		},
	}
	cmd.Flags().StringVar(&o.grpcAddr, "grpc-addr", "localhost:9090", "daemon gRPC address")
	cmd.Flags().StringVar(&o.runID, "run-id", "", "run ID (generated when empty)")
	cmd.Flags().StringVar(&o.records, "records", "", "write streamed records as JSON lines to this file")
	cmd.Flags().BoolVar(&o.detach, "detach", false, "return after the run is created")
	cmd.Flags().IntVar(&o.pollMs, "poll-ms", 500, "status poll interval in milliseconds")
	return cmd
}

// follow prints status changes and writes every record event to sink as one
// JSON document per line. A run that does not complete is an error.
func follow(ctx context.Context, client *simd.Client, runID string, pollMs int, out, sink io.Writer) error {
	var (
		enc    *json.Encoder
		status string
		count  int
	)
	if sink != nil {
		enc = json.NewEncoder(sink)
	}
	err := client.StreamRecords(ctx, runID, pollMs, func(ev map[string]any) error {
		switch ev["type"] {
		case simd.EventStatus:
			run, _ := ev["run"].(map[string]any)
			status, _ = run["status"].(string)
			fmt.Fprintf(out, "run %s %s\n", runID, status)
			if msg, ok := run["error"].(string); ok {
				fmt.Fprintf(out, "  error: %s\n", msg)
			}
		case simd.EventRecord:
			count++
			if enc != nil {
				return enc.Encode(ev["record"])
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Debug("Stream finished", "run_id", runID, "records", count)
	if status != string(models.RunStatusCompleted) {
		return fmt.Errorf("run %s ended as %s", runID, status)
	}
	fmt.Fprintf(out, "received %d records\n", count)
	return nil
}
