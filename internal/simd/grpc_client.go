package simd

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the MarketSimulation service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return runField(out), nil
}

// CreateRun submits a scenario and returns the new run. runID may be empty.
func (c *Client) CreateRun(ctx context.Context, runID, scenarioYAML string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, "CreateRun", map[string]any{"run_id": runID, "scenario_yaml": scenarioYAML}, opts...)
}

func (c *Client) GetRun(ctx context.Context, runID string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, "GetRun", map[string]any{"run_id": runID}, opts...)
}

func (c *Client) StopRun(ctx context.Context, runID string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, "StopRun", map[string]any{"run_id": runID}, opts...)
}

// StreamRecords follows a run until it ends, calling fn for every event. The
// event's "type" field is EventStatus or EventRecord.
func (c *Client) StreamRecords(ctx context.Context, runID string, pollIntervalMs int, fn func(event map[string]any) error, opts ...grpc.CallOption) error {
	desc := &MarketSimulationServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, "/"+ServiceName+"/StreamRecords", opts...)
	if err != nil {
		return err
	}
	in, err := structpb.NewStruct(map[string]any{"run_id": runID, "poll_interval_ms": pollIntervalMs})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(msg.AsMap()); err != nil {
			return err
		}
	}
}

func runField(s *structpb.Struct) map[string]any {
	run, _ := s.AsMap()["run"].(map[string]any)
	return run
}
