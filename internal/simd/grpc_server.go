package simd

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/marketsim/internal/output"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "marketsim.v1.MarketSimulation"

// DefaultPollInterval is how often StreamRecords checks a run's status
const DefaultPollInterval = 200 * time.Millisecond

// Stream event types sent by StreamRecords
const (
	EventStatus = "status"
	EventRecord = "record"
)

// MarketSimulationServer is the server API of the MarketSimulation service.
// Messages are google.protobuf.Struct documents:
//
//	CreateRun      {run_id?, scenario_yaml, callback_url?, callback_secret?} -> {run}
//	GetRun         {run_id} -> {run}
//	StopRun        {run_id} -> {run}
//	StreamRecords  {run_id, poll_interval_ms?} -> stream {type: status|record, ...}
type MarketSimulationServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamRecords(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// MarketSimulationServiceDesc describes the service for grpc.Server.RegisterService.
var MarketSimulationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketSimulationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateRun", Handler: unaryHandler("CreateRun", MarketSimulationServer.CreateRun)},
		{MethodName: "GetRun", Handler: unaryHandler("GetRun", MarketSimulationServer.GetRun)},
		{MethodName: "StopRun", Handler: unaryHandler("StopRun", MarketSimulationServer.StopRun)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamRecords", Handler: streamRecordsHandler, ServerStreams: true},
	},
	Metadata: "marketsim/v1/simulation.proto",
}

// RegisterMarketSimulationServer registers srv on s.
func RegisterMarketSimulationServer(s grpc.ServiceRegistrar, srv MarketSimulationServer) {
	s.RegisterService(&MarketSimulationServiceDesc, srv)
}

type unaryMethod func(MarketSimulationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MarketSimulationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MarketSimulationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamRecordsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MarketSimulationServer).StreamRecords(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// SimulationGRPCServer implements MarketSimulationServer on a RunStore backend.
type SimulationGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

// NewSimulationGRPCServer creates a new SimulationGRPCServer with the provided RunStore and RunExecutor.
func NewSimulationGRPCServer(store *RunStore, executor *RunExecutor) *SimulationGRPCServer {
	return &SimulationGRPCServer{
		store:    store,
		Executor: executor,
	}
}

func (s *SimulationGRPCServer) CreateRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scenarioYAML := stringField(req, "scenario_yaml")
	if scenarioYAML == "" {
		return nil, status.Error(codes.InvalidArgument, "scenario_yaml is required")
	}

	rec, err := createAndStart(s.store, s.Executor, stringField(req, "run_id"), scenarioYAML, Callback{
		URL:    stringField(req, "callback_url"),
		Secret: stringField(req, "callback_secret"),
	})
	if err != nil {
		var invalid *invalidScenarioError
		switch {
		case errors.As(err, &invalid):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, ErrRunExists):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	logger.Info("Run created", "run_id", rec.Run.ID, "dataset", rec.Run.Dataset)
	return runResponse(rec)
}

func (s *SimulationGRPCServer) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := stringField(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return runResponse(rec)
}

func (s *SimulationGRPCServer) StopRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := stringField(req, "run_id")
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunIDMissing):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, ErrRunNotFound):
			return nil, status.Error(codes.NotFound, err.Error())
		case errors.Is(err, ErrRunTerminal):
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	logger.Info("Run cancelled", "run_id", runID)
	return runResponse(updated)
}

// StreamRecords sends a status event whenever the run's status changes. Once
// the run completes every hourly record follows as a record event; a failed
// or cancelled run ends the stream after its final status.
func (s *SimulationGRPCServer) StreamRecords(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	runID := stringField(req, "run_id")
	if runID == "" {
		return status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return status.Error(codes.NotFound, "run not found")
	}

	interval := DefaultPollInterval
	if ms := req.GetFields()["poll_interval_ms"].GetNumberValue(); ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}

	if err := sendStatus(stream, rec); err != nil {
		return err
	}
	previous := rec.Run.Status

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !rec.Run.Status.Terminal() {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
		}
		rec, ok = s.store.Get(runID)
		if !ok {
			return status.Error(codes.NotFound, "run not found")
		}
		if rec.Run.Status != previous {
			if err := sendStatus(stream, rec); err != nil {
				return err
			}
			previous = rec.Run.Status
		}
	}

	if rec.Run.Status != models.RunStatusCompleted {
		return nil
	}
	table := output.NewTable(rec.Records)
	for i := 0; i < table.Len(); i++ {
		msg, err := structpb.NewStruct(map[string]any{
			"type":   EventRecord,
			"index":  i,
			"record": table.RowMap(i),
		})
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func sendStatus(stream grpc.ServerStreamingServer[structpb.Struct], rec *RunRecord) error {
	msg, err := structpb.NewStruct(map[string]any{
		"type": EventStatus,
		"run":  convertRunToJSON(rec),
	})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.Send(msg)
}

func runResponse(rec *RunRecord) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(map[string]any{"run": convertRunToJSON(rec)})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return msg, nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}
