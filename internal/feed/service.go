package feed

import (
	"context"
	"log"

	"github.com/voxelmind/go-perception/internal/evidence"
	"google.golang.org/grpc"
)

// #region wire-types

// RawDetection is a legacy per-tick detection, bypassing the tracker
// entirely. It exists only for the opt-in passthrough path.
type RawDetection struct {
	EngineID int64  `json:"engine_id"`
	Kind     string `json:"kind"`
	Distance int    `json:"distance"`
}

// PushBatchRequest carries one evidence batch from the sensor layer,
// optionally alongside legacy raw detections.
type PushBatchRequest struct {
	Batch evidence.Batch `json:"batch"`
	Raw   []RawDetection `json:"raw,omitempty"`
}

// PushBatchResponse acknowledges a batch.
type PushBatchResponse struct {
	Accepted   bool `json:"accepted"`
	DroppedRaw int  `json:"dropped_raw"`
}

// #endregion wire-types

// #region sinks

// BatchSink receives evidence batches from the feed. The daemon's bus
// adapter implements it.
type BatchSink interface {
	HandleBatch(ctx context.Context, batch evidence.Batch) error
}

// RawSink receives legacy raw detections. Only reachable when the
// passthrough flag is set.
type RawSink interface {
	HandleRaw(ctx context.Context, tickID int64, raw []RawDetection) error
}

// #endregion sinks

// #region server

// Server is the sensor-feed endpoint. Every evidence batch goes to the
// batch sink; raw detections are dropped unless the deployment explicitly
// opted in to the legacy passthrough. With the flag unset, nothing reaches
// the reasoning consumer except through the tracker and bus.
type Server struct {
	sink           BatchSink
	rawSink        RawSink
	rawPassthrough bool

	droppedRaw int64
}

// NewServer creates a feed server. rawSink may be nil; raw detections are
// then dropped even when passthrough is enabled.
func NewServer(sink BatchSink, rawSink RawSink, rawPassthrough bool) *Server {
	return &Server{sink: sink, rawSink: rawSink, rawPassthrough: rawPassthrough}
}

// DroppedRawCount returns how many raw detections the gate has dropped.
func (s *Server) DroppedRawCount() int64 {
	return s.droppedRaw
}

// PushBatch handles one sensor push.
func (s *Server) PushBatch(ctx context.Context, req *PushBatchRequest) (*PushBatchResponse, error) {
	if err := s.sink.HandleBatch(ctx, req.Batch); err != nil {
		return nil, err
	}

	resp := &PushBatchResponse{Accepted: true}
	if len(req.Raw) > 0 {
		if s.rawPassthrough && s.rawSink != nil {
			if err := s.rawSink.HandleRaw(ctx, req.Batch.TickID, req.Raw); err != nil {
				return nil, err
			}
		} else {
			s.droppedRaw += int64(len(req.Raw))
			resp.DroppedRaw = len(req.Raw)
			log.Printf("feed: dropped %d raw detections (passthrough disabled)", len(req.Raw))
		}
	}
	return resp, nil
}

// #endregion server

// #region service-desc

const serviceName = "perception.SensorFeed"

// SensorFeedServer is the service contract the desc registers against.
type SensorFeedServer interface {
	PushBatch(ctx context.Context, req *PushBatchRequest) (*PushBatchResponse, error)
}

func pushBatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PushBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SensorFeedServer).PushBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/PushBatch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SensorFeedServer).PushBatch(ctx, req.(*PushBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SensorFeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PushBatch", Handler: pushBatchHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterServer attaches the feed service to a gRPC server.
func RegisterServer(g *grpc.Server, s *Server) {
	g.RegisterService(&serviceDesc, s)
}

// #endregion service-desc
