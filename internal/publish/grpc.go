package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/leadfusion/internal/fusion"
)

// The service is declared by hand: a single server stream of fused state
// rendered as google.protobuf.Struct, so clients need no generated code.
//
//	service FusionService {
//	  rpc StreamState(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
const (
	serviceName       = "leadfusion.FusionService"
	streamStateMethod = "/" + serviceName + "/StreamState"
)

type fusionServiceServer interface {
	StreamState(*emptypb.Empty, grpc.ServerStream) error
}

var fusionServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*fusionServiceServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "StreamState",
		Handler:       streamStateHandler,
		ServerStreams: true,
	}},
	Metadata: "leadfusion/fusion.proto",
}

func registerFusionService(s *grpc.Server, srv fusionServiceServer) {
	s.RegisterService(&fusionServiceDesc, srv)
}

func streamStateHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(fusionServiceServer).StreamState(in, stream)
}

type stateServer struct {
	publisher *Publisher
}

// StreamState sends every published state until the client goes away or the
// publisher stops.
func (s *stateServer) StreamState(_ *emptypb.Empty, stream grpc.ServerStream) error {
	id, ch, err := s.publisher.Subscribe()
	if err != nil {
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	defer s.publisher.Unsubscribe(id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-ch:
			if !ok {
				return status.Error(codes.Unavailable, "publisher stopped")
			}
			msg, err := StateToStruct(st)
			if err != nil {
				logf("encode cycle %d: %v", st.Cycle, err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// StateToStruct renders s with its JSON field names. Integers above 2^53
// lose precision, as in any JSON consumer.
func StateToStruct(s fusion.FusedState) (*structpb.Struct, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return structpb.NewStruct(m)
}

// StateFromStruct is the inverse of StateToStruct.
func StateFromStruct(msg *structpb.Struct) (fusion.FusedState, error) {
	var s fusion.FusedState
	b, err := json.Marshal(msg.AsMap())
	if err != nil {
		return s, fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("decode state: %w", err)
	}
	return s, nil
}

// StateStream is the client side of StreamState.
type StateStream struct {
	stream grpc.ClientStream
}

// StreamState opens a state stream on cc.
func StreamState(ctx context.Context, cc grpc.ClientConnInterface) (*StateStream, error) {
	stream, err := cc.NewStream(ctx, &fusionServiceDesc.Streams[0], streamStateMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &StateStream{stream: stream}, nil
}

// Recv blocks for the next state.
func (s *StateStream) Recv() (fusion.FusedState, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return fusion.FusedState{}, err
	}
	return StateFromStruct(msg)
}
