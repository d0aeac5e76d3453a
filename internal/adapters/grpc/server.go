package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nyumbani/payments-service/internal/application"
	"github.com/nyumbani/payments-service/internal/domain"
)

// PaymentsInternalService is the service-to-service surface. The booking and
// subscription services ask about intent status here instead of going through
// the public HTTP edge.
type PaymentsInternalService interface {
	GetIntentStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelIntent(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type PaymentsInternalServer struct {
	service *application.Service
}

func NewPaymentsInternalServer(service *application.Service) *PaymentsInternalServer {
	return &PaymentsInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc PaymentsInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "nyumbani.payments.v1.PaymentsInternalService",
		HandlerType: (*PaymentsInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetIntentStatus",
				Handler:    unaryStructHandler("GetIntentStatus", func(svc PaymentsInternalService) structMethod { return svc.GetIntentStatus }, svc),
			},
			{
				MethodName: "CancelIntent",
				Handler:    unaryStructHandler("CancelIntent", func(svc PaymentsInternalService) structMethod { return svc.CancelIntent }, svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "nyumbani/contracts/proto/payments/v1/payments_internal.proto",
	}, svc)
}

func (s *PaymentsInternalServer) GetIntentStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	correlationID, err := correlationIDField(req)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.service.IntentSnapshot(ctx, correlationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "intent not found")
		}
		return nil, status.Errorf(codes.Internal, "intent snapshot: %v", err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"correlation_id":      snapshot.CorrelationID,
		"kind":                string(snapshot.Kind),
		"status":              string(snapshot.Status),
		"attempts_made":       snapshot.AttemptsMade,
		"seconds_remaining":   snapshot.SecondsRemaining,
		"last_failure_reason": snapshot.LastFailureReason,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *PaymentsInternalServer) CancelIntent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	correlationID, err := correlationIDField(req)
	if err != nil {
		return nil, err
	}

	if err := s.service.CancelIntent(ctx, correlationID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "intent not found")
		}
		return nil, status.Errorf(codes.Internal, "cancel intent: %v", err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"correlation_id": correlationID,
		"cancelled":      true,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func correlationIDField(req *structpb.Struct) (string, error) {
	val := req.GetFields()["correlation_id"]
	if val == nil || val.GetStringValue() == "" {
		return "", status.Error(codes.InvalidArgument, "missing correlation_id")
	}
	return val.GetStringValue(), nil
}

type structMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryStructHandler(name string, pick func(PaymentsInternalService) structMethod, svc PaymentsInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	method := pick(svc)
	fullMethod := "/nyumbani.payments.v1.PaymentsInternalService/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return method(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
