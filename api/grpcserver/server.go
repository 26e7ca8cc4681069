// Package grpcserver exposes the exchange over gRPC. Messages are
// google.protobuf.Struct values, so no generated stubs are needed: the
// service descriptor is declared by hand from the handler table.
package grpcserver

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tokex/api/view"
	"tokex/domain/errs"
	"tokex/service"
)

const ServiceName = "tokex.v1.Exchange"

// ClassTrailer carries errs.Class of a failed call.
const ClassTrailer = "x-tokex-error-class"

// ExchangeServer is the handler type registered with grpc.
type ExchangeServer interface {
	exchange() *service.ExchangeService
}

type Server struct {
	svc *service.ExchangeService
}

func NewServer(svc *service.ExchangeService) *Server {
	return &Server{svc: svc}
}

func (s *Server) exchange() *service.ExchangeService { return s.svc }

type handler func(s *Server, ctx context.Context, in *args) (view.M, error)

// -------------------- Registration --------------------

// Register attaches the exchange service to g.
func Register(g *grpc.Server, s *Server) {
	g.RegisterService(ServiceDesc(), s)
}

func ServiceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*ExchangeServer)(nil),
		Metadata:    "tokex/v1/exchange",
	}
	for _, name := range methodNames() {
		desc.Methods = append(desc.Methods, unary(name, handlers[name]))
	}
	return desc
}

// FullMethod returns the invoke path for a method name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary(name string, h handler) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			call := func(ctx context.Context, req any) (any, error) {
				return s.invoke(ctx, h, req.(*structpb.Struct))
			}
			if icpt == nil {
				return call(ctx, in)
			}
			return icpt(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}, call)
		},
	}
}

func (s *Server) invoke(ctx context.Context, h handler, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := h(s, ctx, newArgs(in))
	if err != nil {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(ClassTrailer, errs.Class(err)))
		return nil, toStatus(err)
	}
	res, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return res, nil
}

// -------------------- Errors --------------------

func toStatus(err error) error {
	var code codes.Code
	switch errs.Class(err) {
	case "validation":
		code = codes.InvalidArgument
	case "unauthorized":
		code = codes.PermissionDenied
	case "not_found":
		code = codes.NotFound
	case "already_exists":
		code = codes.AlreadyExists
	case "arithmetic_overflow":
		code = codes.OutOfRange
	case "insufficient_funds", "insufficient_holdings", "insufficient_balance",
		"insufficient_liquidity", "escrow_underflow", "already_terminal",
		"self_trade", "paused", "offering_closed":
		code = codes.FailedPrecondition
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// -------------------- Interceptors --------------------

// UnaryLogger logs every call with its outcome.
func UnaryLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	log = log.With().Str("component", "grpc").Logger()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		ev := log.Debug()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("took", time.Since(start)).
			Msg("call")
		return resp, err
	}
}
