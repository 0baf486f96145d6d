package authtest

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	RenewMethod   = "/tokenkeeper.auth.v1.AuthService/Renew"
	CatalogMethod = "/tokenkeeper.api.v1.CatalogService/List"
)

// GRPCServer serves the renewal RPC and one protected RPC over an in-memory
// listener. Messages are google.protobuf.Struct so no generated code is
// involved.
type GRPCServer struct {
	TTL        time.Duration
	RenewGrace time.Duration
	// RenewCode, when not codes.OK, is returned by Renew.
	RenewCode codes.Code
	// OmitToken makes Renew answer without a token field.
	OmitToken bool

	lis *bufconn.Listener
	srv *grpc.Server

	renewals atomic.Int64
	calls    atomic.Int64
}

func NewGRPC() *GRPCServer {
	s := &GRPCServer{
		TTL:        time.Hour,
		RenewGrace: time.Minute,
		lis:        bufconn.Listen(1 << 20),
		srv:        grpc.NewServer(),
	}
	s.srv.RegisterService(&authServiceDesc, s)
	s.srv.RegisterService(&catalogServiceDesc, s)
	go func() { _ = s.srv.Serve(s.lis) }()
	return s
}

// Dial connects to the in-memory listener with extra dial options, typically
// a client interceptor.
func (s *GRPCServer) Dial(opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	return grpc.NewClient("passthrough:///bufnet", opts...)
}

func (s *GRPCServer) Close() {
	s.srv.Stop()
	_ = s.lis.Close()
}

func (s *GRPCServer) Renewals() int64 { return s.renewals.Load() }
func (s *GRPCServer) Calls() int64    { return s.calls.Load() }

func bearerFromContext(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get("authorization"); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *GRPCServer) renew(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.renewals.Add(1)
	if s.RenewCode != codes.OK {
		return nil, status.Error(s.RenewCode, "renew refused")
	}
	claims, err := VerifyBearer(bearerFromContext(ctx), s.RenewGrace)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	fields := map[string]any{
		"profile": map[string]any{"name": claims.Subject},
	}
	if !s.OmitToken {
		fields["token"] = Mint(claims.Subject, time.Now().Add(s.TTL))
	}
	return structpb.NewStruct(fields)
}

func (s *GRPCServer) list(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.calls.Add(1)
	claims, err := VerifyBearer(bearerFromContext(ctx), 0)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return structpb.NewStruct(map[string]any{"subject": claims.Subject})
}

func structHandler(fn func(*GRPCServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		return fn(srv.(*GRPCServer), ctx, in)
	}
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: "tokenkeeper.auth.v1.AuthService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Renew", Handler: structHandler((*GRPCServer).renew)},
	},
	Metadata: "authtest",
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: "tokenkeeper.api.v1.CatalogService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: structHandler((*GRPCServer).list)},
	},
	Metadata: "authtest",
}
