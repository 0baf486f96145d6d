package pipeline

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

func withBearer(ctx context.Context, tok string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Delete(common.GRPCAuthorizationKey)
	md.Set(common.GRPCAuthorizationKey, common.BearerScheme+" "+tok)
	return metadata.NewOutgoingContext(ctx, md)
}

// UnaryInterceptor applies p to unary gRPC calls: the token travels in the
// authorization metadata and codes.Unauthenticated plays the part of a 401.
func UnaryInterceptor(p Policy) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		public := p.isPublic(method)

		var sent string
		if !public {
			tok, ok := p.bearer(ctx)
			if !ok {
				return p.refuse(ctx, method)
			}
			sent = tok
			ctx = withBearer(ctx, tok)
		}

		err := invoker(WithAttempt(ctx, AttemptInitial), method, req, reply, cc, opts...)
		if err == nil || public || status.Code(err) != codes.Unauthenticated {
			return err
		}

		ctx = WithAttempt(ctx, AttemptRetriedAfterRefresh)
		tok, rerr := p.retryToken(ctx, method, sent)
		if rerr != nil {
			return p.unauthorized(ctx, method, rerr)
		}

		p.Metrics.RecordRetry("grpc")
		err = invoker(withBearer(ctx, tok), method, req, reply, cc, opts...)
		if status.Code(err) == codes.Unauthenticated {
			return p.unauthorized(ctx, method, err)
		}
		return err
	}
}
