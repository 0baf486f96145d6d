package authapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// RenewMethod is the full gRPC method name of the renewal RPC. Request and
// response are google.protobuf.Struct: {} in, {"token", "profile"?} out.
const RenewMethod = "/tokenkeeper.auth.v1.AuthService/Renew"

// GRPCRenewer is the gRPC binding of Renewer.
type GRPCRenewer struct {
	conn grpc.ClientConnInterface
}

var _ Renewer = (*GRPCRenewer)(nil)

func NewGRPCRenewer(conn grpc.ClientConnInterface) *GRPCRenewer {
	return &GRPCRenewer{conn: conn}
}

func (r *GRPCRenewer) Renew(ctx context.Context, current string) (token.Session, error) {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.GRPCAuthorizationKey, common.BearerScheme+" "+current)
	ctx = metadata.NewOutgoingContext(ctx, md)

	resp := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, RenewMethod, &structpb.Struct{}, resp); err != nil {
		return token.Session{}, mapGRPCError(err)
	}

	tok := resp.GetFields()["token"].GetStringValue()
	if tok == "" {
		return token.Session{}, fmt.Errorf("renew: %w: empty token", common.ErrRenewalMalformed)
	}

	sess := token.Session{Token: tok}
	if p, ok := resp.GetFields()["profile"]; ok {
		raw, err := protojson.Marshal(p)
		if err != nil {
			return token.Session{}, fmt.Errorf("renew: %w: %w", common.ErrRenewalMalformed, err)
		}
		sess.Profile = raw
	}
	return sess, nil
}
