package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// API is the authenticated HTTP client, satisfied by *pipeline.Client.
type API interface {
	Get(ctx context.Context, path string, result any) (*resty.Response, error)
}

// ResourceService fetches protected resources for display.
type ResourceService interface {
	// Get fetches path over HTTP and returns the body, indented if it is JSON.
	Get(ctx context.Context, path string) (string, error)
	// Call invokes a unary gRPC method with an empty google.protobuf.Struct.
	Call(ctx context.Context, method string) (string, error)
}

type resourceService struct {
	api  API
	conn grpc.ClientConnInterface
}

// NewResourceService binds the service to the HTTP client and, optionally, a
// gRPC connection carrying the auth interceptor.
func NewResourceService(api API, conn grpc.ClientConnInterface) ResourceService {
	return &resourceService{api: api, conn: conn}
}

func (s *resourceService) Get(ctx context.Context, path string) (string, error) {
	res, err := s.api.Get(ctx, path, nil)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if json.Indent(&buf, res.Body(), "", "  ") == nil {
		return buf.String(), nil
	}
	return res.String(), nil
}

func (s *resourceService) Call(ctx context.Context, method string) (string, error) {
	if s.conn == nil {
		return "", fmt.Errorf("no gRPC endpoint configured")
	}
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, method, &structpb.Struct{}, out); err != nil {
		return "", err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
