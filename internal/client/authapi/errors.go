package authapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// ResponseError describes a non-2xx answer from the auth service.
type ResponseError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// mapTransportError classifies an error that happened before any response
// was received.
func mapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", common.ErrRenewalTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", common.ErrRenewalTimeout, err)
	}
	return fmt.Errorf("%w: %w", common.ErrRenewalNetwork, err)
}

// mapRenewStatus classifies a non-2xx renewal answer.
func mapRenewStatus(code int, body string) error {
	re := &ResponseError{Op: "renew", StatusCode: code, Body: body}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", common.ErrRenewalRejected, re)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return fmt.Errorf("%w: %w", common.ErrRenewalTimeout, re)
	default:
		return fmt.Errorf("%w: %w", common.ErrRenewalNetwork, re)
	}
}

func mapGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return mapTransportError(err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %w", common.ErrRenewalRejected, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", common.ErrRenewalTimeout, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrRenewalNetwork, err)
	}
}
