package grpcx

import (
	"context"

	"github.com/md-rashed-zaman/bayscheduler/libs/httpx"
	"google.golang.org/grpc/metadata"
)

// RequestIDMetadataKey carries the request id in gRPC metadata. gRPC lowercases keys.
const RequestIDMetadataKey = "x-request-id"

// requestIDFromIncoming returns the first x-request-id value of the incoming metadata.
func requestIDFromIncoming(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// RequestIDFromContext shares the HTTP context key so handlers read one value regardless of transport.
func RequestIDFromContext(ctx context.Context) string {
	return httpx.RequestIDFromContext(ctx)
}
