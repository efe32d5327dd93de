package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

func DefaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// RequestLogInterceptor tags each call with a request id, taken from the
// x-request-id header when the client sent one, echoes it back and logs the
// outcome.
func RequestLogInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc"))

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, id))

		started := time.Now()
		resp, err := handler(ctx, req)

		log.Debug("rpc finished",
			slog.String("method", info.FullMethod),
			slog.String("request_id", id),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(started)),
		)
		return resp, err
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(requestIDHeader); len(values) > 0 {
			if id := strings.TrimSpace(values[0]); id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
