package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schedula/reservations/internal/service/scheduling"
	"schedula/reservations/internal/store"
)

// toStatus maps engine errors onto gRPC codes with messages fit to show the
// user. Unknown errors are logged and hidden behind codes.Internal.
func (s *SchedulingServer) toStatus(log *slog.Logger, err error) error {
	var (
		vErr *scheduling.ValidationError
		rej  *scheduling.RejectionError
	)
	if fErr, ok := isFieldError(err); ok {
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, fErr.Error())
	}

	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.As(err, &rej):
		log.Info("reservation rejected", slog.String("reason", rej.Reason))
		return status.Error(codes.FailedPrecondition, rej.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		log.Info("invalid status transition", slog.Any("err", err))
		return status.Error(codes.FailedPrecondition, "This reservation has already been resolved.")
	case errors.Is(err, scheduling.ErrNotPermitted):
		log.Info("resolution not permitted", slog.Any("err", err))
		return status.Error(codes.PermissionDenied, "You are not allowed to make this decision.")
	case errors.Is(err, store.ErrNotFound):
		log.Info("record not found", slog.Any("err", err))
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		log.Info("write conflict", slog.Any("err", err))
		return status.Error(codes.Aborted, "The record changed while saving. Try again.")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", slog.Any("err", err))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}

	log.Error("request failed", slog.Any("err", err))
	return status.Error(codes.Internal, "internal error")
}
