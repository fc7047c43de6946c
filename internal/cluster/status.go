package cluster

import (
	"context"
	"errors"

	"github.com/23skdu/gridscreen/internal/core"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps collective errors onto gRPC status codes for Flight replies.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		invalidArg  *core.ErrInvalidArgument
		exhausted   *core.ErrResourceExhausted
		unavailable *core.ErrUnavailable
	)
	switch {
	case errors.Is(err, ErrInvalidGroup),
		errors.Is(err, ErrDuplicateContribution),
		errors.As(err, &invalidArg):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrCountMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &exhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrClosed), errors.As(err, &unavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus restores the sentinel errors a remote rank can act on.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Canceled:
		return errors.Join(context.Canceled, err)
	case codes.DeadlineExceeded:
		return errors.Join(context.DeadlineExceeded, err)
	case codes.Unavailable:
		return core.NewUnavailableError("collective", errors.Join(ErrClosed, err))
	case codes.ResourceExhausted:
		return core.NewResourceExhaustedError("collective", err)
	default:
		return err
	}
}
