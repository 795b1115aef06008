package grpc

import (
	"errors"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/protocol"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStatus converts an engine error into a gRPC status. Validation
// failures carry the field reasons as a structpb.Struct detail.
func toStatus(err error) error {
	var ve *protocol.ValidationError
	switch {
	case errors.As(err, &ve):
		st := status.New(codes.InvalidArgument, ve.Error())
		fields := make(map[string]any, len(ve.Fields))
		for path, reason := range ve.Fields {
			fields[path] = reason
		}
		detail, derr := structpb.NewStruct(fields)
		if derr != nil {
			return st.Err()
		}
		if withDetail, derr := st.WithDetails(detail); derr == nil {
			return withDetail.Err()
		}
		return st.Err()
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrStorageDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "store unavailable, retry later")
	}
	return status.Error(codes.Internal, "internal error")
}
