package errors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatusError converts a classified domain error to a gRPC status error
// carrying its remote-call payload as "CODE: message".
func toStatusError(derr *DomainError) error {
	return status.Error(grpcCode(derr.Status()), derr.Code+": "+derr.Message)
}

// genericStatusError is the re-raised form of a generic failure on the
// remote-call transport. Internal details never cross the wire.
func genericStatusError() error {
	return status.Error(codes.Internal, genericCode+": "+genericMessage)
}

// grpcCode maps an HTTP status code to the closest gRPC code.
func grpcCode(httpStatus int) codes.Code {
	switch httpStatus {
	case 400:
		return codes.InvalidArgument
	case 401:
		return codes.Unauthenticated
	case 403:
		return codes.PermissionDenied
	case 404:
		return codes.NotFound
	case 409:
		return codes.AlreadyExists
	case 429:
		return codes.ResourceExhausted
	case 499:
		return codes.Canceled
	case 501:
		return codes.Unimplemented
	case 503:
		return codes.Unavailable
	case 504:
		return codes.DeadlineExceeded
	default:
		if httpStatus >= 400 && httpStatus < 500 {
			return codes.FailedPrecondition
		}
		return codes.Internal
	}
}
