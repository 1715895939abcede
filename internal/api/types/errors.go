package types

import (
	"errors"
	"fmt"

	appErr "github.com/comfydeploy/engine/pkg/errors"
)

// FromAppError converts an error into the wire error object. Internal errors
// keep their message but never the wrapped cause.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		out := &APIError{Code: string(e.Code), Message: e.Message}
		if f, ok := e.Meta["field"]; ok {
			out.Field = fmt.Sprint(f)
		}
		return out
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: "unexpected error"}
}
