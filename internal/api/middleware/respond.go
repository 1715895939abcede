package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/comfydeploy/engine/internal/api/types"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: GetRequestID(r.Context())},
	})
}
