package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/comfydeploy/engine/internal/api/middleware"
	"github.com/comfydeploy/engine/internal/api/types"
	appErr "github.com/comfydeploy/engine/pkg/errors"
	"github.com/comfydeploy/engine/pkg/logger"
	"github.com/comfydeploy/engine/pkg/validation"
)

const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.APIResponse{Success: true, Data: data})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := appErr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return appErr.New(appErr.CodeInvalid, "request body is empty")
		}
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid json")
	}
	return validation.Struct(dst)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, appErr.Validation(name, name+" must be a uuid")
	}
	return id, nil
}

// requestOrigin is the scheme and host the request arrived on. Forwarded
// headers are only honoured when the server sits behind a trusted proxy.
func requestOrigin(r *http.Request, trustForwarded bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if !trustForwarded {
		return scheme + "://" + host
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}
	return scheme + "://" + host
}
