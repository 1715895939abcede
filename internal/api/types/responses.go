package types

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
