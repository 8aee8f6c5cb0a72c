package handler

import (
	"encoding/json"
	"fmt"

	"github.com/presale/backend/internal/interfaces/http/dto"
)

// APIResponse is the dto.Response envelope with a typed data field.
// Handlers write dto.Response; clients of the settlement API read this shape.
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the envelope of a rejected request
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// ParseAPIResponse decodes a response body into a typed envelope. A failed
// request decodes with the zero Data and a non-nil Error.
func ParseAPIResponse[T any](body []byte) (*APIResponse[T], error) {
	var resp APIResponse[T]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if !resp.Success && resp.Error == nil {
		return nil, fmt.Errorf("response reports failure without an error")
	}
	return &resp, nil
}
