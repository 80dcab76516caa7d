// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// ListResponse wraps list results.
type ListResponse struct {
	Items      any `json:"items"`
	TotalCount int `json:"totalCount"`
}

// ErrorResponse mirrors the body written by middleware.ErrorHandler.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
