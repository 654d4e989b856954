// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package models

import (
	"github.com/goccy/go-json"
)

// APIResponse is the envelope the backend wraps around every REST response.
//
// Status field values:
//   - "success": Request completed, see Data
//   - "error": Request failed, see Error
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": [{"id": "t1", "title": "Write report", "status": "pending"}]
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "VALIDATION_ERROR", "message": "title is required"}
//	}
//
// Data is kept raw so the caller decodes it into the resource type it asked for.
type APIResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

// APIError carries structured error details from the backend.
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input
//   - NOT_FOUND: Entity does not exist
//   - CONFLICT: Entity changed concurrently
//   - AUTHENTICATION_ERROR: Invalid or expired bearer token
//   - RATE_LIMIT_EXCEEDED: Too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}
