// Package mcp exposes casesearch to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
)

// MCP error codes. The -320xx range is reserved for server-defined errors.
const (
	// ErrCodeIndexUnavailable indicates the search index could not serve the request.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeSourceUnavailable indicates a registry could not be reached.
	ErrCodeSourceUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeForbidden indicates the caller's scope could not be resolved.
	ErrCodeForbidden = -32004

	// ErrCodeBusy indicates a reindex of the same kind is already running.
	ErrCodeBusy = -32005

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var ce *cserrors.CaseSearchError
	if errors.As(err, &ce) {
		return mapCaseSearchError(ce)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapCaseSearchError(ce *cserrors.CaseSearchError) *MCPError {
	message := ce.Message
	if ce.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", ce.Message, ce.Suggestion)
	}

	switch ce.Code {
	case cserrors.ErrCodeInvalidParameters:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case cserrors.ErrCodeIndexUnavailable, cserrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	case cserrors.ErrCodeSourceUnavailable:
		return &MCPError{Code: ErrCodeSourceUnavailable, Message: message}
	case cserrors.ErrCodeAuthorizationFailed:
		return &MCPError{Code: ErrCodeForbidden, Message: message}
	case cserrors.ErrCodeReindexInProgress:
		return &MCPError{Code: ErrCodeBusy, Message: message}
	}

	switch ce.Category {
	case cserrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case cserrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
