package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// GatewayError is the typed outcome every orchestrator operation returns
// instead of relying on exceptions-for-control-flow (§9's redesign note).
type GatewayError struct {
	Code    ErrorCode
	Message string
	Details string // pre-formatted, localized detail string (validation violations, etc.)
}

func (e *GatewayError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a GatewayError.
func New(code ErrorCode, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message}
}

// WithDetails attaches a details string (e.g. the joined list of validation violations).
func (e *GatewayError) WithDetails(details string) *GatewayError {
	e.Details = details
	return e
}

// Response is the common response envelope for every operation (§6).
type Response struct {
	Success   bool   `json:"success"`
	Status    string `json:"status,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message,omitempty"`
	Details   string `json:"details,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
}

// Success builds the success envelope.
func Success(status, paymentID, orderID string) Response {
	return Response{
		Success:   true,
		Status:    status,
		PaymentID: paymentID,
		OrderID:   orderID,
		ErrorCode: string(CodeSuccess),
	}
}

// FromError builds the failure envelope for a GatewayError.
func FromError(err *GatewayError) Response {
	return Response{
		Success:   false,
		ErrorCode: string(err.Code),
		Message:   err.Message,
		Details:   err.Details,
	}
}

// WriteJSON writes the response with the HTTP status implied by its error code.
func WriteJSON(w http.ResponseWriter, resp Response) {
	status := http.StatusOK
	if !resp.Success {
		status = ErrorCode(resp.ErrorCode).HTTPStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteError is a convenience wrapper writing a GatewayError as the common envelope.
func WriteError(w http.ResponseWriter, err *GatewayError) {
	WriteJSON(w, FromError(err))
}
