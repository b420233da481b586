package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/pkg/responders"
)

// init handles POST /paymentinit/init.
func (h handlers) init(w http.ResponseWriter, r *http.Request) {
	var body initRequestBody
	if err := decodeJSON(r.Body, &body); err != nil {
		gwerrors.WriteError(w, gwerrors.New(gwerrors.CodeValidationFailed, "malformed request body"))
		return
	}

	res, err := h.orchestrator.Init(r.Context(), body.toOrchestrator())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, initResponse{
		Success:    true,
		Status:     string(res.Status),
		PaymentID:  res.PaymentID,
		OrderID:    res.OrderID,
		ErrorCode:  string(gwerrors.CodeSuccess),
		Amount:     res.Amount,
		PaymentURL: res.PaymentURL,
	})
}

// formShow handles GET /paymentform/{paymentId}. Unauthenticated: the
// unguessable paymentId is the capability (§6).
func (h handlers) formShow(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	res, err := h.orchestrator.ShowForm(r.Context(), paymentID)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	resp := gwerrors.Success(string(res.Status), res.PaymentID, res.OrderID)
	resp.Amount = res.Amount
	gwerrors.WriteJSON(w, resp)
}

// formSubmit handles POST /paymentform/process.
func (h handlers) formSubmit(w http.ResponseWriter, r *http.Request) {
	var body formSubmitRequestBody
	if err := decodeJSON(r.Body, &body); err != nil {
		gwerrors.WriteError(w, gwerrors.New(gwerrors.CodeValidationFailed, "malformed request body"))
		return
	}

	res, err := h.orchestrator.FormSubmit(r.Context(), body.toOrchestrator())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	gwerrors.WriteJSON(w, gwerrors.Success(string(res.Status), res.PaymentID, ""))
}

// confirm handles POST /paymentconfirm/confirm.
func (h handlers) confirm(w http.ResponseWriter, r *http.Request) {
	var body confirmRequestBody
	if err := decodeJSON(r.Body, &body); err != nil {
		gwerrors.WriteError(w, gwerrors.New(gwerrors.CodeValidationFailed, "malformed request body"))
		return
	}

	res, err := h.orchestrator.Confirm(r.Context(), body.toOrchestrator())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	resp := gwerrors.Success(string(res.Status), res.PaymentID, "")
	resp.Amount = res.Amount
	gwerrors.WriteJSON(w, resp)
}

// cancel handles POST /paymentcancel/cancel.
func (h handlers) cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelRequestBody
	if err := decodeJSON(r.Body, &body); err != nil {
		gwerrors.WriteError(w, gwerrors.New(gwerrors.CodeValidationFailed, "malformed request body"))
		return
	}

	res, err := h.orchestrator.Cancel(r.Context(), body.toOrchestrator())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	gwerrors.WriteJSON(w, gwerrors.Success(string(res.Status), res.PaymentID, ""))
}

// check handles POST /paymentcheck/check.
func (h handlers) check(w http.ResponseWriter, r *http.Request) {
	var body checkRequestBody
	if err := decodeJSON(r.Body, &body); err != nil {
		gwerrors.WriteError(w, gwerrors.New(gwerrors.CodeValidationFailed, "malformed request body"))
		return
	}

	res, err := h.orchestrator.Check(r.Context(), body.toOrchestrator())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	resp := checkResponse{
		Success:          true,
		Status:           string(res.Status),
		PaymentID:        res.PaymentID,
		OrderID:          res.OrderID,
		ErrorCode:        string(gwerrors.CodeSuccess),
		Amount:           res.Amount,
		AuthorizedAmount: res.AuthorizedAmount,
		ConfirmedAmount:  res.ConfirmedAmount,
		RefundedAmount:   res.RefundedAmount,
		Currency:         res.Currency,
	}
	if body.IncludeHistory {
		resp.History = make([]historyEntry, 0, len(res.History))
		for _, rec := range res.History {
			resp.History = append(resp.History, historyEntry{
				From:      string(rec.From),
				To:        string(rec.To),
				Timestamp: rec.Timestamp,
				Actor:     rec.Actor,
				Reason:    rec.Reason,
				ErrorCode: rec.ErrorCode,
				Message:   rec.Message,
			})
		}
	}

	responders.JSON(w, http.StatusOK, resp)
}

// health handles GET /health: a liveness probe reporting uptime.
func (h handlers) health(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(serverStartTime).String(),
	})
}

// writeOrchestratorError maps an orchestrator error to the common envelope,
// falling back to an internal error for anything not already a GatewayError.
func writeOrchestratorError(w http.ResponseWriter, err error) {
	ge, ok := err.(*gwerrors.GatewayError)
	if !ok {
		ge = gwerrors.New(gwerrors.CodeInternal, "internal error")
	}
	gwerrors.WriteError(w, ge)
}

// initResponse extends the common envelope with Init's paymentURL field
// (the hosted form link the merchant redirects the customer to).
type initResponse struct {
	Success    bool   `json:"success"`
	Status     string `json:"status,omitempty"`
	PaymentID  string `json:"paymentId,omitempty"`
	OrderID    string `json:"orderId,omitempty"`
	ErrorCode  string `json:"errorCode"`
	Amount     int64  `json:"amount,omitempty"`
	PaymentURL string `json:"paymentURL,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// checkResponse extends the common envelope with Check's read-only fields
// (§6: authorizedAmount/confirmedAmount/refundedAmount/history).
type checkResponse struct {
	Success          bool           `json:"success"`
	Status           string         `json:"status,omitempty"`
	PaymentID        string         `json:"paymentId,omitempty"`
	OrderID          string         `json:"orderId,omitempty"`
	ErrorCode        string         `json:"errorCode"`
	Amount           int64          `json:"amount,omitempty"`
	AuthorizedAmount int64          `json:"authorizedAmount,omitempty"`
	ConfirmedAmount  int64          `json:"confirmedAmount,omitempty"`
	RefundedAmount   int64          `json:"refundedAmount,omitempty"`
	Currency         string         `json:"currency,omitempty"`
	History          []historyEntry `json:"history,omitempty"`
}

type historyEntry struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Message   string    `json:"message,omitempty"`
}
