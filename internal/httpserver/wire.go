package httpserver

import (
	"time"

	"github.com/hackload-kz/payment-gateway/internal/orchestrator"
	"github.com/hackload-kz/payment-gateway/internal/payment"
)

// initRequestBody is the Init operation's JSON wire shape (§4.4/§6).
type initRequestBody struct {
	TeamSlug        string            `json:"teamSlug"`
	Token           string            `json:"token"`
	Amount          int64             `json:"amount"`
	OrderID         string            `json:"orderId"`
	Currency        string            `json:"currency"`
	PayType         string            `json:"payType"`
	Description     string            `json:"description"`
	CustomerKey     string            `json:"customerKey"`
	Language        string            `json:"language"`
	SuccessURL      string            `json:"successUrl"`
	FailURL         string            `json:"failUrl"`
	NotificationURL string            `json:"notificationUrl"`
	PaymentExpiry   int               `json:"paymentExpiry"`
	Recurrent       bool              `json:"recurrent"`
	RedirectDueDate *time.Time        `json:"redirectDueDate"`
	Data            map[string]string `json:"data"`
	Receipt         *wireReceipt      `json:"receipt"`
}

type wireReceipt struct {
	Email string            `json:"email"`
	Phone string            `json:"phone"`
	Items []wireReceiptItem `json:"items"`
}

type wireReceiptItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Amount   int64  `json:"amount"`
}

func (b initRequestBody) toOrchestrator() orchestrator.InitRequest {
	req := orchestrator.InitRequest{
		TeamSlug:        b.TeamSlug,
		Token:           b.Token,
		Amount:          b.Amount,
		OrderID:         b.OrderID,
		Currency:        b.Currency,
		PayType:         payment.PayType(b.PayType),
		Description:     b.Description,
		CustomerKey:     b.CustomerKey,
		Language:        payment.Language(b.Language),
		SuccessURL:      b.SuccessURL,
		FailURL:         b.FailURL,
		NotificationURL: b.NotificationURL,
		PaymentExpiry:   b.PaymentExpiry,
		Recurrent:       b.Recurrent,
		Data:            b.Data,
	}
	if b.RedirectDueDate != nil {
		req.RedirectDueDate = *b.RedirectDueDate
	}
	if b.Receipt != nil {
		items := make([]payment.ReceiptItem, 0, len(b.Receipt.Items))
		for _, it := range b.Receipt.Items {
			items = append(items, payment.ReceiptItem{
				Name: it.Name, Price: it.Price, Quantity: it.Quantity, Amount: it.Amount,
			})
		}
		req.Receipt = &payment.Receipt{Email: b.Receipt.Email, Phone: b.Receipt.Phone, Items: items}
	}
	return req
}

// formSubmitRequestBody is the Form-Submit operation's JSON wire shape.
type formSubmitRequestBody struct {
	TeamSlug  string `json:"teamSlug"`
	Token     string `json:"token"`
	PaymentID string `json:"paymentId"`
	CardData  struct {
		PAN    string `json:"pan"`
		Expiry string `json:"expiry"`
		CVV    string `json:"cvv"`
		Holder string `json:"cardHolder"`
	} `json:"cardData"`
}

func (b formSubmitRequestBody) toOrchestrator() orchestrator.FormSubmitRequest {
	return orchestrator.FormSubmitRequest{
		TeamSlug:  b.TeamSlug,
		Token:     b.Token,
		PaymentID: b.PaymentID,
		Card: orchestrator.CardData{
			PAN:    b.CardData.PAN,
			Expiry: b.CardData.Expiry,
			CVV:    b.CardData.CVV,
			Holder: b.CardData.Holder,
		},
	}
}

// confirmRequestBody is the Confirm operation's JSON wire shape.
type confirmRequestBody struct {
	TeamSlug       string `json:"teamSlug"`
	Token          string `json:"token"`
	PaymentID      string `json:"paymentId"`
	Amount         *int64 `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey"`
}

func (b confirmRequestBody) toOrchestrator() orchestrator.ConfirmRequest {
	return orchestrator.ConfirmRequest{
		TeamSlug: b.TeamSlug, Token: b.Token, PaymentID: b.PaymentID,
		Amount: b.Amount, IdempotencyKey: b.IdempotencyKey,
	}
}

// cancelRequestBody is the Cancel operation's JSON wire shape (covers the
// Refund case too, since Cancel routes by current status — §4.5).
type cancelRequestBody struct {
	TeamSlug  string `json:"teamSlug"`
	Token     string `json:"token"`
	PaymentID string `json:"paymentId"`
	Amount    *int64 `json:"amount"`
	Reason    string `json:"reason"`
}

func (b cancelRequestBody) toOrchestrator() orchestrator.CancelRequest {
	return orchestrator.CancelRequest{
		TeamSlug: b.TeamSlug, Token: b.Token, PaymentID: b.PaymentID,
		Amount: b.Amount, Reason: b.Reason,
	}
}

// checkRequestBody is the Check operation's JSON wire shape.
type checkRequestBody struct {
	TeamSlug       string `json:"teamSlug"`
	Token          string `json:"token"`
	PaymentID      string `json:"paymentId"`
	IncludeHistory bool   `json:"includeHistory"`
}

func (b checkRequestBody) toOrchestrator() orchestrator.CheckRequest {
	return orchestrator.CheckRequest{
		TeamSlug: b.TeamSlug, Token: b.Token, PaymentID: b.PaymentID,
		IncludeHistory: b.IncludeHistory,
	}
}
