package payments

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/models"
	"github.com/xendit/xendit-go/v6"
	"github.com/xendit/xendit-go/v6/invoice"
)

const XenditCallbackTokenHeader = "X-Callback-Token"

type Xendit struct {
	client        *xendit.APIClient
	callbackToken string
	sealer        *helpers.ExternalIDSealer
}

func NewXendit(secretKey, callbackToken string, sealer *helpers.ExternalIDSealer) *Xendit {
	return &Xendit{
		client:        xendit.NewClient(secretKey),
		callbackToken: callbackToken,
		sealer:        sealer,
	}
}

func (x *Xendit) Name() string { return "xendit" }

func (x *Xendit) Method() models.PaymentMethod { return models.PaymentMethodXendit }

func (x *Xendit) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	externalID, err := x.sealer.Seal(req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("seal external id: %w", err)
	}

	invoiceReq := *invoice.NewCreateInvoiceRequest(externalID, req.Amount.InexactFloat64())
	invoiceReq.SetDescription(req.Description)
	invoiceReq.SetCurrency(req.Currency)
	if req.CustomerEmail != "" {
		invoiceReq.SetPayerEmail(req.CustomerEmail)
	}

	resp, _, xerr := x.client.InvoiceApi.CreateInvoice(ctx).
		CreateInvoiceRequest(invoiceReq).
		Execute()
	if xerr != nil {
		return nil, fmt.Errorf("xendit create invoice: %s", xerr.Error())
	}

	return &Intent{
		PaymentID:  resp.GetId(),
		PaymentURL: resp.GetInvoiceUrl(),
		Amount:     req.Amount,
		Currency:   req.Currency,
	}, nil
}

func (x *Xendit) Status(ctx context.Context, paymentID string) (Outcome, error) {
	resp, _, xerr := x.client.InvoiceApi.GetInvoiceById(ctx, paymentID).Execute()
	if xerr != nil {
		return "", fmt.Errorf("xendit get invoice: %s", xerr.Error())
	}
	return invoiceOutcome(string(resp.GetStatus())), nil
}

// Refund is not available for invoices; refunds go through the Xendit
// dashboard and arrive as no callback we can act on.
func (x *Xendit) Refund(context.Context, string) (Outcome, error) {
	return "", ErrUnsupported
}

type invoiceCallback struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

func (x *Xendit) ParseWebhook(header http.Header, payload []byte) (*Notification, error) {
	token := header.Get(XenditCallbackTokenHeader)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(x.callbackToken)) != 1 {
		return nil, ErrInvalidSignature
	}

	var cb invoiceCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("decode invoice callback: %w", err)
	}
	if cb.ID == "" {
		return nil, fmt.Errorf("invoice callback without id")
	}

	n := &Notification{
		EventID:   cb.ID + ":" + cb.Status,
		Type:      "invoice." + cb.Status,
		PaymentID: cb.ID,
		Outcome:   invoiceOutcome(cb.Status),
	}
	if orderID, err := x.sealer.Open(cb.ExternalID); err == nil {
		n.OrderID = orderID
	}
	return n, nil
}

func invoiceOutcome(status string) Outcome {
	switch status {
	case "PAID", "SETTLED":
		return OutcomeSucceeded
	case "EXPIRED":
		return OutcomeFailed
	case "PENDING":
		return OutcomePending
	default:
		return OutcomeIgnored
	}
}
