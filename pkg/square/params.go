package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// CardCreateParams groups the data needed to vault a card.
type CardCreateParams struct {
	CustomerID        string
	SourceID          string
	CardholderName    string
	ReferenceID       string
	VerificationToken string
	IdempotencyKey    string
}

func (p CardCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateCardRequest {
	req := &sq.CreateCardRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       p.SourceID,
	}
	if trimmed := strings.TrimSpace(p.VerificationToken); trimmed != "" {
		req.VerificationToken = ptrString(trimmed)
	}
	card := &sq.Card{}
	if trimmed := strings.TrimSpace(p.CustomerID); trimmed != "" {
		card.CustomerID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.CardholderName); trimmed != "" {
		card.CardholderName = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		card.ReferenceID = ptrString(trimmed)
	}
	if card.CustomerID != nil || card.CardholderName != nil || card.ReferenceID != nil {
		req.Card = card
	}
	return req
}

// AuthorizationParams encapsulates the inputs for a delayed-capture payment.
type AuthorizationParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p AuthorizationParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       p.SourceID,
		Autocomplete:   ptrBool(false),
	}
	if trimmed := strings.TrimSpace(p.LocationID); trimmed != "" {
		req.LocationID = ptrString(trimmed)
	}
	currency := strings.TrimSpace(strings.ToUpper(p.Currency))
	if currency == "" {
		currency = "USD"
	}
	req.AmountMoney = moneyPtr(p.AmountCents, currency)
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

func moneyPtr(amount int64, currency string) *sq.Money {
	cur := sq.Currency(currency)
	return &sq.Money{
		Amount:   ptrInt64(amount),
		Currency: &cur,
	}
}

func ptrString(value string) *string { return &value }

func ptrInt64(value int64) *int64 { return &value }

func ptrBool(value bool) *bool { return &value }
