package cards

import (
	"context"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/mvharris/tabwire/pkg/db/models"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/square"
	"github.com/mvharris/tabwire/pkg/types"
)

// Service manages card-on-file authorizations for open tabs.
type Service interface {
	VaultAndAuthorize(ctx context.Context, orderID uuid.UUID, input VaultInput) (*types.CardSummary, error)
	List(ctx context.Context, orderID uuid.UUID) ([]types.CardSummary, error)
	IncreaseAuthorization(ctx context.Context, orderID uuid.UUID, input IncreaseInput) (*types.ReauthResult, error)
}

// VaultInput captures the payload required to vault a card and open its
// initial delayed-capture authorization.
type VaultInput struct {
	SourceID          string `json:"source_id" validate:"required"`
	CardholderName    string `json:"cardholder_name,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
	AuthorizeCents    int    `json:"authorize_cents" validate:"gte=0"`
	IdempotencyKey    string `json:"idempotency_key,omitempty"`
}

// IncreaseInput requests a re-authorization increase on the open tab.
type IncreaseInput struct {
	AmountCents int        `json:"amount_cents" validate:"required,gt=0"`
	EmployeeID  *uuid.UUID `json:"employee_id,omitempty"`
	Force       bool       `json:"force,omitempty"`
}

type cardProcessor interface {
	CreateCard(ctx context.Context, params square.CardCreateParams) (*sq.Card, error)
	CreateAuthorization(ctx context.Context, params square.AuthorizationParams) (*sq.Payment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the card service.
type ServiceParams struct {
	Repo              Repository
	SquareClient      cardProcessor
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type service struct {
	repo   Repository
	square cardProcessor
	tx     txRunner
	logg   *logger.Logger
}

// NewService constructs the card service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cards repo required")
	}
	if params.SquareClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "square client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		repo:   params.Repo,
		square: params.SquareClient,
		tx:     params.TransactionRunner,
		logg:   params.Logger,
	}, nil
}

// VaultAndAuthorize vaults the card behind the tab and opens the initial
// delayed-capture authorization.
func (s *service) VaultAndAuthorize(ctx context.Context, orderID uuid.UUID, input VaultInput) (*types.CardSummary, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	sourceID := strings.TrimSpace(input.SourceID)
	if sourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source_id is required")
	}

	params := square.CardCreateParams{
		SourceID:       sourceID,
		ReferenceID:    orderID.String(),
		IdempotencyKey: strings.TrimSpace(input.IdempotencyKey),
	}
	if cardholder := strings.TrimSpace(input.CardholderName); cardholder != "" {
		params.CardholderName = cardholder
	}
	if token := strings.TrimSpace(input.VerificationToken); token != "" {
		params.VerificationToken = token
	}

	card, err := s.square.CreateCard(ctx, params)
	if err != nil {
		return nil, err
	}
	cardID := strings.TrimSpace(stringValue(card.GetID()))
	if cardID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned card without id")
	}

	var paymentID string
	if input.AuthorizeCents > 0 {
		payment, err := s.square.CreateAuthorization(ctx, square.AuthorizationParams{
			AmountCents: int64(input.AuthorizeCents),
			SourceID:    cardID,
			ReferenceID: orderID.String(),
		})
		if err != nil {
			return nil, err
		}
		paymentID = stringValue(payment.GetID())
	}

	auth := models.CardAuthorization{
		OrderID:         orderID,
		SquareCardID:    cardID,
		SquarePaymentID: paymentID,
		Cardholder:      strings.TrimSpace(input.CardholderName),
		Brand:           cardBrand(card),
		Last4:           cardLast4(card),
		AuthorizedCents: input.AuthorizeCents,
		Status:          enums.CardAuthStatusAuthorized,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, &auth); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist card authorization")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(logCtx, "card vaulted and authorized")

	summary := toSummary(auth)
	return &summary, nil
}

// List returns the authorizations on file for an order, newest first.
func (s *service) List(ctx context.Context, orderID uuid.UUID) ([]types.CardSummary, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	auths, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list card authorizations")
	}
	summaries := make([]types.CardSummary, 0, len(auths))
	for _, auth := range auths {
		summaries = append(summaries, toSummary(auth))
	}
	return summaries, nil
}

// IncreaseAuthorization extends the authorized amount on the tab's card. A
// processor failure is reported as increment_failed rather than an error so
// the tab flow can fall back to its optimistic value.
func (s *service) IncreaseAuthorization(ctx context.Context, orderID uuid.UUID, input IncreaseInput) (*types.ReauthResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	auth, err := s.repo.FindLatestAuthorized(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &types.ReauthResult{Action: "increment_failed"}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card authorization")
	}

	payment, err := s.square.CreateAuthorization(ctx, square.AuthorizationParams{
		AmountCents: int64(input.AmountCents),
		SourceID:    auth.SquareCardID,
		ReferenceID: orderID.String(),
	})
	if err != nil {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "re-authorization increase failed")
		return &types.ReauthResult{Action: "increment_failed"}, nil
	}

	newTotal := auth.AuthorizedCents + input.AmountCents
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{
			"authorized_cents": newTotal,
		}
		if paymentID := stringValue(payment.GetID()); paymentID != "" {
			updates["square_payment_id"] = paymentID
		}
		if err := repo.Update(ctx, auth.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update authorized amount")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &types.ReauthResult{Incremented: true, NewAuthorizedCents: newTotal}, nil
}

func toSummary(auth models.CardAuthorization) types.CardSummary {
	return types.CardSummary{
		AuthorizationID: auth.ID,
		Cardholder:      auth.Cardholder,
		Brand:           auth.Brand,
		Last4:           auth.Last4,
		AuthorizedCents: auth.AuthorizedCents,
		Status:          auth.Status,
	}
}

func cardBrand(card *sq.Card) string {
	if card == nil {
		return ""
	}
	if brand := card.GetCardBrand(); brand != nil {
		return string(*brand)
	}
	return ""
}

func cardLast4(card *sq.Card) string {
	if card == nil {
		return ""
	}
	return stringValue(card.GetLast4())
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
