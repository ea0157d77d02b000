package cards

import (
	"context"
	"testing"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mvharris/tabwire/pkg/db/models"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/square"
)

type stubCardRepo struct {
	auths   map[uuid.UUID][]models.CardAuthorization
	updates map[uuid.UUID]map[string]any
}

func newStubCardRepo() *stubCardRepo {
	return &stubCardRepo{
		auths:   map[uuid.UUID][]models.CardAuthorization{},
		updates: map[uuid.UUID]map[string]any{},
	}
}

func (s *stubCardRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubCardRepo) Create(_ context.Context, auth *models.CardAuthorization) (*models.CardAuthorization, error) {
	if auth.ID == uuid.Nil {
		auth.ID = uuid.New()
	}
	s.auths[auth.OrderID] = append(s.auths[auth.OrderID], *auth)
	return auth, nil
}

func (s *stubCardRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]models.CardAuthorization, error) {
	return s.auths[orderID], nil
}

func (s *stubCardRepo) FindLatestAuthorized(_ context.Context, orderID uuid.UUID) (*models.CardAuthorization, error) {
	auths := s.auths[orderID]
	for i := len(auths) - 1; i >= 0; i-- {
		if auths[i].Status == enums.CardAuthStatusAuthorized {
			auth := auths[i]
			return &auth, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCardRepo) Update(_ context.Context, authID uuid.UUID, updates map[string]any) error {
	s.updates[authID] = updates
	return nil
}

type stubProcessor struct {
	createCard   func(ctx context.Context, params square.CardCreateParams) (*sq.Card, error)
	createAuth   func(ctx context.Context, params square.AuthorizationParams) (*sq.Payment, error)
	authRequests []square.AuthorizationParams
}

func (s *stubProcessor) CreateCard(ctx context.Context, params square.CardCreateParams) (*sq.Card, error) {
	return s.createCard(ctx, params)
}

func (s *stubProcessor) CreateAuthorization(ctx context.Context, params square.AuthorizationParams) (*sq.Payment, error) {
	s.authRequests = append(s.authRequests, params)
	return s.createAuth(ctx, params)
}

type stubCardTx struct{}

func (stubCardTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func strPtr(s string) *string { return &s }

func squareCard(id, last4 string) *sq.Card {
	brand := sq.CardBrandVisa
	return &sq.Card{ID: strPtr(id), CardBrand: &brand, Last4: strPtr(last4)}
}

func squarePayment(id string) *sq.Payment {
	return &sq.Payment{ID: strPtr(id)}
}

func newCardService(t *testing.T, repo Repository, processor cardProcessor) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		SquareClient:      processor,
		TransactionRunner: stubCardTx{},
		Logger:            logger.New(logger.Options{ServiceName: "cards-test"}),
	})
	require.NoError(t, err)
	return svc
}

func TestVaultAndAuthorizeStoresAuthorization(t *testing.T) {
	repo := newStubCardRepo()
	processor := &stubProcessor{
		createCard: func(_ context.Context, params square.CardCreateParams) (*sq.Card, error) {
			require.Equal(t, "cnon-token", params.SourceID)
			return squareCard("card-1", "4242"), nil
		},
		createAuth: func(_ context.Context, params square.AuthorizationParams) (*sq.Payment, error) {
			require.Equal(t, int64(2500), params.AmountCents)
			require.Equal(t, "card-1", params.SourceID)
			return squarePayment("pay-1"), nil
		},
	}
	svc := newCardService(t, repo, processor)
	orderID := uuid.New()

	summary, err := svc.VaultAndAuthorize(context.Background(), orderID, VaultInput{
		SourceID:       "cnon-token",
		CardholderName: "J. Doe",
		AuthorizeCents: 2500,
	})
	require.NoError(t, err)
	require.Equal(t, "4242", summary.Last4)
	require.Equal(t, 2500, summary.AuthorizedCents)
	require.Equal(t, enums.CardAuthStatusAuthorized, summary.Status)
	require.Len(t, repo.auths[orderID], 1)
	require.Equal(t, "pay-1", repo.auths[orderID][0].SquarePaymentID)
}

func TestVaultAndAuthorizeSkipsAuthorizationForZeroAmount(t *testing.T) {
	repo := newStubCardRepo()
	processor := &stubProcessor{
		createCard: func(context.Context, square.CardCreateParams) (*sq.Card, error) {
			return squareCard("card-1", "4242"), nil
		},
	}
	svc := newCardService(t, repo, processor)

	_, err := svc.VaultAndAuthorize(context.Background(), uuid.New(), VaultInput{SourceID: "cnon-token"})
	require.NoError(t, err)
	require.Empty(t, processor.authRequests)
}

func TestVaultAndAuthorizeValidatesInput(t *testing.T) {
	svc := newCardService(t, newStubCardRepo(), &stubProcessor{})

	_, err := svc.VaultAndAuthorize(context.Background(), uuid.New(), VaultInput{SourceID: "  "})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.VaultAndAuthorize(context.Background(), uuid.Nil, VaultInput{SourceID: "cnon-token"})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestIncreaseAuthorizationExtendsAmount(t *testing.T) {
	repo := newStubCardRepo()
	orderID := uuid.New()
	authID := uuid.New()
	repo.auths[orderID] = []models.CardAuthorization{{
		ID:              authID,
		OrderID:         orderID,
		SquareCardID:    "card-1",
		AuthorizedCents: 2500,
		Status:          enums.CardAuthStatusAuthorized,
	}}
	processor := &stubProcessor{
		createAuth: func(_ context.Context, params square.AuthorizationParams) (*sq.Payment, error) {
			require.Equal(t, int64(600), params.AmountCents)
			return squarePayment("pay-2"), nil
		},
	}
	svc := newCardService(t, repo, processor)

	result, err := svc.IncreaseAuthorization(context.Background(), orderID, IncreaseInput{AmountCents: 600})
	require.NoError(t, err)
	require.True(t, result.Incremented)
	require.Equal(t, 3100, result.NewAuthorizedCents)
	require.Equal(t, 3100, repo.updates[authID]["authorized_cents"])
}

func TestIncreaseAuthorizationReportsProcessorDecline(t *testing.T) {
	repo := newStubCardRepo()
	orderID := uuid.New()
	repo.auths[orderID] = []models.CardAuthorization{{
		ID:              uuid.New(),
		OrderID:         orderID,
		SquareCardID:    "card-1",
		AuthorizedCents: 2500,
		Status:          enums.CardAuthStatusAuthorized,
	}}
	processor := &stubProcessor{
		createAuth: func(context.Context, square.AuthorizationParams) (*sq.Payment, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "card declined")
		},
	}
	svc := newCardService(t, repo, processor)

	// A declined increase is a result, not an error; the tab keeps serving.
	result, err := svc.IncreaseAuthorization(context.Background(), orderID, IncreaseInput{AmountCents: 600})
	require.NoError(t, err)
	require.False(t, result.Incremented)
	require.Equal(t, "increment_failed", result.Action)
}

func TestIncreaseAuthorizationWithoutCardOnFile(t *testing.T) {
	svc := newCardService(t, newStubCardRepo(), &stubProcessor{})

	result, err := svc.IncreaseAuthorization(context.Background(), uuid.New(), IncreaseInput{AmountCents: 600})
	require.NoError(t, err)
	require.False(t, result.Incremented)
	require.Equal(t, "increment_failed", result.Action)
}
