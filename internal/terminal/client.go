package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvharris/tabwire/internal/orders"
	"github.com/mvharris/tabwire/pkg/config"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/types"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to the order store API on behalf of a terminal. Every mutating
// call carries an Idempotency-Key so a retried request replays the captured
// response instead of re-running the mutation.
type Client struct {
	baseURL    string
	terminalID string
	httpc      *http.Client
	logg       *logger.Logger
}

// NewClient builds the API client from the terminal configuration.
func NewClient(cfg config.TerminalConfig, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    base,
		terminalID: strings.TrimSpace(cfg.ID),
		httpc:      &http.Client{Timeout: timeout},
		logg:       logg,
	}, nil
}

// CreateOrder persists a draft for the first time.
func (c *Client) CreateOrder(ctx context.Context, input orders.CreateInput) (*types.OrderView, error) {
	var view types.OrderView
	// The draft anchor doubles as the idempotency key: a replayed create is
	// the same logical action.
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", input, input.DraftAnchor, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetOrder fetches the full authoritative order.
func (c *Client) GetOrder(ctx context.Context, orderID uuid.UUID) (*types.OrderView, error) {
	var view types.OrderView
	path := fmt.Sprintf("/api/v1/orders/%s", orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// ListOpenOrders fetches the open-orders projection for a location.
func (c *Client) ListOpenOrders(ctx context.Context, locationID uuid.UUID) ([]types.OpenOrder, error) {
	var list orders.OpenOrderList
	path := fmt.Sprintf("/api/v1/orders?location_id=%s", locationID)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &list); err != nil {
		return nil, err
	}
	return list.Orders, nil
}

// AppendItems adds lines to a persisted order.
func (c *Client) AppendItems(ctx context.Context, orderID uuid.UUID, input orders.AppendItemsInput) (*types.OrderView, error) {
	var view types.OrderView
	path := fmt.Sprintf("/api/v1/orders/%s/items", orderID)
	if err := c.do(ctx, http.MethodPost, path, input, uuid.NewString(), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Send fires the kitchen ticket transition.
func (c *Client) Send(ctx context.Context, orderID uuid.UUID, input orders.SendInput, idempotencyKey string) (*types.OrderView, error) {
	var view types.OrderView
	path := fmt.Sprintf("/api/v1/orders/%s/send", orderID)
	if err := c.do(ctx, http.MethodPost, path, input, idempotencyKey, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// ApplyDiscount applies a server-side discount and returns the recomputed
// totals.
func (c *Client) ApplyDiscount(ctx context.Context, orderID uuid.UUID, input orders.DiscountInput) (*types.OrderView, error) {
	var view types.OrderView
	path := fmt.Sprintf("/api/v1/orders/%s/discount", orderID)
	if err := c.do(ctx, http.MethodPost, path, input, uuid.NewString(), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// CompVoid voids a line off the check.
func (c *Client) CompVoid(ctx context.Context, orderID uuid.UUID, input orders.CompVoidInput) (*types.OrderView, error) {
	var view types.OrderView
	path := fmt.Sprintf("/api/v1/orders/%s/comp-void", orderID)
	if err := c.do(ctx, http.MethodPost, path, input, uuid.NewString(), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Pay settles an order.
func (c *Client) Pay(ctx context.Context, orderID uuid.UUID, input orders.PayInput, idempotencyKey string) (*types.OrderView, error) {
	var view types.OrderView
	path := fmt.Sprintf("/api/v1/orders/%s/pay", orderID)
	if err := c.do(ctx, http.MethodPost, path, input, idempotencyKey, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// CreateCheck opens an empty split check under the parent.
func (c *Client) CreateCheck(ctx context.Context, parentID uuid.UUID) (*types.OrderView, error) {
	var view types.OrderView
	path := fmt.Sprintf("/api/v1/orders/%s/splits", parentID)
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, uuid.NewString(), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// EvenSplit divides the parent into n equal checks.
func (c *Client) EvenSplit(ctx context.Context, parentID uuid.UUID, ways int) (*types.OrderView, error) {
	var view types.OrderView
	path := fmt.Sprintf("/api/v1/orders/%s/splits/even", parentID)
	body := orders.EvenSplitInput{Ways: ways}
	if err := c.do(ctx, http.MethodPost, path, body, uuid.NewString(), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// PayAllSplits settles every open split check and closes the parent.
func (c *Client) PayAllSplits(ctx context.Context, parentID uuid.UUID, input orders.PayAllSplitsInput, idempotencyKey string) (*types.PayAllResult, error) {
	var result types.PayAllResult
	path := fmt.Sprintf("/api/v1/orders/%s/splits/pay-all", parentID)
	if err := c.do(ctx, http.MethodPost, path, input, idempotencyKey, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListCards fetches the card authorizations on file for an order.
func (c *Client) ListCards(ctx context.Context, orderID uuid.UUID) ([]types.CardSummary, error) {
	var payload struct {
		Cards []types.CardSummary `json:"cards"`
	}
	path := fmt.Sprintf("/api/v1/orders/%s/cards", orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &payload); err != nil {
		return nil, err
	}
	return payload.Cards, nil
}

// IncreaseAuthorization requests a re-authorization increase on the tab card.
func (c *Client) IncreaseAuthorization(ctx context.Context, orderID uuid.UUID, amountCents int) (*types.ReauthResult, error) {
	var result types.ReauthResult
	path := fmt.Sprintf("/api/v1/orders/%s/cards/increase", orderID)
	body := map[string]any{"amount_cents": amountCents}
	if err := c.do(ctx, http.MethodPost, path, body, uuid.NewString(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.terminalID != "" {
		req.Header.Set("X-Terminal-Id", c.terminalID)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order store unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, payload)
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response envelope")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response data")
	}
	return nil
}

func decodeAPIError(status int, payload []byte) error {
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Error.Code == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("order store returned status %d", status))
	}
	code := pkgerrors.Code(envelope.Error.Code)
	if pkgerrors.MetadataFor(code).HTTPStatus == http.StatusInternalServerError && code != pkgerrors.CodeInternal {
		// Unknown code from a newer server; treat as a dependency fault.
		code = pkgerrors.CodeDependency
	}
	return pkgerrors.New(code, envelope.Error.Message)
}
