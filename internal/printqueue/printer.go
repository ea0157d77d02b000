package printqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mvharris/tabwire/pkg/config"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
)

// Printer sends a ticket to the location's print service.
type Printer interface {
	Print(ctx context.Context, orderID string, ticketType enums.TicketType) error
}

// HTTPPrinter posts print requests to the print service over HTTP.
type HTTPPrinter struct {
	serviceURL string
	terminalID string
	httpc      *http.Client
}

// NewHTTPPrinter builds the print service client.
func NewHTTPPrinter(cfg config.PrintConfig, terminalID string) (*HTTPPrinter, error) {
	if cfg.ServiceURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "print service url required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPrinter{
		serviceURL: cfg.ServiceURL,
		terminalID: terminalID,
		httpc:      &http.Client{Timeout: timeout},
	}, nil
}

type printRequest struct {
	OrderID    string           `json:"order_id"`
	TicketType enums.TicketType `json:"ticket_type"`
	TerminalID string           `json:"terminal_id,omitempty"`
}

// Print submits one ticket. Any transport or non-2xx response is returned as
// an error; the caller decides whether to queue a retry.
func (p *HTTPPrinter) Print(ctx context.Context, orderID string, ticketType enums.TicketType) error {
	body, err := json.Marshal(printRequest{
		OrderID:    orderID,
		TicketType: ticketType,
		TerminalID: p.terminalID,
	})
	if err != nil {
		return fmt.Errorf("encoding print request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serviceURL+"/print", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building print request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("print service: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("print service returned %d", resp.StatusCode)
	}
	return nil
}
