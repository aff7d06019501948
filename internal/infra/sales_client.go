package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// cashMovementResponse is returned by the sales subsystem for one shift.
// NetCashMovement = cash sales - cash refunds - cash payouts/expenses.
type cashMovementResponse struct {
	ShiftID         string          `json:"shift_id"`
	NetCashMovement decimal.Decimal `json:"net_cash_movement"`
}

// SalesClient asks the sales/expense subsystem for the signed net cash
// figure of a shift. Calls go through the circuit breaker so a downed
// sales service fails fast instead of stalling every close.
type SalesClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewSalesClient(baseURL string, cb *CircuitBreaker) *SalesClient {
	return &SalesClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
	}
}

// NetCashMovement implements service.CashMovementSource.
func (c *SalesClient) NetCashMovement(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error) {
	var result decimal.Decimal
	err := c.cb.Execute(func() error {
		v, err := c.fetch(ctx, shiftID)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (c *SalesClient) fetch(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/v1/shifts/%s/cash-movement", c.baseURL, shiftID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sales: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sales: service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("sales: service returned %d", resp.StatusCode)
	}

	var body cashMovementResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("sales: decode response: %w", err)
	}
	if body.ShiftID != "" && body.ShiftID != shiftID.String() {
		return decimal.Zero, fmt.Errorf("sales: response for shift %s, asked %s", body.ShiftID, shiftID)
	}
	return body.NetCashMovement, nil
}

// BreakerState exposes the breaker for the health endpoint.
func (c *SalesClient) BreakerState() CBState { return c.cb.State() }
