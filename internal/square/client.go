package square

import (
	"context"
	"fmt"
	"strings"
	"time"

	"threesisters/members-service/internal/membership"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://connect.squareupsandbox.com"
	DefaultVersion = "2024-01-18"

	statusCompleted = "COMPLETED"
	maxPaymentPages = 20
)

type Config struct {
	BaseURL     string
	AccessToken string
	Version     string
	Timeout     time.Duration
}

// Client is a read-only view of the Square REST API: orders by id and a
// customer's completed payments.
type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Square-Version", cfg.Version)
	if cfg.AccessToken != "" {
		rc.SetAuthToken(cfg.AccessToken)
	}
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &Client{http: rc}
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type errorResponse struct {
	Errors []apiError `json:"errors"`
}

func (e *errorResponse) message() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	first := e.Errors[0]
	if first.Detail != "" {
		return first.Code + ": " + first.Detail
	}
	return first.Code
}

type orderResponse struct {
	Order *struct {
		ID         string `json:"id"`
		CustomerID string `json:"customer_id"`
		LineItems  []struct {
			Name string `json:"name"`
		} `json:"line_items"`
	} `json:"order"`
}

func (c *Client) RetrieveOrder(ctx context.Context, orderID string) (membership.Order, error) {
	var (
		body    orderResponse
		errBody errorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("orderID", orderID).
		SetResult(&body).
		SetError(&errBody).
		Get("/v2/orders/{orderID}")
	if err != nil {
		return membership.Order{}, fmt.Errorf("retrieve order %s: %w", orderID, err)
	}
	if resp.IsError() {
		return membership.Order{}, fmt.Errorf("retrieve order %s: status %d %s", orderID, resp.StatusCode(), errBody.message())
	}
	if body.Order == nil {
		return membership.Order{}, fmt.Errorf("retrieve order %s: response without order", orderID)
	}

	order := membership.Order{
		ID:         body.Order.ID,
		CustomerID: body.Order.CustomerID,
		LineItems:  make([]membership.LineItem, 0, len(body.Order.LineItems)),
	}
	for _, item := range body.Order.LineItems {
		order.LineItems = append(order.LineItems, membership.LineItem{Name: item.Name})
	}
	return order, nil
}

type paymentsResponse struct {
	Payments []struct {
		ID          string `json:"id"`
		OrderID     string `json:"order_id"`
		CustomerID  string `json:"customer_id"`
		Status      string `json:"status"`
		CreatedAt   string `json:"created_at"`
		AmountMoney struct {
			Amount int64 `json:"amount"`
		} `json:"amount_money"`
	} `json:"payments"`
	Cursor string `json:"cursor"`
}

// ProcessedPayments lists the customer's completed payments, newest first.
// The payments endpoint has no customer filter, so pages are scanned.
func (c *Client) ProcessedPayments(ctx context.Context, customerID string) ([]membership.PaymentRecord, error) {
	var (
		records []membership.PaymentRecord
		cursor  string
	)
	for page := 0; page < maxPaymentPages; page++ {
		var (
			body    paymentsResponse
			errBody errorResponse
		)
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("sort_order", "DESC").
			SetResult(&body).
			SetError(&errBody)
		if cursor != "" {
			req.SetQueryParam("cursor", cursor)
		}

		resp, err := req.Get("/v2/payments")
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("list payments: status %d %s", resp.StatusCode(), errBody.message())
		}

		for _, p := range body.Payments {
			if p.CustomerID != customerID || p.Status != statusCompleted {
				continue
			}
			rec := membership.PaymentRecord{
				PaymentID:   p.ID,
				OrderID:     p.OrderID,
				CustomerID:  p.CustomerID,
				AmountCents: p.AmountMoney.Amount,
			}
			if ts, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
				rec.ProcessedAt = ts
			}
			records = append(records, rec)
		}

		if body.Cursor == "" {
			break
		}
		cursor = body.Cursor
	}
	return records, nil
}
