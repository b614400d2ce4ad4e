package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTTPGatewayConfig struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// HTTPGateway talks to a JSON card-charging API:
// POST {base}/v1/charges and GET {base}/v1/charges/{id}.
type HTTPGateway struct {
	base   *url.URL
	apiKey string
	client *http.Client
}

type chargeCardBody struct {
	Number   string `json:"number"`
	CVV      string `json:"cvv"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	Holder   string `json:"holder"`
}

type chargeBody struct {
	Reference   string         `json:"reference"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Description string         `json:"description,omitempty"`
	Card        chargeCardBody `json:"card"`
}

type chargeResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewHTTPGateway(cfg HTTPGatewayConfig) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("payment gateway base url is empty")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse payment gateway url: %w", err)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 60 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}}
	}
	return &HTTPGateway{base: u, apiKey: cfg.APIKey, client: client}, nil
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	cents, err := MinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}
	body := chargeBody{
		Reference:   req.Reference,
		Amount:      cents,
		Currency:    req.Currency,
		Description: req.Description,
		Card: chargeCardBody{
			Number:   req.Card.Number,
			CVV:      req.Card.CVV,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			Holder:   req.Card.Holder,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode charge: %w", err)
	}

	var resp chargeResponse
	status, err := g.do(ctx, http.MethodPost, "/v1/charges", data, &resp)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusPaymentRequired || resp.Status == string(StatusFailed) || resp.Status == "declined":
		msg := resp.Message
		if msg == "" {
			msg = "card declined"
		}
		return &ChargeResult{Success: false, Message: msg}, nil
	case resp.Status == string(StatusSucceeded) && resp.ID != "":
		return &ChargeResult{Success: true, TransactionID: resp.ID, Message: resp.Message}, nil
	case resp.Status == string(StatusPending) && resp.ID != "":
		return nil, &UncertainChargeError{TransactionID: resp.ID, Status: resp.Status}
	default:
		return nil, fmt.Errorf("payment gateway: unexpected charge response status %q", resp.Status)
	}
}

func (g *HTTPGateway) QueryTransaction(ctx context.Context, transactionID string) (TransactionStatus, error) {
	var resp chargeResponse
	status, err := g.do(ctx, http.MethodGet, "/v1/charges/"+url.PathEscape(transactionID), nil, &resp)
	if err != nil {
		return StatusUnknown, err
	}
	if status == http.StatusNotFound {
		return StatusUnknown, ErrTransactionNotFound
	}
	switch TransactionStatus(resp.Status) {
	case StatusSucceeded, StatusPending, StatusFailed:
		return TransactionStatus(resp.Status), nil
	case "declined":
		return StatusFailed, nil
	default:
		return StatusUnknown, nil
	}
}

// do returns the status code for 2xx, 402 and 404 responses and an error for
// anything else, including bodies that do not decode.
func (g *HTTPGateway) do(ctx context.Context, method, path string, payload []byte, out *chargeResponse) (int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base.String()+path, body)
	if err != nil {
		return 0, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("payment gateway: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return res.StatusCode, nil
	}
	if res.StatusCode != http.StatusPaymentRequired && (res.StatusCode < 200 || res.StatusCode > 299) {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return res.StatusCode, fmt.Errorf("payment gateway: status %d: %s", res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return res.StatusCode, fmt.Errorf("payment gateway: decode response: %w", err)
	}
	return res.StatusCode, nil
}
