package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayServer(t *testing.T, h http.HandlerFunc) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	gw, err := NewHTTPGateway(HTTPGatewayConfig{BaseURL: srv.URL + "/", APIKey: "test-key"})
	require.NoError(t, err)
	return gw
}

func TestHTTPGateway_ChargeSuccess(t *testing.T) {
	gw := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body chargeBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order-1", body.Reference)
		assert.EqualValues(t, 3998, body.Amount)
		assert.Equal(t, "4242424242424242", body.Card.Number)

		_ = json.NewEncoder(w).Encode(chargeResponse{ID: "ch_1", Status: "succeeded"})
	})

	res, err := gw.Charge(context.Background(), ChargeRequest{
		Reference: "order-1",
		Amount:    decimal.RequireFromString("39.98"),
		Currency:  "USD",
		Card:      &Card{Number: "4242424242424242", CVV: "123", ExpMonth: 1, ExpYear: 2030, Holder: "J"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ch_1", res.TransactionID)
}

func TestHTTPGateway_ChargeDeclined(t *testing.T) {
	gw := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(chargeResponse{Status: "declined", Message: "do not honor"})
	})

	res, err := gw.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Card: &Card{}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "do not honor", res.Message)
}

func TestHTTPGateway_ChargeFaults(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		},
		"unknown status": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(chargeResponse{ID: "ch_2", Status: "weird"})
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			gw := newGatewayServer(t, h)
			res, err := gw.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Card: &Card{}})
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestHTTPGateway_Timeout(t *testing.T) {
	gw := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := gw.Charge(ctx, ChargeRequest{Amount: decimal.NewFromInt(1), Card: &Card{}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPGateway_QueryTransaction(t *testing.T) {
	gw := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/v1/charges/ch_1":
			_ = json.NewEncoder(w).Encode(chargeResponse{ID: "ch_1", Status: "succeeded"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	st, err := gw.QueryTransaction(context.Background(), "ch_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, st)

	st, err = gw.QueryTransaction(context.Background(), "ch_missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.Equal(t, StatusUnknown, st)
}

func TestNewHTTPGateway_RequiresURL(t *testing.T) {
	_, err := NewHTTPGateway(HTTPGatewayConfig{})
	assert.Error(t, err)
}

func TestHTTPGateway_PendingChargeIsUncertain(t *testing.T) {
	gw := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chargeResponse{ID: "ch_9", Status: "pending"})
	})

	res, err := gw.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Card: &Card{}})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrChargeUncertain)
	var unc *UncertainChargeError
	require.ErrorAs(t, err, &unc)
	assert.Equal(t, "ch_9", unc.TransactionID)
}

func TestHTTPGateway_RefusesAmountThatDoesNotFit(t *testing.T) {
	called := false
	gw := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := gw.Charge(context.Background(), ChargeRequest{
		Amount: decimal.RequireFromString("9223372036854775808.00"),
		Card:   &Card{},
	})
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
	assert.False(t, called)
}
