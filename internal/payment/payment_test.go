package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCard() *Card {
	return &Card{Number: "4242 4242 4242 4242", CVV: "123", ExpMonth: 12, ExpYear: time.Now().Year() + 2, Holder: "Jane Doe"}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Card ")
	require.NoError(t, err)
	assert.Equal(t, MethodCard, m)

	_, err = ParseMethod("paypal")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewCardProcessor(NewSandboxGateway()))

	p, err := r.Get(MethodCard)
	require.NoError(t, err)
	assert.Equal(t, MethodCard, p.Method())

	_, err = r.Get(Method("crypto"))
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestValidateCard(t *testing.T) {
	now := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		mut  func(c *Card)
		want string
	}{
		{"ok", func(c *Card) {}, ""},
		{"luhn", func(c *Card) { c.Number = "4242424242424241" }, "invalid card number"},
		{"letters", func(c *Card) { c.Number = "4242abcd42424242" }, "invalid card number"},
		{"short", func(c *Card) { c.Number = "42424242" }, "invalid card number"},
		{"month", func(c *Card) { c.ExpMonth = 13 }, "invalid expiry month"},
		{"expired", func(c *Card) { c.ExpYear, c.ExpMonth = 2026, 4 }, "card expired"},
		{"this month", func(c *Card) { c.ExpYear, c.ExpMonth = 2026, 5 }, ""},
		{"cvv", func(c *Card) { c.CVV = "12" }, "invalid cvv"},
		{"holder", func(c *Card) { c.Holder = " " }, "card holder is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Card{Number: "4242424242424242", CVV: "123", ExpMonth: 12, ExpYear: 2030, Holder: "Jane"}
			tc.mut(c)
			err := ValidateCard(c, now)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
		})
	}

	assert.Error(t, ValidateCard(nil, now))
}

func TestCardProcessor_Sandbox(t *testing.T) {
	ctx := context.Background()
	gw := NewSandboxGateway()
	p := NewCardProcessor(gw)

	res, err := p.Charge(ctx, ChargeRequest{Reference: "ref-1", Amount: decimal.RequireFromString("39.98"), Currency: "USD", Card: validCard()})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Regexp(t, `^sbx_[0-9a-f-]{36}$`, res.TransactionID)

	st, err := p.QueryTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, st)

	_, err = p.QueryTransaction(ctx, "sbx_missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestCardProcessor_SandboxDeclines(t *testing.T) {
	ctx := context.Background()
	p := NewCardProcessor(NewSandboxGateway())

	for number, msg := range map[string]string{
		SandboxDeclinedCard:          "card declined",
		SandboxInsufficientFundsCard: "insufficient funds",
	} {
		card := validCard()
		card.Number = number
		res, err := p.Charge(ctx, ChargeRequest{Reference: "r", Amount: decimal.NewFromInt(1), Currency: "USD", Card: card})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, msg, res.Message)
		assert.Empty(t, res.TransactionID)
	}
}

func TestCardProcessor_InvalidCardNeverReachesGateway(t *testing.T) {
	p := NewCardProcessor(NewSandboxGateway())
	card := validCard()
	card.Number = "1234567812345678"

	res, err := p.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(5), Currency: "USD", Card: card})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "invalid card number", res.Message)
}

func TestSandbox_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSandboxGateway().Charge(ctx, ChargeRequest{Card: validCard()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinorUnits(t *testing.T) {
	for in, want := range map[string]int64{
		"39.98":         3998,
		"1":             100,
		"0.005":         1,
		"9999999999.99": 999999999999,
	} {
		got, err := MinorUnits(decimal.RequireFromString(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestMinorUnits_RejectsOutOfRange(t *testing.T) {
	for _, in := range []string{"-0.01", "10000000000.00", "9223372036854775808.00"} {
		_, err := MinorUnits(decimal.RequireFromString(in))
		assert.ErrorIs(t, err, ErrAmountOutOfRange, in)
	}
}

func TestCardProcessor_AmountAboveMaximumIsDeclined(t *testing.T) {
	gw := NewSandboxGateway()
	p := NewCardProcessor(gw)

	res, err := p.Charge(context.Background(), ChargeRequest{
		Reference: "r",
		Amount:    decimal.RequireFromString("9223372036854775808.00"),
		Currency:  "USD",
		Card:      validCard(),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.TransactionID)
	assert.Empty(t, gw.transactions)
}
