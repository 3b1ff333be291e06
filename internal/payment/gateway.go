// Package payment bridges order checkout to an external payment gateway.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
)

// ExternalOrder is the gateway side record created before checkout
type ExternalOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Gateway creates checkout orders and authenticates callbacks
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*ExternalOrder, error)
	Verify(payload, signature string) bool
	KeyID() string
}

// CallbackPayload is the string the gateway signs for a completed payment
func CallbackPayload(gatewayOrderID, paymentID string) string {
	return gatewayOrderID + "|" + paymentID
}

// Sign computes the hex HMAC-SHA256 of payload under secret
func Sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// MinorUnits converts an amount to the smallest currency unit, rounding half
// away from zero
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway talks to Razorpay through the official SDK
type RazorpayGateway struct {
	keyID  string
	secret string
	orders orderCreator
}

// NewRazorpayGateway creates a gateway for the given API credentials
func NewRazorpayGateway(keyID, secret string) (*RazorpayGateway, error) {
	if keyID == "" || secret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	client := razorpay.NewClient(keyID, secret)
	return &RazorpayGateway{keyID: keyID, secret: secret, orders: client.Order}, nil
}

// CreateOrder registers a checkout order. The SDK call is not cancellable,
// so ctx is only checked before the request is sent.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*ExternalOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}

	minor := MinorUnits(amount)
	resp, err := g.orders.Create(map[string]interface{}{
		"amount":   minor,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order failed: %w", err)
	}

	id, _ := resp["id"].(string)
	if id == "" {
		return nil, errors.New("razorpay create order returned no id")
	}

	out := &ExternalOrder{ID: id, Amount: minor, Currency: currency, Receipt: receipt}
	if c, ok := resp["currency"].(string); ok && c != "" {
		out.Currency = c
	}
	if a, ok := resp["amount"].(float64); ok {
		out.Amount = int64(a)
	}
	return out, nil
}

// Verify checks a callback signature in constant time
func (g *RazorpayGateway) Verify(payload, signature string) bool {
	expected := Sign(payload, g.secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// KeyID is the public key handed to the checkout widget
func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}
