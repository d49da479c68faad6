// Package gateway builds and verifies the signed field sets exchanged with
// the hosted payment gateway. The hash is the sole authenticity guarantee
// on redirected checkout fields and webhook notifications, so the
// algorithm and concatenation order here must match the gateway exactly.
package gateway

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ceylongems/backoffice/internal/config"
)

// CheckoutFields is the exact field set the hosted checkout page expects.
type CheckoutFields struct {
	MerchantID string `json:"merchant_id"`
	ReturnURL  string `json:"return_url"`
	CancelURL  string `json:"cancel_url"`
	NotifyURL  string `json:"notify_url"`
	OrderID    string `json:"order_id"`
	Items      string `json:"items"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Hash       string `json:"hash"`
}

// Signer computes checkout and notification hashes with the shared
// merchant secret. The secret never leaves the server.
type Signer struct {
	cfg config.PaymentConfig
}

// NewSigner creates a Signer from payment configuration.
func NewSigner(cfg config.PaymentConfig) *Signer {
	return &Signer{cfg: cfg}
}

// FormatAmount renders an amount in the canonical fixed two-decimal form
// the hash is computed over.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// ChecksumFor computes the integrity hash over the checkout fields:
// UPPER(MD5(merchant_id + order_id + amount + currency + UPPER(MD5(secret)))).
// Pure function of its inputs.
func (s *Signer) ChecksumFor(orderID, formattedAmount, currency string) string {
	return md5Upper(s.cfg.MerchantID + orderID + formattedAmount + currency + md5Upper(s.cfg.MerchantSecret))
}

// CheckoutInput carries the validated payment fields into field building.
type CheckoutInput struct {
	OrderID   string
	Amount    float64
	Currency  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	Country   string
	Items     string
}

// BuildCheckout assembles the complete signed field set for the redirect
// to the hosted payment page.
func (s *Signer) BuildCheckout(in CheckoutInput) CheckoutFields {
	amount := FormatAmount(in.Amount)
	return CheckoutFields{
		MerchantID: s.cfg.MerchantID,
		ReturnURL:  s.cfg.BaseURL + s.cfg.ReturnPath,
		CancelURL:  s.cfg.BaseURL + s.cfg.CancelPath,
		NotifyURL:  s.cfg.BaseURL + s.cfg.NotifyPath,
		OrderID:    in.OrderID,
		Items:      in.Items,
		Currency:   in.Currency,
		Amount:     amount,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Phone:      in.Phone,
		Address:    in.Address,
		City:       in.City,
		Country:    in.Country,
		Hash:       s.ChecksumFor(in.OrderID, amount, in.Currency),
	}
}

// Notification is the asynchronous webhook payload posted by the gateway.
type Notification struct {
	MerchantID string `json:"merchant_id"`
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id"`
	Amount     string `json:"payhere_amount"`
	Currency   string `json:"payhere_currency"`
	StatusCode string `json:"status_code"`
	MD5Sig     string `json:"md5sig"`
}

// Gateway status codes carried in notifications.
const (
	StatusCodeSuccess  = "2"
	StatusCodeCanceled = "-1"
	StatusCodeFailed   = "-2"
)

// VerifyNotification recomputes the notification signature and compares it
// in constant time. The field order mirrors the gateway contract:
// merchant_id + order_id + amount + currency + status_code + UPPER(MD5(secret)).
func (s *Signer) VerifyNotification(n Notification) bool {
	if n.MerchantID != s.cfg.MerchantID {
		return false
	}
	expected := md5Upper(n.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + md5Upper(s.cfg.MerchantSecret))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(n.MD5Sig))) == 1
}
