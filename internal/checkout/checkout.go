// Package checkout computes troco (change) for the cashier screen.
package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	ErrNoAmount     = errors.New("enter the amount received")
	ErrInvalidValue = errors.New("invalid amount")
)

// InsufficientError is returned when the amount received does not cover the
// total and the shortfall was not accepted.
type InsufficientError struct {
	Deficit decimal.Decimal
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("amount received is short by %s", FormatBRL(e.Deficit))
}

// Result is the change computation shown to the cashier.
type Result struct {
	Total        decimal.Decimal `json:"valor_total"`
	Received     decimal.Decimal `json:"valor_recebido"`
	Change       decimal.Decimal `json:"troco"`
	Insufficient bool            `json:"insuficiente"`
	Deficit      decimal.Decimal `json:"faltando"`
	Display      string          `json:"troco_formatado"`
}

// Change is received minus total. A negative change marks the payment as
// insufficient and reports the missing amount.
func Change(received, total decimal.Decimal) Result {
	change := received.Sub(total)
	r := Result{
		Total:    total,
		Received: received,
		Change:   change,
		Display:  FormatBRL(change),
	}
	if change.IsNegative() {
		r.Insufficient = true
		r.Deficit = change.Abs()
	}
	return r
}

// Settle validates a payment: received must be positive, and an insufficient
// amount passes only with acceptShortfall.
func Settle(received, total decimal.Decimal, acceptShortfall bool) (Result, error) {
	if !received.IsPositive() {
		return Result{}, ErrNoAmount
	}
	r := Change(received, total)
	if r.Insufficient && !acceptShortfall {
		return r, &InsufficientError{Deficit: r.Deficit}
	}
	return r, nil
}

// ParseAmount accepts "40.50", "40,50", "1.234,50" and "R$ 40,50".
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, ErrNoAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
	}
	return d, nil
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount the way the cash drawer shows it: "R$ 1.234,50".
func FormatBRL(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	f, _ := d.Round(2).Float64()
	return sign + "R$ " + brl.Sprint(number.Decimal(f, number.Scale(2)))
}
