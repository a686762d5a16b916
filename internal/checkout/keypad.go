package checkout

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxKeypadDigits caps entry at 999999,99.
const MaxKeypadDigits = 8

// Keypad is the on-screen numeric pad. Digits fill in from the cents side, so
// pressing 4 0 5 0 reads 40,50.
type Keypad struct {
	digits string
}

// Press appends a digit. Non-digits and presses past the cap are ignored and
// reported as false.
func (k *Keypad) Press(d rune) bool {
	if d < '0' || d > '9' {
		return false
	}
	if k.digits == "" && d == '0' {
		return true
	}
	if len(k.digits) >= MaxKeypadDigits {
		return false
	}
	k.digits += string(d)
	return true
}

// Type presses every rune of s in order. '<' is backspace and 'C' clears.
func (k *Keypad) Type(s string) {
	for _, r := range s {
		switch r {
		case '<':
			k.Backspace()
		case 'C', 'c':
			k.Clear()
		default:
			k.Press(r)
		}
	}
}

func (k *Keypad) Backspace() {
	if k.digits != "" {
		k.digits = k.digits[:len(k.digits)-1]
	}
}

func (k *Keypad) Clear() { k.digits = "" }

func (k *Keypad) Empty() bool { return k.digits == "" }

// Value is the amount entered so far.
func (k *Keypad) Value() decimal.Decimal {
	if k.digits == "" {
		return decimal.Zero
	}
	cents, err := decimal.NewFromString(strings.TrimLeft(k.digits, "0"))
	if err != nil {
		return decimal.Zero
	}
	return cents.Shift(-2)
}

// KeypadAmount replays keys on a fresh keypad and returns the amount shown.
func KeypadAmount(keys string) (decimal.Decimal, error) {
	var k Keypad
	k.Type(keys)
	if k.Empty() {
		return decimal.Zero, ErrNoAmount
	}
	return k.Value(), nil
}

func (k *Keypad) String() string {
	if k.digits == "" {
		return ""
	}
	return k.Value().StringFixed(2)
}
