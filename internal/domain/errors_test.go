package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInsufficientBalanceErrorMessage(t *testing.T) {
	err := NewInsufficientBalanceError("ETH", decimal.NewFromFloat(0.5), decimal.NewFromInt(2))

	msg := err.Error()
	for _, want := range []string{"ETH", "0.5", "2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got %q", want, msg)
		}
	}
	if err.Asset != "ETH" {
		t.Errorf("expected asset ETH, got %s", err.Asset)
	}
}

func TestNoActiveSessionErrorNamesStatus(t *testing.T) {
	err := NewNoActiveSessionError(StatusIdle)
	if !strings.Contains(err.Error(), string(StatusIdle)) {
		t.Errorf("expected message to name the status, got %q", err.Error())
	}
}

func TestAuthenticationErrorMessage(t *testing.T) {
	err := NewAuthenticationError("challenge timed out")
	if !strings.Contains(err.Error(), "challenge timed out") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestTradeLimitErrorMessage(t *testing.T) {
	err := NewTradeLimitError("max trade size", "$1500.00 > $1000.00")
	if !strings.Contains(err.Error(), "max trade size") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
