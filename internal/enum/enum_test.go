package enum

import (
	"sync"
	"testing"
)

func TestNormalizeOrderStatus(t *testing.T) {
	cases := map[string]string{
		"aberto":      OrderStatusOpen,
		" EM_PREPARO": OrderStatusPreparing,
		"pendente":    OrderStatusPreparing,
		"Pronto":      OrderStatusDelivered,
		"cancelado":   OrderStatusCancelled,
		"bogus":       "bogus",
	}
	for in, want := range cases {
		if got := NormalizeOrderStatus(in); got != want {
			t.Errorf("NormalizeOrderStatus(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]string{
		"Garçom":  RoleWaiter,
		"garcom":  RoleWaiter,
		"Admin":   RoleAdmin,
		"COZINHA": RoleKitchen,
		" Caixa ": RoleCashier,
	}
	for in, want := range cases {
		if got := NormalizeRole(in); got != want {
			t.Errorf("NormalizeRole(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(OrderStatusFinished) || !IsTerminal(OrderStatusCancelled) {
		t.Error("finalizado and cancelado must be terminal")
	}
	for _, s := range []string{OrderStatusOpen, OrderStatusPreparing, OrderStatusDelivered} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestNormalizeRole_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				if got := NormalizeRole("Garçom"); got != RoleWaiter {
					errs <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("NormalizeRole(Garçom) = %q, want %q", got, RoleWaiter)
	}
}
