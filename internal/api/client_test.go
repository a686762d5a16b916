package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// --- Test helpers ---

type staticToken string

func (s staticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", api.ErrNotAuthenticated
	}
	return string(s), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// newBackend serves r under /api and returns a client pointed at it.
func newBackend(t *testing.T, r chi.Router, token string) (*api.Client, *httptest.Server) {
	t.Helper()
	root := chi.NewRouter()
	root.Mount("/api", r)
	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return api.New(srv.URL+"/api", 2*time.Second, staticToken(token)), srv
}

// =====================
// Login
// =====================

func TestLogin_HappyPath(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ana@comanda.com" || body["senha"] != "segredo" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Credenciais inválidas"})
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not carry a bearer token")
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": "tok-123",
			"user":  map[string]interface{}{"id": 1, "nome": "Ana", "email": "ana@comanda.com", "role": "Garçom"},
		})
	})
	client, _ := newBackend(t, r, "")

	resp, err := client.Login(context.Background(), "ana@comanda.com", "segredo")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token != "tok-123" {
		t.Errorf("token: got %q", resp.Token)
	}
	if resp.User.RoleKey() != enum.RoleWaiter {
		t.Errorf("role: got %q", resp.User.RoleKey())
	}
}

func TestLogin_BadCredentialsCarryServerMessage(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Credenciais inválidas"})
	})
	client, _ := newBackend(t, r, "")

	_, err := client.Login(context.Background(), "x@y.com", "bad")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *api.Error", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Credenciais inválidas" {
		t.Errorf("got %+v", apiErr)
	}
}

// =====================
// Authenticated fetch
// =====================

func TestAuthenticatedFetch_NoTokenSendsNothing(t *testing.T) {
	var hits int32
	r := chi.NewRouter()
	r.Get("/pedidos", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusOK, []interface{}{})
	})
	client, _ := newBackend(t, r, "")

	_, err := client.ListOrders(context.Background())
	if !errors.Is(err, api.ErrNotAuthenticated) {
		t.Fatalf("got %v, want ErrNotAuthenticated", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("backend was called %d times", hits)
	}
}

func TestAuthenticatedFetch_SetsHeaders(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/pedidos/{id}", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization: got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 7, "status": "pendente", "valor_total": "35.00",
			"itens": []map[string]interface{}{{"id": 1, "nome": "Macarronada", "quantidade": 1, "preco_unitario": "25.00", "status": "pronto"}},
		})
	})
	client, _ := newBackend(t, r, "tok")

	o, err := client.GetOrder(context.Background(), 7)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != enum.OrderStatusPreparing {
		t.Errorf("legacy status should be normalised, got %q", o.Status)
	}
	if !o.Total().Equal(decimal.RequireFromString("35")) {
		t.Errorf("total: got %s", o.Total())
	}
}

func TestAuthenticatedFetch_401RunsHook(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/pedidos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token inválido"})
	})
	client, _ := newBackend(t, r, "tok")
	called := false
	client.OnUnauthorized(func(context.Context) { called = true })

	_, err := client.ListOrders(context.Background())
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if !called {
		t.Error("unauthorized hook not called")
	}
}

func TestAuthenticatedFetch_403Message(t *testing.T) {
	r := chi.NewRouter()
	r.Patch("/pedidos/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Apenas caixa"})
	})
	r.Delete("/pedidos/{id}/item/{itemID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	client, _ := newBackend(t, r, "tok")

	err := client.UpdateOrderStatus(context.Background(), 1, enum.OrderStatusFinished)
	var fe *api.ForbiddenError
	if !errors.As(err, &fe) || fe.Message != "Apenas caixa" {
		t.Errorf("got %v, want ForbiddenError with server message", err)
	}

	err = client.RemoveItem(context.Background(), 1, 2)
	if !errors.As(err, &fe) || fe.Message == "" {
		t.Errorf("got %v, want ForbiddenError with default message", err)
	}
}

func TestAuthenticatedFetch_Timeout(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/cardapio", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	})
	root := chi.NewRouter()
	root.Mount("/api", r)
	srv := httptest.NewServer(root)
	defer srv.Close()

	client := api.New(srv.URL+"/api", 50*time.Millisecond, staticToken("tok"))
	_, err := client.Menu(context.Background())
	if !errors.Is(err, api.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestAuthenticatedFetch_OtherErrors(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/pedidos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "mesa inválida"})
	})
	client, _ := newBackend(t, r, "tok")

	_, err := client.CreateOrder(context.Background(), 0, nil)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity || apiErr.Message != "mesa inválida" {
		t.Errorf("got %v", err)
	}
}

// =====================
// Endpoints
// =====================

func TestAddItemsBody(t *testing.T) {
	r := chi.NewRouter()
	r.Patch("/pedidos/{id}/itens", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "42" {
			t.Errorf("id: got %s", chi.URLParam(r, "id"))
		}
		var body struct {
			Items []struct {
				ID   int64  `json:"id_item"`
				Qty  int    `json:"quantidade"`
				Note string `json:"observacao"`
			} `json:"novos_itens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Items) != 1 || body.Items[0].ID != 8 || body.Items[0].Qty != 2 || body.Items[0].Note != "sem cebola" {
			t.Errorf("body: %+v", body)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	client, _ := newBackend(t, r, "tok")

	err := client.AddItems(context.Background(), 42, []api.NewItem{{CatalogItemID: 8, Quantity: 2, Note: "sem cebola"}})
	if err != nil {
		t.Fatalf("add items: %v", err)
	}
}

func TestListOrdersAcceptsWrappedList(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/pedidos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"pedidos": []map[string]interface{}{{"id": 1, "status": "aberto"}, {"id": 2, "status": "pronto"}},
		})
	})
	client, _ := newBackend(t, r, "tok")

	orders, err := client.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 || orders[1].Status != enum.OrderStatusDelivered {
		t.Errorf("got %+v", orders)
	}
}

func TestRecordPayment(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/pagamentos", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["metodo"] != enum.PaymentMethodCash {
			t.Errorf("metodo: got %v", body["metodo"])
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"id_pedido": 7, "valor_pago": "40.50", "troco": "5.50", "metodo": "dinheiro",
		})
	})
	client, _ := newBackend(t, r, "tok")

	receipt, err := client.RecordPayment(context.Background(), api.PaymentRequest{
		OrderID: 7, AmountPaid: decimal.RequireFromString("40.50"), Method: enum.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if !receipt.Change.Equal(decimal.RequireFromString("5.50")) {
		t.Errorf("change: got %s", receipt.Change)
	}
}

// =====================
// Prefix negotiation
// =====================

func TestNegotiate_PrefersNamespaced(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/sistema/pedidos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no token"})
	})
	r.Get("/sistema/cardapio", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []interface{}{})
	})
	client, _ := newBackend(t, r, "tok")

	p, err := client.Negotiate(context.Background())
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if p != "/sistema" {
		t.Errorf("prefix: got %q", p)
	}
	if _, err := client.Menu(context.Background()); err != nil {
		t.Errorf("menu through negotiated prefix: %v", err)
	}
}

func TestNegotiate_FallsBackToBare(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/pedidos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []interface{}{})
	})
	client, _ := newBackend(t, r, "tok")

	p, err := client.Negotiate(context.Background())
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if p != "" || client.Prefix() != "" {
		t.Errorf("prefix: got %q", p)
	}
}

func TestNegotiate_NothingAnswers(t *testing.T) {
	client, _ := newBackend(t, chi.NewRouter(), "tok")
	if _, err := client.Negotiate(context.Background()); !errors.Is(err, api.ErrNoRoutePrefix) {
		t.Errorf("got %v, want ErrNoRoutePrefix", err)
	}
}

func TestSetPrefix(t *testing.T) {
	client := api.New("http://x", time.Second, nil)
	for in, want := range map[string]string{"/": "", "sistema": "/sistema", "/sistema/": "/sistema", "": ""} {
		client.SetPrefix(in)
		if client.Prefix() != want {
			t.Errorf("SetPrefix(%q): got %q, want %q", in, client.Prefix(), want)
		}
	}
}
