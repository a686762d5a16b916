package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/auth"
	"github.com/comandaweb/terminal/internal/checkout"
	"github.com/comandaweb/terminal/internal/config"
	mw "github.com/comandaweb/terminal/internal/middleware"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/comandaweb/terminal/internal/service"
	"github.com/comandaweb/terminal/internal/storage"
	"github.com/shopspring/decimal"
)

const usage = `usage: comanda <command> [flags] [args]

commands:
  login -email E -senha S     log this terminal in
  logout                      clear the stored credentials
  sessao                      show the logged-in user and time left
  pedidos                     list orders
  pedido ID                   show an order and what this role may do
  pronto ID ITEM              mark an item ready
  cancelar ID                 cancel an aberto order
  troco [-teclado K] ID VALOR preview change for VALOR received
  pagar [-metodo M] [-aceitar] [-teclado K] ID VALOR
                              record payment and finalise the order

-teclado takes keypad presses instead of VALOR: digits fill from the
cents side, < erases one digit and C clears (4050 is R$ 40,50).`

type app struct {
	cfg     *config.Config
	store   storage.Store
	client  *api.Client
	manager *auth.Manager
	orders  *service.OrderService
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		log.Fatalf("Unable to start: %v", err)
	}
	defer a.store.Close()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	store, err := storage.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, err
	}
	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout, nil)
	manager := auth.NewManager(store, client, cfg.MaxSession())
	client.SetTokenSource(manager)
	client.OnUnauthorized(manager.ForceLogout)

	// Publisher is nil: the CLI has no open screens to notify.
	orders := service.NewOrderService(client, manager, store, nil)
	return &app{cfg: cfg, store: store, client: client, manager: manager, orders: orders}, nil
}

// negotiate settles the route prefix before the first order call.
func (a *app) negotiate(ctx context.Context) error {
	if a.cfg.APIPrefix != config.PrefixAuto {
		a.client.SetPrefix(a.cfg.APIPrefix)
		return nil
	}
	_, err := a.client.Negotiate(ctx)
	return err
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		if err := a.manager.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	case "sessao":
		return a.session(ctx)
	}

	if err := a.negotiate(ctx); err != nil {
		return err
	}
	switch cmd {
	case "pedidos":
		return a.list(ctx)
	case "pedido":
		id, err := argID(args, 0, "ID")
		if err != nil {
			return err
		}
		v, err := a.orders.Open(ctx, id)
		if err != nil {
			return err
		}
		printView(v)
		return nil
	case "pronto":
		id, err := argID(args, 0, "ID")
		if err != nil {
			return err
		}
		item, err := argID(args, 1, "ITEM")
		if err != nil {
			return err
		}
		v, err := a.orders.MarkItemReady(ctx, id, item, true)
		if err != nil {
			return err
		}
		printView(v)
		return nil
	case "cancelar":
		id, err := argID(args, 0, "ID")
		if err != nil {
			return err
		}
		v, err := a.orders.Cancel(ctx, id)
		if err != nil {
			return err
		}
		printView(v)
		return nil
	case "troco":
		return a.preview(ctx, args)
	case "pagar":
		return a.pay(ctx, args)
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	senha := fs.String("senha", "", "user password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("COMANDA_EMAIL")
	}
	if *senha == "" {
		*senha = os.Getenv("COMANDA_SENHA")
	}

	sess, err := a.manager.Login(ctx, *email, *senha)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s). Landing page: %s\n",
		userName(sess.User), sess.User.RoleKey(), auth.RedirectPath(sess.User.RoleKey()))
	return nil
}

func (a *app) session(ctx context.Context) error {
	sess, err := a.manager.Session(ctx)
	if err != nil {
		return err
	}
	left := a.manager.Remaining(ctx)
	fmt.Printf("%s role=%s, %s left\n", userName(sess.User), sess.User.RoleKey(), left.Round(time.Second))
	fmt.Printf("screens: %s\n", strings.Join(a.screens(ctx), ", "))
	if a.manager.AboutToExpire(ctx, a.cfg.SessionWarning) {
		fmt.Println("WARNING: session about to expire, log in again soon")
	}
	return nil
}

func (a *app) list(ctx context.Context) error {
	orders, err := a.orders.List(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders.")
		return nil
	}
	for _, o := range orders {
		fmt.Printf("#%-5d mesa %-3d %-11s %3d itens  %s\n",
			o.ID, o.TableNumber, o.Status, o.ItemCount(), checkout.FormatBRL(o.Total()))
	}
	return nil
}

func (a *app) preview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("troco", flag.ContinueOnError)
	keys := fs.String("teclado", "", "keypad presses instead of VALOR")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	id, err := argID(rest, 0, "ID")
	if err != nil {
		return err
	}
	received, err := argAmount(rest, 1, *keys)
	if err != nil {
		return err
	}
	res, err := a.orders.PreviewChange(ctx, id, received)
	if err != nil {
		return err
	}
	printChange(res)
	return nil
}

func (a *app) pay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pagar", flag.ContinueOnError)
	method := fs.String("metodo", "dinheiro", "payment method: dinheiro, cartao, pix, vale")
	accept := fs.Bool("aceitar", false, "accept an amount below the total")
	keys := fs.String("teclado", "", "keypad presses instead of VALOR")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	id, err := argID(rest, 0, "ID")
	if err != nil {
		return err
	}
	received, err := argAmount(rest, 1, *keys)
	if err != nil {
		return err
	}

	res, err := a.orders.Pay(ctx, id, received, *method, *accept)
	if err != nil {
		return err
	}
	printChange(res.Change)
	fmt.Printf("Order #%d is %s.\n", res.Order.ID, res.Order.Status)
	return nil
}

// screens lists the pages the logged-in role may open.
func (a *app) screens(ctx context.Context) []string {
	pages := []struct {
		name  string
		roles []string
	}{
		{"cardapio", mw.PageMenu},
		{"pedidos", mw.PageOrders},
		{"cozinha", mw.PageKitchen},
		{"caixa", mw.PageCheckout},
	}
	var out []string
	for _, p := range pages {
		if a.manager.HasAnyRole(ctx, p.roles...) {
			out = append(out, p.name)
		}
	}
	return out
}

func userName(u *model.User) string {
	if u == nil {
		return "(unknown user)"
	}
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}

func argID(args []string, i int, name string) (int64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s", name)
	}
	id, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, args[i])
	}
	return id, nil
}

// argAmount reads the amount received from keypad presses when given,
// otherwise from args[i].
func argAmount(args []string, i int, keys string) (decimal.Decimal, error) {
	if keys != "" {
		return checkout.KeypadAmount(keys)
	}
	if len(args) <= i {
		return decimal.Zero, checkout.ErrNoAmount
	}
	return checkout.ParseAmount(args[i])
}

func printView(v *service.View) {
	o := v.Order
	fmt.Printf("Pedido #%d  mesa %d  %s  total %s\n", o.ID, o.TableNumber, o.Status, checkout.FormatBRL(o.Total()))
	for i, it := range o.Items {
		icon := "⏰"
		if i < len(v.Affordances.Items) {
			icon = v.Affordances.Items[i].Icon
		}
		printItem(icon, it)
	}
	p := v.Affordances
	fmt.Printf("role=%s adicionar=%v cancelar=%v marcar_pronto=%v pagar=%v\n", p.Role, p.AddItem, p.Cancel, p.MarkReady, p.Pay)
}

func printItem(icon string, it model.OrderItem) {
	line := fmt.Sprintf("  %s [%d] %dx %s  %s", icon, it.ID, it.Quantity, it.Name, checkout.FormatBRL(it.LineTotal()))
	if it.Note != "" {
		line += "  (" + it.Note + ")"
	}
	fmt.Println(line)
}

func printChange(r checkout.Result) {
	fmt.Printf("Total %s  recebido %s  troco %s\n",
		checkout.FormatBRL(r.Total), checkout.FormatBRL(r.Received), r.Display)
	if r.Insufficient {
		fmt.Printf("Faltam %s\n", checkout.FormatBRL(r.Deficit))
	}
}
