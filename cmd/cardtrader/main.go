// Command cardtrader is the terminal client for the trading-card
// marketplace: authenticate, browse the catalog, manage a collection, and
// create or cancel trade proposals against the remote API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cardtrader/cardtrader/internal/api"
	"github.com/cardtrader/cardtrader/internal/app"
	"github.com/cardtrader/cardtrader/internal/cli"
	"github.com/cardtrader/cardtrader/internal/config"
	"github.com/cardtrader/cardtrader/internal/session"
	"github.com/cardtrader/cardtrader/internal/validate"
	"github.com/cardtrader/cardtrader/internal/views"
	"github.com/cardtrader/cardtrader/pkg/logger"
)

const usage = `Usage: cardtrader [flags] <command> [args]

Commands:
  login       -email -password          authenticate and persist the session
  register    -name -email -password    create an account
  logout                                drop the persisted session
  whoami                                show the authenticated user
  cards       [-search] [-category] [-available]   browse the catalog
  card        <id>                      show one card
  collection  list | add <id> [id...]   manage the owned-card collection
  trades      list [-mine] [-status] | create -offer ids -want ids | delete <id>
  theme       [light|dark|system]       show or set the display preference

Flags:
  -config <path>   alternate config file
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	out := cli.NewPrinter(os.Stdout)

	a, err := app.New(cfg, log)
	if err != nil {
		out.Errorf("%v", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a, out, flag.Arg(0), flag.Args()[1:]); err != nil {
		reportError(out, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, out *cli.Printer, command string, args []string) error {
	switch command {
	case "login":
		return cmdLogin(ctx, a, out, args)
	case "register":
		return cmdRegister(ctx, a, out, args)
	case "logout":
		if err := a.Logout(); err != nil {
			return err
		}
		out.Successf("logged out")
		return nil
	case "whoami":
		return cmdWhoami(ctx, a, out)
	case "cards":
		return cmdCards(ctx, a, out, args)
	case "card":
		return cmdCard(ctx, a, out, args)
	case "collection":
		return cmdCollection(ctx, a, out, args)
	case "trades":
		return cmdTrades(ctx, a, out, args)
	case "theme":
		return cmdTheme(a, out, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// reportError renders remote, validation, and local errors the way the UI
// used to: field messages inline, remote failures with status and message.
func reportError(out *cli.Printer, err error) {
	var fields validate.Errors
	if errors.As(err, &fields) {
		for _, fe := range fields {
			out.Errorf("%s: %s", fe.Field, fe.Message)
		}
		return
	}
	if re, ok := api.AsRequestError(err); ok {
		out.Errorf("request failed (%d): %s", re.Status, re.Message())
		return
	}
	out.Errorf("%v", err)
}

func withSpinner[T any](prefix string, fn func() (T, error)) (T, error) {
	spinner := cli.NewSpinner(prefix)
	spinner.Start()
	defer spinner.Stop()
	return fn()
}

func cmdLogin(ctx context.Context, a *app.App, out *cli.Printer, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", os.Getenv("CARDTRADER_EMAIL"), "account email")
	password := fs.String("password", os.Getenv("CARDTRADER_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := withSpinner("logging in", func() (*api.User, error) {
		return a.Login(ctx, *email, *password)
	})
	if err != nil {
		return err
	}
	out.Successf("logged in as %s <%s>", user.Name, user.Email)
	return nil
}

func cmdRegister(ctx context.Context, a *app.App, out *cli.Printer, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	confirm := fs.String("confirm", "", "password confirmation (defaults to -password)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = *password
	}

	user, err := withSpinner("registering", func() (*api.User, error) {
		return a.Register(ctx, *name, *email, *password, *confirm)
	})
	if err != nil {
		return err
	}
	out.Successf("registered as %s <%s>", user.Name, user.Email)
	return nil
}

func cmdWhoami(ctx context.Context, a *app.App, out *cli.Printer) error {
	if !a.Session().Authenticated() {
		out.Printf("not logged in")
		return nil
	}
	user, err := withSpinner("fetching profile", func() (api.User, error) {
		return a.Profile(ctx)
	})
	if err != nil {
		return err
	}
	out.Printf("%s <%s>", user.Name, user.Email)
	if user.CreatedAt != "" {
		out.Printf("member since %s", user.CreatedAt)
	}
	return nil
}

func cmdCards(ctx context.Context, a *app.App, out *cli.Printer, args []string) error {
	fs := flag.NewFlagSet("cards", flag.ContinueOnError)
	search := fs.String("search", "", "filter by name, set, or rarity")
	category := fs.String("category", "", "filter by category")
	available := fs.Bool("available", false, "hide cards already in the collection")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cards, err := withSpinner("fetching catalog", func() ([]api.Card, error) {
		return a.Catalog(ctx)
	})
	if err != nil {
		return err
	}

	cards = views.FilterBySearch(cards, *search)
	cards = views.FilterByCategory(cards, *category)
	if *available && a.Session().Authenticated() {
		owned, err := a.OwnedCards(ctx)
		if err != nil {
			return err
		}
		cards = views.ExcludeOwned(cards, owned)
	}

	printCards(out, cards)
	return nil
}

func cmdCard(ctx context.Context, a *app.App, out *cli.Printer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cardtrader card <id>")
	}
	card, err := withSpinner("fetching card", func() (*api.Card, error) {
		return a.CardDetails(ctx, args[0])
	})
	if err != nil {
		return err
	}

	out.Printf("%s", card.Name)
	out.Printf("  set:       %s", card.Set)
	if card.Rarity != "" {
		out.Printf("  rarity:    %s", card.Rarity)
	}
	if card.Condition != "" {
		out.Printf("  condition: %s", card.Condition)
	}
	if card.Category != "" {
		out.Printf("  category:  %s", card.Category)
	}
	if card.ImageURL != "" {
		out.Printf("  image:     %s", card.ImageURL)
	}
	return nil
}

func cmdCollection(ctx context.Context, a *app.App, out *cli.Printer, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		cards, err := withSpinner("fetching collection", func() ([]api.Card, error) {
			return a.OwnedCards(ctx)
		})
		if err != nil {
			return err
		}
		printCards(out, cards)
		return nil
	case "add":
		ids := args[1:]
		if len(ids) == 0 {
			return fmt.Errorf("usage: cardtrader collection add <id> [id...]")
		}
		_, err := withSpinner("adding cards", func() (struct{}, error) {
			return struct{}{}, a.AddCards(ctx, ids)
		})
		if err != nil {
			return err
		}
		out.Successf("added %d card(s) to the collection", len(ids))
		return nil
	default:
		return fmt.Errorf("unknown collection subcommand %q", args[0])
	}
}

func cmdTrades(ctx context.Context, a *app.App, out *cli.Printer, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("trades list", flag.ContinueOnError)
		mine := fs.Bool("mine", false, "only trades owned by the logged-in user")
		status := fs.String("status", "active", "active, completed, cancelled, or all")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return cmdTradesList(ctx, a, out, *mine, *status)
	case "create":
		fs := flag.NewFlagSet("trades create", flag.ContinueOnError)
		offer := fs.String("offer", "", "comma-separated card ids to offer")
		want := fs.String("want", "", "comma-separated card ids to receive")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		trade, err := withSpinner("creating trade", func() (*api.Trade, error) {
			return a.CreateTrade(ctx, splitIDs(*offer), splitIDs(*want))
		})
		if err != nil {
			return err
		}
		out.Successf("trade %s created", trade.ID)
		return nil
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: cardtrader trades delete <id>")
		}
		_, err := withSpinner("deleting trade", func() (struct{}, error) {
			return struct{}{}, a.DeleteTrade(ctx, args[1])
		})
		if err != nil {
			return err
		}
		out.Successf("trade %s deleted", args[1])
		return nil
	default:
		return fmt.Errorf("unknown trades subcommand %q", args[0])
	}
}

func cmdTradesList(ctx context.Context, a *app.App, out *cli.Printer, mine bool, status string) error {
	trades, err := withSpinner("fetching trades", func() ([]api.Trade, error) {
		return a.TradeList(ctx)
	})
	if err != nil {
		return err
	}

	if mine {
		sess := a.Session()
		if sess.User == nil {
			return fmt.Errorf("log in to list your trades")
		}
		trades = views.TradesByUser(trades, sess.User.ID)
	}

	groups := views.PartitionTrades(trades)
	switch strings.ToLower(status) {
	case "active":
		trades = groups.Active
	case "completed":
		trades = groups.Completed
	case "cancelled":
		trades = groups.Cancelled
	case "all":
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	if len(trades) == 0 {
		out.Printf("no trades")
		return nil
	}

	rows := [][]string{{"ID", "OWNER", "STATUS", "OFFERING", "RECEIVING"}}
	for _, trade := range trades {
		owner := trade.UserID
		if trade.User != nil {
			owner = trade.User.Name
		}
		st := trade.Status
		if st == "" {
			st = api.TradeActive
		}
		var offering, receiving []string
		for _, tc := range trade.Cards {
			name := tc.CardID
			if tc.Card != nil {
				name = tc.Card.Name
			}
			if tc.Type == api.Offering {
				offering = append(offering, name)
			} else {
				receiving = append(receiving, name)
			}
		}
		rows = append(rows, []string{
			trade.ID, owner, string(st),
			strings.Join(offering, ", "), strings.Join(receiving, ", "),
		})
	}
	out.Table(rows)
	return nil
}

func cmdTheme(a *app.App, out *cli.Printer, args []string) error {
	if len(args) == 0 {
		out.Printf("%s", a.Theme())
		return nil
	}
	theme := session.Theme(args[0])
	if err := a.SetTheme(theme); err != nil {
		return err
	}
	out.Successf("theme set to %s", theme)
	return nil
}

func printCards(out *cli.Printer, cards []api.Card) {
	if len(cards) == 0 {
		out.Printf("no cards")
		return
	}
	rows := [][]string{{"ID", "NAME", "SET", "RARITY", "CATEGORY"}}
	for _, card := range cards {
		rows = append(rows, []string{card.ID, card.Name, card.Set, card.Rarity, card.Category})
	}
	out.Table(rows)
}

func splitIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
