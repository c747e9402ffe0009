package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirasaad/ledger/pkg/client"
	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/service/bank"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const usage = `Usage: ledger-cli [flags] <command> [arguments]

Commands:
  register <username>                  create a user
  login <username>                     log in and store the session token
  operations                           list the operations the server accepts
  accounts                             list your accounts
  open <name>                          open an account
  deposit <account> <amount>
  withdraw <account> <amount>
  transfer <from> <to> <amount>
  get <collection> <id>                collection is users, accounts, loans, transactions or shares
  call <operation> [json-payload]      run any operation

The password is read from LEDGER_PASSWORD or prompted for.
`

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

// env is the process surroundings run depends on.
type env struct {
	stdout   io.Writer
	stderr   io.Writer
	password func(prompt string) (string, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	e := env{stdout: color.Output, stderr: color.Error, password: promptPassword}
	if err := run(ctx, os.Args[1:], e); err != nil {
		errColor.Fprintln(e.stderr, "error:", err) //nolint: errcheck
		os.Exit(1)
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".ledger-token"
	}
	return filepath.Join(dir, "ledger", "token")
}

func promptPassword(prompt string) (string, error) {
	if p := os.Getenv("LEDGER_PASSWORD"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal for the password prompt; set LEDGER_PASSWORD")
	}
	fmt.Fprint(os.Stderr, prompt) //nolint: errcheck
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) //nolint: errcheck
	return string(b), err
}

func run(ctx context.Context, args []string, e env) error {
	fs := flag.NewFlagSet("ledger-cli", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprint(e.stderr, usage) //nolint: errcheck
		fs.PrintDefaults()
	}
	server := fs.String("server", envOr("LEDGER_SERVER", "http://localhost:3000"), "server base URL")
	tokenFile := fs.String("token-file", defaultTokenFile(), "where the session token is kept")
	retries := fs.Int("retries", 3, "retries for requests the server did not process")
	timeout := fs.Duration("timeout", 10*time.Second, "per-attempt timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	c := client.New(*server,
		client.WithRetries(*retries, 200*time.Millisecond, 2*time.Second),
		client.WithTimeout(*timeout),
	)
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "register", "login":
		if len(rest) != 1 {
			return fmt.Errorf("usage: %s <username>", cmd)
		}
		password, err := e.password("Password: ")
		if err != nil {
			return err
		}
		if cmd == "register" {
			user, err := c.Register(ctx, rest[0], password)
			if err != nil {
				return err
			}
			okColor.Fprintf(e.stdout, "registered %s\n", user.Username) //nolint: errcheck
			return nil
		}
		user, err := c.Login(ctx, rest[0], password)
		if err != nil {
			return err
		}
		if err := saveToken(*tokenFile, c.Token()); err != nil {
			return err
		}
		okColor.Fprintf(e.stdout, "logged in as %s\n", user.Username) //nolint: errcheck
		return nil
	}

	token, err := os.ReadFile(*tokenFile)
	if err != nil {
		return fmt.Errorf("read token (run login first): %w", err)
	}
	c.SetToken(strings.TrimSpace(string(token)))

	op, payload, err := request(cmd, rest)
	if err != nil {
		return err
	}
	if op == "" {
		ops, err := c.Operations(ctx)
		if err != nil {
			return err
		}
		for _, o := range ops {
			infoColor.Fprintln(e.stdout, o) //nolint: errcheck
		}
		return nil
	}
	var out json.RawMessage
	if err := c.Call(ctx, op, payload, &out); err != nil {
		return err
	}
	return printJSON(e.stdout, out)
}

// request maps a command line onto an operation and its payload. An empty
// operation means the operations listing.
func request(cmd string, args []string) (string, any, error) {
	need := func(n int, form string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s %s", cmd, form)
		}
		return nil
	}

	switch cmd {
	case "operations":
		return "", nil, need(0, "")
	case "accounts":
		return bank.OpListAccounts, struct{}{}, need(0, "")
	case "open":
		if err := need(1, "<name>"); err != nil {
			return "", nil, err
		}
		return bank.OpCreateAccount, dto.CreateAccountRequest{Name: args[0]}, nil
	case "deposit", "withdraw":
		if err := need(2, "<account> <amount>"); err != nil {
			return "", nil, err
		}
		a, err := money.Parse(args[1])
		if err != nil {
			return "", nil, err
		}
		op := bank.OpDeposit
		if cmd == "withdraw" {
			op = bank.OpWithdraw
		}
		return op, dto.AmountRequest{Account: args[0], Amount: a}, nil
	case "transfer":
		if err := need(3, "<from> <to> <amount>"); err != nil {
			return "", nil, err
		}
		a, err := money.Parse(args[2])
		if err != nil {
			return "", nil, err
		}
		return bank.OpTransfer, dto.TransferRequest{From: args[0], To: args[1], Amount: a}, nil
	case "get":
		if err := need(2, "<collection> <id>"); err != nil {
			return "", nil, err
		}
		return bank.OpGet, dto.GetRequest{Collection: args[0], ID: args[1]}, nil
	case "call":
		if len(args) != 1 && len(args) != 2 {
			return "", nil, fmt.Errorf("usage: call <operation> [json-payload]")
		}
		payload := json.RawMessage("{}")
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return "", nil, fmt.Errorf("payload is not valid JSON")
			}
			payload = json.RawMessage(args[1])
		}
		return args[0], payload, nil
	}
	return "", nil, fmt.Errorf("unknown command %q", cmd)
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		okColor.Fprintln(w, "ok") //nolint: errcheck
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
