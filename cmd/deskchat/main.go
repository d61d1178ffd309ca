// Command deskchat is a terminal client for the help-desk realtime endpoint.
// Lines typed on stdin are sent as messages; "/read <id>" sends a read
// receipt and "/quit" exits.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime/client"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	url         string
	userID      uint64
	role        string
	token       string
	ticketID    uint64
	to          uint64
	logMode     string
	maxAttempts int
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("deskchat", pflag.ContinueOnError)
	flagSet.StringVar(&opts.url, "url", "ws://localhost:8080/ws", "realtime websocket endpoint")
	flagSet.Uint64Var(&opts.userID, "user-id", 0, "your user id")
	flagSet.StringVar(&opts.role, "role", "customer", "business, customer or employee")
	flagSet.StringVar(&opts.token, "token", os.Getenv("DESKCHAT_TOKEN"), "handshake token when the server requires one")
	flagSet.Uint64Var(&opts.ticketID, "ticket", 0, "ticket to write on")
	flagSet.Uint64Var(&opts.to, "to", 0, "user id to message directly (staff only)")
	flagSet.StringVar(&opts.logMode, "log-mode", "development", "development or production logging")
	flagSet.IntVar(&opts.maxAttempts, "max-attempts", client.DefaultBackoff().MaxAttempts, "reconnect attempts before giving up (0 retries forever)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	role, ok := auth.ParseRole(opts.role)
	if !ok {
		return fmt.Errorf("invalid --role %q", opts.role)
	}
	id := auth.NewIdentity(role, opts.userID)
	if !id.Valid() {
		return fmt.Errorf("--user-id is required")
	}
	if (opts.ticketID == 0) == (opts.to == 0) {
		return fmt.Errorf("exactly one of --ticket or --to is required")
	}

	log, err := logger.New(opts.logMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backoff := client.DefaultBackoff()
	backoff.MaxAttempts = opts.maxAttempts
	out := os.Stdout
	mgr := client.New(client.Config{
		URL:      opts.url,
		Identity: id,
		Token:    opts.token,
		Backoff:  backoff,
		Handlers: printer(out, id),
	}, log)
	defer mgr.Close()
	mgr.OnStateChange(func(s client.State) {
		fmt.Fprintf(out, "* %s\n", s)
	})
	if err := mgr.Connect(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	go readLines(os.Stdin, lines)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseLine(line)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			if err := execute(mgr, opts, cmd); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(out, "! %v\n", err)
			}
		}
	}
}

var errQuit = errors.New("quit")

type command struct {
	kind      string // "send", "read", "quit", "reconnect" or "" for a blank line
	text      string
	messageID uint64
}

func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: "send", text: line}, nil
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return command{kind: "quit"}, nil
	case "/reconnect":
		return command{kind: "reconnect"}, nil
	case "/read":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: /read <messageId>")
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil || id == 0 {
			return command{}, fmt.Errorf("invalid message id %q", fields[1])
		}
		return command{kind: "read", messageID: id}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s", fields[0])
	}
}

func execute(mgr *client.Manager, opts options, cmd command) error {
	switch cmd.kind {
	case "":
		return nil
	case "quit":
		return errQuit
	case "reconnect":
		return mgr.Connect(context.Background())
	case "read":
		return mgr.SendReadReceipt(cmd.messageID)
	default:
		err := mgr.SendMessage(opts.ticketID, opts.to, cmd.text)
		if client.IsNotConnected(err) {
			return fmt.Errorf("not sent: %w", err)
		}
		return err
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func printer(w io.Writer, self auth.Identity) client.Handlers {
	stamp := func(ms int64) string { return wire.Time(ms).Local().Format(time.Kitchen) }
	return client.Handlers{
		OnConnection: func(f wire.Frame) {
			fmt.Fprintf(w, "* connected as %s:%d\n", f.Role, f.UserID)
		},
		OnMessage: func(f wire.Frame) {
			who := fmt.Sprintf("%d", f.SenderID)
			if f.SenderID == self.ID {
				who = "you"
			}
			fmt.Fprintf(w, "[%s] #%d %s: %s (%s)\n", stamp(f.Timestamp), f.MessageID, who, f.Content, f.Status)
		},
		OnStatusUpdate: func(f wire.Frame) {
			fmt.Fprintf(w, "  #%d %s\n", f.MessageID, f.Status)
		},
		OnTicketResolved: func(f wire.Frame) {
			fmt.Fprintf(w, "* ticket %d resolved by %d\n", *f.TicketID, f.ResolvedBy)
		},
		OnError: func(f wire.Frame) {
			fmt.Fprintf(w, "! %s (%s)\n", f.Error, f.Code)
		},
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `deskchat: chat on a help-desk ticket or directly with a coworker.

Usage:
  deskchat --user-id 7 --role customer --ticket 42
  deskchat --user-id 3 --role employee --to 4

Commands:
  <text>           send a message
  /read <id>       mark a message read
  /reconnect       reconnect now, resetting the retry budget
  /quit            exit

Flags:
`)
	flagSet.PrintDefaults()
}
