// citychat is a terminal client for the Cityline assistant. It runs the
// same orchestrator as the server against an in-memory session store, so
// conversations can be tried without HTTP.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/ashureev/cityline/internal/conversation"
	"github.com/ashureev/cityline/internal/flow"
	"github.com/ashureev/cityline/internal/intent"
	"github.com/ashureev/cityline/internal/records"
	"github.com/ashureev/cityline/internal/store"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	records      string
	today        string
	session      string
	autoContinue bool
	delay        time.Duration
	verbose      bool
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("citychat", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&opts.records, "records", "", "YAML records fixture (default: built-in records)")
	flagSet.StringVar(&opts.today, "today", "", "pretend the conversation starts on this date (YYYY-MM-DD)")
	flagSet.StringVar(&opts.session, "session", "", "session id to use (default: generated)")
	flagSet.BoolVar(&opts.autoContinue, "auto-continue", true, "wait out processing delays and continue automatically")
	flagSet.DurationVar(&opts.delay, "delay", flow.DefaultAutoContinueDelay, "payment processing delay")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log turns to stderr")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	clock, err := newClock(opts.today)
	if err != nil {
		return err
	}

	table := records.NewTable(records.DefaultData())
	if opts.records != "" {
		if table, err = records.LoadFile(opts.records); err != nil {
			return err
		}
	}

	orch, err := conversation.New(conversation.Config{
		Sessions:   store.NewSessions(store.NewMemory(), store.WithClock(clock)),
		Classifier: intent.New(),
		Flows: flow.All(flow.Deps{
			Lookup:            table,
			Registry:          table,
			AutoContinueDelay: opts.delay,
			Logger:            logger,
		}),
		Logger: logger,
		Clock:  clock,
	})
	if err != nil {
		return err
	}

	return chat(ctx, orch, opts, in, out)
}

func chat(ctx context.Context, orch *conversation.Orchestrator, opts options, in io.Reader, out io.Writer) error {
	sessionID := opts.session
	fmt.Fprintln(out, "Cityline assistant. Type a message, or 'quit' to exit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		reply, err := orch.Handle(ctx, sessionID, text)
		if err != nil {
			return err
		}
		sessionID = reply.SessionID
		printReply(out, reply)

		for opts.autoContinue && reply.AutoContinueDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reply.AutoContinueDelay):
			}
			reply, err = orch.Handle(ctx, sessionID, conversation.AutoContinueMessage)
			if err != nil {
				return err
			}
			printReply(out, reply)
		}
	}
}

func printReply(out io.Writer, r *conversation.Reply) {
	fmt.Fprintf(out, "\n%s\n", r.Text)
	for i, o := range r.Options {
		fmt.Fprintf(out, "  [%d] %s\n", i+1, o)
	}
	if r.NeedsEscalation {
		fmt.Fprintln(out, "  (handing off to a city representative)")
	}
	fmt.Fprintln(out)
}

// newClock returns time.Now, or a clock that starts at the given date and
// advances in real time.
func newClock(today string) (func() time.Time, error) {
	if today == "" {
		return time.Now, nil
	}
	start, err := time.ParseInLocation("2006-01-02", today, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --today %q: %w", today, err)
	}
	start = start.Add(9 * time.Hour)
	origin := time.Now()
	return func() time.Time { return start.Add(time.Since(origin)) }, nil
}
