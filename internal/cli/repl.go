package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests provide a stub.
type execIface interface {
	Status(ctx context.Context) error
	Sync(ctx context.Context) error

	Dishes(ctx context.Context) error
	AddDish(ctx context.Context, name string, tags []string) error
	DeleteDish(ctx context.Context, id string) error

	Plans(ctx context.Context) error
	NewPlan(ctx context.Context, weekStart string) error
	Assign(ctx context.Context, planID, date, meal, dishID string) error
	Lock(ctx context.Context, planID string) error
	Unlock(ctx context.Context, planID string) error
	ForceUnlock(ctx context.Context, planID string) error

	Proposals(ctx context.Context) error
	Propose(ctx context.Context, date, meal string) error
	Vote(ctx context.Context, proposalID, choice string) error
	Withdraw(ctx context.Context, proposalID string) error
	Dismiss(ctx context.Context, proposalID string) error

	Attention(ctx context.Context) error
	Retry(ctx context.Context, entityID string) error
	Discard(ctx context.Context, entityID string) error
}

// runREPL reads commands line by line and dispatches them. The loop exits
// on scanner EOF, ctx cancellation, or "exit"/"quit". Handler errors are
// printed, never fatal.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, out io.Writer) {
	report := func(err error) {
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "ks [%s] > ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			fmt.Fprintln(out, "Commands:")
			fmt.Fprintln(out, "  status | sync")
			fmt.Fprintln(out, "  dishes | adddish <name> [tags...] | deldish <id>")
			fmt.Fprintln(out, "  plans | newplan <monday> | assign <plan> <date> <meal> <dish>")
			fmt.Fprintln(out, "  lock <plan> | unlock <plan> | forceunlock <plan>")
			fmt.Fprintln(out, "  proposals | propose <date> <meal> | vote <id> approve|reject")
			fmt.Fprintln(out, "  withdraw <id> | dismiss <id>")
			fmt.Fprintln(out, "  attention | retry <entity-id> | discard <entity-id>")
			fmt.Fprintln(out, "  exit")

		case "status":
			report(a.Status(ctx))

		case "sync":
			report(a.Sync(ctx))

		case "dishes":
			report(a.Dishes(ctx))

		case "adddish":
			if len(args) < 1 {
				fmt.Fprintln(out, "Usage: adddish <name> [tags...]")
				continue
			}
			report(a.AddDish(ctx, args[0], args[1:]))

		case "deldish":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: deldish <id>")
				continue
			}
			report(a.DeleteDish(ctx, args[0]))

		case "plans":
			report(a.Plans(ctx))

		case "newplan":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: newplan <monday YYYY-MM-DD>")
				continue
			}
			report(a.NewPlan(ctx, args[0]))

		case "assign":
			if len(args) != 4 {
				fmt.Fprintln(out, "Usage: assign <plan> <date> <meal> <dish>")
				continue
			}
			report(a.Assign(ctx, args[0], args[1], args[2], args[3]))

		case "lock":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: lock <plan>")
				continue
			}
			report(a.Lock(ctx, args[0]))

		case "unlock":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: unlock <plan>")
				continue
			}
			report(a.Unlock(ctx, args[0]))

		case "forceunlock":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: forceunlock <plan>")
				continue
			}
			report(a.ForceUnlock(ctx, args[0]))

		case "proposals":
			report(a.Proposals(ctx))

		case "propose":
			if len(args) != 2 {
				fmt.Fprintln(out, "Usage: propose <date> <breakfast|lunch|dinner>")
				continue
			}
			report(a.Propose(ctx, args[0], args[1]))

		case "vote":
			if len(args) != 2 {
				fmt.Fprintln(out, "Usage: vote <id> approve|reject")
				continue
			}
			report(a.Vote(ctx, args[0], args[1]))

		case "withdraw":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: withdraw <id>")
				continue
			}
			report(a.Withdraw(ctx, args[0]))

		case "dismiss":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: dismiss <id>")
				continue
			}
			report(a.Dismiss(ctx, args[0]))

		case "attention":
			report(a.Attention(ctx))

		case "retry":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: retry <entity-id>")
				continue
			}
			report(a.Retry(ctx, args[0]))

		case "discard":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: discard <entity-id>")
				continue
			}
			report(a.Discard(ctx, args[0]))

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}
	}
}
