package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"ledgerq/internal/core"
	"ledgerq/internal/engine"
	"ledgerq/internal/format"
)

const prompt = "ledgerq> "

var (
	errc  = color.New(color.BgRed, color.FgWhite)
	addc  = color.New(color.FgGreen)
	delc  = color.New(color.FgRed)
	aic   = color.New(color.BgCyan, color.FgBlack)
	datec = color.New(color.BgYellow, color.FgBlack)
	helpc = color.New(color.FgCyan)
)

type querier interface {
	SubmitQuery(ctx context.Context, text string, rc core.RequestContext) engine.Response
}

// repl reads one query per line. Lines starting with ':' are commands.
type repl struct {
	engine querier
	out    io.Writer
	now    func() time.Time

	// today overrides the clock once set with :date.
	today core.Date
}

func (r *repl) referenceDate() core.Date {
	if !r.today.IsZero() {
		return r.today
	}
	return core.DateOf(r.now())
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	s := bufio.NewScanner(in)
	fmt.Fprint(r.out, prompt)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, ":"):
			if quit := r.command(line); quit {
				return nil
			}
		default:
			r.query(ctx, line)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(r.out, prompt)
	}
	return s.Err()
}

// command handles a ':' line and reports whether the loop should end.
func (r *repl) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":q", ":quit", ":exit":
		return true
	case ":date":
		if len(fields) == 1 {
			datec.Fprintf(r.out, " %s ", r.referenceDate())
			fmt.Fprintln(r.out)
			return false
		}
		d, err := core.ParseDate(fields[1])
		if err != nil {
			errc.Fprintf(r.out, " date must be YYYY-MM-DD ")
			fmt.Fprintln(r.out)
			return false
		}
		r.today = d
		datec.Fprintf(r.out, " today is %s ", d)
		fmt.Fprintln(r.out)
	case ":help":
		helpc.Fprintln(r.out, "Ask in plain English, e.g. \"how much on groceries this month\" or \"add $12 coffee\".")
		helpc.Fprintln(r.out, ":date [YYYY-MM-DD]  show or set the reference date")
		helpc.Fprintln(r.out, ":quit               leave")
	default:
		errc.Fprintf(r.out, " unknown command %s ", fields[0])
		fmt.Fprintln(r.out)
	}
	return false
}

func (r *repl) query(ctx context.Context, text string) {
	rc := core.RequestContext{
		Today:     r.referenceDate(),
		Now:       r.now(),
		RequestID: uuid.NewString(),
	}
	resp := r.engine.SubmitQuery(ctx, text, rc)

	if resp.Result.Source == core.SourceFallback {
		aic.Fprint(r.out, "[AI]")
		fmt.Fprint(r.out, " ")
	}
	if resp.Result.Err != nil {
		errc.Fprint(r.out, resp.Narrative)
	} else {
		fmt.Fprint(r.out, resp.Narrative)
	}
	fmt.Fprintln(r.out)

	for _, d := range resp.Deltas {
		c, sign := addc, "+"
		if d.Op == core.DeltaDeleted {
			c, sign = delc, "-"
		}
		c.Fprintf(r.out, "  %s %s  %-8.8s %10s  %s\n",
			sign, d.Record.Date, d.Record.ID, format.Money(d.Record.Amount), d.Record.Description)
	}
}
