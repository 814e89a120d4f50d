// Package bootstrap verifies that the credentials and backing services the
// process needs are available before it starts serving.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

type Result struct {
	Name     string
	Attempts int
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

// Runner gives each check a fixed number of attempts with a constant pause
// between them.
type Runner struct {
	Attempts int
	Pause    time.Duration
	Log      *zap.Logger
}

func NewRunner(attempts int, pause time.Duration, log *zap.Logger) *Runner {
	if attempts < 1 {
		attempts = 3
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Runner{Attempts: attempts, Pause: pause, Log: log}
}

// Run executes checks in order. It stops early only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		res := Result{Name: c.Name}
		for res.Attempts < r.Attempts {
			res.Attempts++
			res.Err = c.Run(ctx)
			if res.Err == nil {
				break
			}

			r.Log.Warn("check failed",
				zap.String("check", c.Name),
				zap.Int("attempt", res.Attempts),
				zap.Int("of", r.Attempts),
				zap.Error(res.Err),
			)

			if res.Attempts < r.Attempts && !sleep(ctx, r.Pause) {
				res.Err = ctx.Err()
				break
			}
		}
		results = append(results, res)

		if ctx.Err() != nil {
			break
		}
	}

	return results
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Failed returns the results that never passed.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Report writes one line per result and a summary.
func Report(w io.Writer, results []Result) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	for _, r := range results {
		if r.OK() {
			green.Fprint(w, "  ✔ ")
			fmt.Fprintf(w, "%s", r.Name)
		} else {
			red.Fprint(w, "  ✘ ")
			fmt.Fprintf(w, "%s: %v", r.Name, r.Err)
		}
		gray.Fprintf(w, " (%d attempt%s)\n", r.Attempts, plural(r.Attempts))
	}

	if failed := Failed(results); len(failed) > 0 {
		red.Fprintf(w, "%d of %d checks failed\n", len(failed), len(results))
		return
	}

	green.Fprintf(w, "all %d checks passed\n", len(results))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// RequireSet fails while missing() reports unset names.
func RequireSet(name string, missing func() []string) Check {
	return Check{
		Name: name,
		Run: func(context.Context) error {
			if m := missing(); len(m) > 0 {
				return fmt.Errorf("missing %s", strings.Join(m, ", "))
			}
			return nil
		},
	}
}
