// Package schedule validates cron expressions and answers when a job runs
// next. It never executes anything.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Clock wraps one parsed standard 5-field cron expression.
type Clock struct {
	expr     string
	schedule cron.Schedule
}

// Parse validates a standard 5-field cron expression and returns a clock for
// it.
func Parse(expr string) (*Clock, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &Clock{expr: expr, schedule: schedule}, nil
}

// Validate reports whether expr is a valid standard cron expression.
func Validate(expr string) error {
	_, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Expression returns the raw expression the clock was built from.
func (c *Clock) Expression() string {
	return c.expr
}

// Next returns the first activation strictly after the given time.
func (c *Clock) Next(after time.Time) time.Time {
	return c.schedule.Next(after)
}

// Describe renders the expression for humans. Common shapes get plain
// English; anything else falls back to the raw expression.
func (c *Clock) Describe() string {
	fields := strings.Fields(c.expr)
	if len(fields) != 5 {
		return c.expr
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	if dom != "*" || month != "*" || dow != "*" {
		return c.expr
	}

	// "*/N * * * *" and "* * * * *"
	if hour == "*" {
		if minute == "*" {
			return "every minute"
		}
		if n, ok := stepOf(minute); ok {
			if n == 1 {
				return "every minute"
			}
			return fmt.Sprintf("every %d minutes", n)
		}
		return c.expr
	}

	// "M H * * *" → daily at H:M
	m, merr := strconv.Atoi(minute)
	if merr != nil {
		return c.expr
	}
	if h, err := strconv.Atoi(hour); err == nil {
		return fmt.Sprintf("daily at %02d:%02d", h, m)
	}
	if n, ok := stepOf(hour); ok {
		if n == 1 {
			return fmt.Sprintf("hourly at minute %d", m)
		}
		return fmt.Sprintf("every %d hours", n)
	}
	return c.expr
}

func stepOf(field string) (int, bool) {
	if !strings.HasPrefix(field, "*/") {
		return 0, false
	}
	n, err := strconv.Atoi(field[2:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
