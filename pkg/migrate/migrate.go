// Package migrate applies versioned SQL schema files to the sandbox
// database.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimburion/providerdesk/pkg/observability/logger"
)

// Directions accepted by Run.
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionStatus = "status"
)

const defaultSteps = 1

// Applied is a migration recorded in the metadata table.
type Applied struct {
	Version   int64
	Name      string
	AppliedAt time.Time
}

// Status lists applied and pending migrations, both by ascending version.
type Status struct {
	Applied []Applied
	Pending []Migration
}

// Current returns the highest applied version, or 0.
func (s *Status) Current() int64 {
	if s == nil || len(s.Applied) == 0 {
		return 0
	}
	return s.Applied[len(s.Applied)-1].Version
}

// Operations is implemented by Manager.
type Operations interface {
	Up(ctx context.Context) (int, error)
	Down(ctx context.Context, steps int) (int, error)
	Status(ctx context.Context) (*Status, error)
}

// Options configures Run.
type Options struct {
	// Timeout bounds the whole command. Zero means one minute.
	Timeout time.Duration
	Logger  logger.Logger
}

// ParseArgs parses [up|down|status] [steps], defaulting to up and one step.
func ParseArgs(args []string) (string, int, error) {
	direction := DirectionUp
	if len(args) > 0 {
		direction = args[0]
	}
	steps := defaultSteps
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("invalid down steps %q", args[1])
		}
		steps = parsed
	}
	switch direction {
	case DirectionUp, DirectionDown, DirectionStatus:
		return direction, steps, nil
	default:
		return "", 0, errors.New("usage: migrate [up|down|status] [steps]")
	}
}

// Run executes one direction against ops and logs the outcome. The status
// is returned for every direction so callers can print it.
func Run(ctx context.Context, ops Operations, direction string, steps int, opts Options) (*Status, error) {
	if ops == nil {
		return nil, errors.New("migration operations are required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch direction {
	case DirectionUp:
		applied, err := ops.Up(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("migrations applied", "count", applied)
	case DirectionDown:
		if steps <= 0 {
			return nil, errors.New("steps must be greater than zero")
		}
		reverted, err := ops.Down(ctx, steps)
		if err != nil {
			return nil, err
		}
		log.Info("migrations reverted", "count", reverted, "steps", steps)
	case DirectionStatus:
	default:
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}

	status, err := ops.Status(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("migration status", "current", status.Current(), "pending", len(status.Pending))
	return status, nil
}
