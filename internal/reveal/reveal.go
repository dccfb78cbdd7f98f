package reveal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ccranking/internal/components/assert"
	"ccranking/internal/components/chrono"
	"ccranking/internal/components/telemetry"
)

const (
	report_target_advance   = "target.advance"
	report_target_secondary = "target.secondary"
	report_target_measure   = "target.measure"
	report_driver_count     = "driver.count"
	report_driver_state     = "driver.state"
)

var ErrInvalidOptions = errors.New("invalid reveal options")

// Target is something whose content is revealed incrementally, usually a page with
// an infinite scroll list.
//
// note: fault injection point
type Target interface {
	// Measure returns how many items are currently revealed.
	Measure(ctx context.Context) (int, error)
	// Advance triggers more items to load, its effects are only observable after a settle delay.
	Advance(ctx context.Context) error
	// HasSecondaryTrigger reports if an explicit "reveal more" trigger is currently available.
	HasSecondaryTrigger(ctx context.Context) (bool, error)
	TriggerSecondary(ctx context.Context) error
}

type Options struct {
	// TargetCount is the count at which the target is considered saturated.
	TargetCount int
	// MaxAttempts bounds how many unsaturated measurements are tolerated.
	MaxAttempts    int
	SettleDelay    time.Duration
	SecondaryDelay time.Duration
	// FinalDelay lets trailing renders finish after saturation.
	FinalDelay time.Duration
}

func (o Options) validate() error {
	if o.TargetCount < 1 {
		return fmt.Errorf("%w: target count must be positive, got %d", ErrInvalidOptions, o.TargetCount)
	}
	if o.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidOptions, o.MaxAttempts)
	}
	if o.SettleDelay < 0 || o.SecondaryDelay < 0 || o.FinalDelay < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidOptions)
	}
	return nil
}

type State int

const (
	StatePolling State = iota
	StateSaturated
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSaturated:
		return "saturated"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Result struct {
	// FinalCount is the last count that was successfully measured.
	FinalCount   int
	Saturated    bool
	AttemptsUsed int
	State        State
}

type Driver struct {
	clock chrono.API
	tel   telemetry.API
}

func NewDriver(clock chrono.API, tel telemetry.API) Driver {
	assert.NotNil(clock)
	assert.NotNil(tel)
	return Driver{
		clock: clock,
		tel:   telemetry.NewScopedAPI("reveal", tel),
	}
}

// Reveal advances the target until its measured count reaches opts.TargetCount
// (StateSaturated) or opts.MaxAttempts measurements fall short (StateExhausted).
// Exhaustion is not an error, the caller decides what to do with fewer items.
//
// Errors from the target are reported and consume the attempt they happened in, a failed
// measurement keeps the previously observed count. The only errors returned are
// ErrInvalidOptions and ctx.Err().
func (d Driver) Reveal(ctx context.Context, target Target, opts Options) (Result, error) {
	assert.NotNil(target)
	if err := opts.validate(); err != nil {
		return Result{}, err
	}

	result := Result{State: StatePolling}
	for result.State == StatePolling {
		err := target.Advance(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			d.tel.ReportWarning(report_target_advance, err, result.AttemptsUsed)
		}
		if err := d.clock.Sleep(ctx, opts.SettleDelay); err != nil {
			return result, err
		}

		if err := d.triggerSecondary(ctx, target, opts); err != nil {
			return result, err
		}

		count, err := target.Measure(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			d.tel.ReportWarning(report_target_measure, err, result.AttemptsUsed)
		} else {
			result.FinalCount = count
			d.tel.ReportCount(report_driver_count, int64(count))
		}

		if err == nil && count >= opts.TargetCount {
			if err := d.clock.Sleep(ctx, opts.FinalDelay); err != nil {
				return result, err
			}
			result.Saturated = true
			result.State = StateSaturated
			break
		}

		result.AttemptsUsed++
		if result.AttemptsUsed >= opts.MaxAttempts {
			result.State = StateExhausted
		}
	}

	d.tel.ReportDebug(report_driver_state, result.State.String(), result.FinalCount, result.AttemptsUsed)
	return result, nil
}

// triggerSecondary probes for the secondary trigger and uses it when present. Only
// context cancellation is returned, everything else is best-effort.
func (d Driver) triggerSecondary(ctx context.Context, target Target, opts Options) error {
	available, err := target.HasSecondaryTrigger(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.tel.ReportWarning(report_target_secondary, err)
		return nil
	}
	if !available {
		return nil
	}

	err = target.TriggerSecondary(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.tel.ReportWarning(report_target_secondary, err)
		return nil
	}
	return d.clock.Sleep(ctx, opts.SecondaryDelay)
}
