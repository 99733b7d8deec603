// Package paste delivers a history entry into another application through
// an ordered chain of best-effort strategies.
package paste

import (
	"context"
	"errors"

	"github.com/berrythewa/clipstack/internal/types"
)

var (
	// ErrPermissionDenied is returned when accessibility access is missing
	ErrPermissionDenied = errors.New("accessibility permission not granted")
	// ErrAllStrategiesExhausted is returned when no strategy succeeded
	ErrAllStrategiesExhausted = errors.New("could not paste automatically, paste manually")
	// ErrPasteInProgress is returned when a paste is already running
	ErrPasteInProgress = errors.New("a paste is already in progress")
	// ErrSelfFrontmost is a strategy failure: this tool held focus
	ErrSelfFrontmost = errors.New("this tool is frontmost")
)

// Strategy names
const (
	StrategyMenu      = "menu"
	StrategyKeystroke = "keystroke"
	StrategyScript    = "script"
	StrategyHelper    = "helper"
	StrategyResponder = "responder"
)

// DefaultOrder is the chain order used when none is configured
var DefaultOrder = []string{StrategyMenu, StrategyKeystroke, StrategyScript, StrategyHelper, StrategyResponder}

// Attempt is everything a strategy needs for one delivery
type Attempt struct {
	Entry    *types.Entry
	Target   types.App
	Override Override
}

// Strategy is one way of making the target paste the pasteboard
type Strategy interface {
	Name() string

	// Applies reports whether the strategy is worth trying for a
	Applies(a Attempt) bool

	// Deliver performs the attempt; nil means the paste was issued
	Deliver(ctx context.Context, a Attempt) error
}
