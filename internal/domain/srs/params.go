package srs

import (
	"errors"
	"fmt"

	"github.com/phrazzld/drill-api/internal/domain"
)

// Parameter validation errors
var (
	// ErrInvalidLadder is returned when the interval ladder is empty, contains
	// non-positive values or is not strictly increasing.
	ErrInvalidLadder = errors.New("interval ladder must be non-empty, positive and strictly increasing")

	// ErrInvalidParams is returned when a decay parameter is out of range.
	ErrInvalidParams = errors.New("invalid decay parameters")
)

// DefaultIntervalLadder is the sequence of expected review gaps in days.
var DefaultIntervalLadder = []int{1, 2, 4, 7, 10, 14, 20, 28, 42, 56}

// Params defines all configurable parameters of the decay model
type Params struct {
	// Expected review gaps in days, indexed by interval step
	IntervalLadder []int

	// Memory stability at step 0, in days
	BaseStability float64
	// Stability growth per ladder step
	StabilityMultiplier float64

	// Health floor reached by overdue lessons that are still on screen
	WiltedThreshold float64
	// Days without exposure after which a lesson is gone
	GoneThresholdDays int

	// Unique cards needed for full mastery
	MasteryThreshold int
}

// ParamsConfig allows overriding the default parameters when creating a new
// Params instance. Zero values keep the defaults.
type ParamsConfig struct {
	IntervalLadder      []int
	BaseStability       float64
	StabilityMultiplier float64
	WiltedThreshold     float64
	GoneThresholdDays   int
	MasteryThreshold    int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	ladder := make([]int, len(DefaultIntervalLadder))
	copy(ladder, DefaultIntervalLadder)

	return &Params{
		IntervalLadder:      ladder,
		BaseStability:       0.9,
		StabilityMultiplier: 2.2,
		WiltedThreshold:     0.5,
		GoneThresholdDays:   90,
		MasteryThreshold:    domain.MasteryThreshold,
	}
}

// NewParams creates a new Params instance with custom configuration and
// validates the result.
func NewParams(config ParamsConfig) (*Params, error) {
	params := NewDefaultParams()

	if len(config.IntervalLadder) > 0 {
		params.IntervalLadder = make([]int, len(config.IntervalLadder))
		copy(params.IntervalLadder, config.IntervalLadder)
	}
	if config.BaseStability > 0 {
		params.BaseStability = config.BaseStability
	}
	if config.StabilityMultiplier > 0 {
		params.StabilityMultiplier = config.StabilityMultiplier
	}
	if config.WiltedThreshold > 0 {
		params.WiltedThreshold = config.WiltedThreshold
	}
	if config.GoneThresholdDays > 0 {
		params.GoneThresholdDays = config.GoneThresholdDays
	}
	if config.MasteryThreshold > 0 {
		params.MasteryThreshold = config.MasteryThreshold
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Validate checks the parameters for internal consistency.
func (p *Params) Validate() error {
	if err := ValidateLadder(p.IntervalLadder); err != nil {
		return err
	}
	if p.BaseStability <= 0 {
		return fmt.Errorf("%w: base stability must be positive", ErrInvalidParams)
	}
	if p.StabilityMultiplier < 1 {
		return fmt.Errorf("%w: stability multiplier must be at least 1", ErrInvalidParams)
	}
	if p.WiltedThreshold <= 0 || p.WiltedThreshold >= 1 {
		return fmt.Errorf("%w: wilted threshold must be between 0 and 1", ErrInvalidParams)
	}
	if p.GoneThresholdDays <= p.IntervalLadder[len(p.IntervalLadder)-1] {
		return fmt.Errorf("%w: gone threshold must exceed the longest interval", ErrInvalidParams)
	}
	if p.MasteryThreshold <= 0 {
		return fmt.Errorf("%w: mastery threshold must be positive", ErrInvalidParams)
	}
	return nil
}

// ValidateLadder checks that a ladder is non-empty, positive and strictly increasing.
func ValidateLadder(ladder []int) error {
	if len(ladder) == 0 {
		return ErrInvalidLadder
	}
	for i, days := range ladder {
		if days <= 0 {
			return fmt.Errorf("%w: step %d is %d", ErrInvalidLadder, i, days)
		}
		if i > 0 && days <= ladder[i-1] {
			return fmt.Errorf("%w: step %d (%d) does not exceed step %d (%d)",
				ErrInvalidLadder, i, days, i-1, ladder[i-1])
		}
	}
	return nil
}
