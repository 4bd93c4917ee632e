package srs

import (
	"errors"
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
)

// Common errors
var (
	ErrNilState     = errors.New("mastery state cannot be nil")
	ErrEmptyCardID  = errors.New("card ID cannot be empty")
	ErrStateInvalid = errors.New("mastery state is inconsistent")
)

// Service defines the interface for mastery and decay calculations.
// Every method is pure: inputs are never modified.
type Service interface {
	// RecordExposure returns the state after cardID was shown at now.
	RecordExposure(state *domain.MasteryState, cardID string, now time.Time) (*domain.MasteryState, error)

	// MarkCompleted returns the state with its completion time set, keeping
	// an existing completion time.
	MarkCompleted(state *domain.MasteryState, now time.Time) (*domain.MasteryState, error)

	// ResolveFlower derives the flower visual. A nil state is a lesson that
	// was never shown.
	ResolveFlower(state *domain.MasteryState, now time.Time) domain.FlowerVisual

	// DescribeLadder derives the ladder metrics. A nil state yields empty metrics.
	DescribeLadder(state *domain.MasteryState, now time.Time) LadderMetrics

	// Params returns the parameters the service was built with.
	Params() *Params
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new service with custom parameters.
// The parameters are validated.
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		return nil, ErrInvalidParams
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &defaultService{
		params: params,
	}, nil
}

// RecordExposure implements Service.
func (s *defaultService) RecordExposure(
	state *domain.MasteryState,
	cardID string,
	now time.Time,
) (*domain.MasteryState, error) {
	if state == nil {
		return nil, ErrNilState
	}
	if cardID == "" {
		return nil, ErrEmptyCardID
	}
	if err := state.Validate(); err != nil {
		return nil, errors.Join(ErrStateInvalid, err)
	}

	return calculateNextMastery(state, cardID, now, s.params), nil
}

// MarkCompleted implements Service.
func (s *defaultService) MarkCompleted(state *domain.MasteryState, now time.Time) (*domain.MasteryState, error) {
	if state == nil {
		return nil, ErrNilState
	}
	return calculateCompletion(state, now), nil
}

// ResolveFlower implements Service.
func (s *defaultService) ResolveFlower(state *domain.MasteryState, now time.Time) domain.FlowerVisual {
	return calculateFlower(state, now, s.params)
}

// DescribeLadder implements Service.
func (s *defaultService) DescribeLadder(state *domain.MasteryState, now time.Time) LadderMetrics {
	return describeLadder(state, now, s.params.IntervalLadder)
}

// Params implements Service.
func (s *defaultService) Params() *Params {
	return s.params
}
