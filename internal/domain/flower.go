package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// FlowerState is the visual stage of a lesson's mastery indicator.
type FlowerState int

const (
	FlowerLocked  FlowerState = iota + 1 // Lesson not yet available. Assigned by callers only.
	FlowerSeed                           // Little or no mastery.
	FlowerSprout                         // Partial mastery.
	FlowerBloom                          // Strong mastery with full health.
	FlowerWilting                        // Overdue, health decaying.
	FlowerWilted                         // Health at the floor.
	FlowerGone                           // Unseen for too long.
)

var (
	flowerNames = [...]string{
		FlowerLocked:  "locked",
		FlowerSeed:    "seed",
		FlowerSprout:  "sprout",
		FlowerBloom:   "bloom",
		FlowerWilting: "wilting",
		FlowerWilted:  "wilted",
		FlowerGone:    "gone",
	}
	flowerByName = map[string]FlowerState{
		"locked":  FlowerLocked,
		"seed":    FlowerSeed,
		"sprout":  FlowerSprout,
		"bloom":   FlowerBloom,
		"wilting": FlowerWilting,
		"wilted":  FlowerWilted,
		"gone":    FlowerGone,
	}
)

var (
	_ fmt.Stringer             = FlowerState(0)
	_ json.Marshaler           = FlowerState(0)
	_ json.Unmarshaler         = (*FlowerState)(nil)
	_ encoding.TextMarshaler   = FlowerState(0)
	_ encoding.TextUnmarshaler = (*FlowerState)(nil)
)

func (s FlowerState) isValid() bool {
	return s >= FlowerLocked && s <= FlowerGone
}

// String returns the lower-case name of the state, or "FlowerState(n)".
func (s FlowerState) String() string {
	if s.isValid() {
		return flowerNames[s]
	}
	return fmt.Sprintf("FlowerState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s FlowerState) MarshalText() ([]byte, error) {
	if !s.isValid() {
		return nil, fmt.Errorf("invalid flower state: %d", int(s))
	}
	return []byte(flowerNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *FlowerState) UnmarshalText(text []byte) error {
	v, ok := flowerByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid flower state: %q", text)
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. FlowerState serializes as a JSON string.
func (s FlowerState) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlowerState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid flower state: %s", data)
	}
	return s.UnmarshalText([]byte(str))
}

// FlowerVisual is the derived presentation of a lesson's mastery.
type FlowerVisual struct {
	State           FlowerState `json:"state"`
	MasteryPercent  float64     `json:"mastery_percent"`
	HealthPercent   float64     `json:"health_percent"`
	ScaleMultiplier float64     `json:"scale_multiplier"`
}
