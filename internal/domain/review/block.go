package review

import (
	"encoding"
	"encoding/json"
	"fmt"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/samber/lo"
)

// BlockType is the kind of a drill block.
type BlockType int

const (
	BlockWarmup  BlockType = iota + 1 // Opening cards of a lesson.
	BlockNewOnly                      // New material from the lesson only.
	BlockMixed                        // New material followed by reviews.
)

var (
	blockNames  = [...]string{BlockWarmup: "warmup", BlockNewOnly: "new_only", BlockMixed: "mixed"}
	blockByName = map[string]BlockType{
		"warmup":   BlockWarmup,
		"new_only": BlockNewOnly,
		"mixed":    BlockMixed,
	}
)

var (
	_ fmt.Stringer             = BlockType(0)
	_ json.Marshaler           = BlockType(0)
	_ json.Unmarshaler         = (*BlockType)(nil)
	_ encoding.TextMarshaler   = BlockType(0)
	_ encoding.TextUnmarshaler = (*BlockType)(nil)
)

func (t BlockType) isValid() bool {
	return t >= BlockWarmup && t <= BlockMixed
}

// String returns the name of the block type, or "BlockType(n)".
func (t BlockType) String() string {
	if t.isValid() {
		return blockNames[t]
	}
	return fmt.Sprintf("BlockType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t BlockType) MarshalText() ([]byte, error) {
	if !t.isValid() {
		return nil, fmt.Errorf("invalid block type: %d", int(t))
	}
	return []byte(blockNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *BlockType) UnmarshalText(text []byte) error {
	v, ok := blockByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid block type: %q", text)
	}
	*t = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t BlockType) MarshalJSON() ([]byte, error) {
	text, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *BlockType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid block type: %s", data)
	}
	return t.UnmarshalText([]byte(str))
}

// DrillBlock is an ordered group of cards drilled together.
type DrillBlock struct {
	Type  BlockType             `json:"type"`
	Cards []domain.SentenceCard `json:"cards"`
}

// CardIDs returns the IDs of the block's cards in order.
func (b DrillBlock) CardIDs() []string {
	return lo.Map(b.Cards, func(card domain.SentenceCard, _ int) string {
		return card.ID
	})
}
