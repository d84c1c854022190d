package model

import (
	"encoding/json"
	"time"

	"telegram-commerce-bot/internal/domain"
)

type OrderStatus string

const (
	OrderStatusDraft           OrderStatus = "draft"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Closed reports whether the order is in a terminal state.
func (s OrderStatus) Closed() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// Order is one user's request for a specific product. The product code is
// fixed at creation; Selection carries the display-only choices shown on
// the admin order card.
type Order struct {
	ID        int64
	UserID    int64
	Direction Direction
	Product   Product
	Selection Selection
	Status    OrderStatus
	CreatedAt time.Time
}

func NewOrder(userID int64, product Product, sel Selection) (*Order, error) {
	if userID <= 0 || !product.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	return &Order{
		UserID:    userID,
		Direction: product.Direction(),
		Product:   product,
		Selection: sel,
		Status:    OrderStatusDraft,
		CreatedAt: time.Now(),
	}, nil
}

// Selection is a tagged union of per-direction choices. Exactly one arm is
// set; serialization to JSON happens only at the persistence edge.
type Selection struct {
	Language  *LanguageSelection  `json:"language,omitempty"`
	Yoga      *YogaSelection      `json:"yoga,omitempty"`
	Astrology *AstrologySelection `json:"astrology,omitempty"`
	Mentoring *MentoringSelection `json:"mentoring,omitempty"`
}

type LanguageSelection struct {
	Goal      string `json:"goal"`
	Level     string `json:"level"`
	Frequency string `json:"frequency"`
}

type YogaSelection struct {
	Plan Product `json:"plan"`
}

type AstrologySelection struct {
	Sphere string `json:"sphere"`
	Format string `json:"format"`
}

type MentoringSelection struct {
	Plan string `json:"plan"`
}

// Fact is one display line of the admin order card.
type Fact struct {
	Label string
	Value string
}

// Facts renders the selection as ordered label/value pairs for the order
// card. It carries no behavior beyond display.
func (s Selection) Facts() []Fact {
	switch {
	case s.Language != nil:
		return []Fact{
			{"Goal", s.Language.Goal},
			{"Level", s.Language.Level},
			{"Frequency", s.Language.Frequency},
		}
	case s.Yoga != nil:
		return []Fact{{"Plan", s.Yoga.Plan.Title()}}
	case s.Astrology != nil:
		return []Fact{
			{"Sphere", s.Astrology.Sphere},
			{"Format", s.Astrology.Format},
		}
	case s.Mentoring != nil:
		return []Fact{{"Plan", s.Mentoring.Plan}}
	}
	return nil
}

// MarshalPayload serializes the selection for the JSONB column.
func (s Selection) MarshalPayload() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalPayload restores a selection from the JSONB column.
func UnmarshalPayload(b []byte) (Selection, error) {
	var s Selection
	if len(b) == 0 {
		return s, nil
	}
	err := json.Unmarshal(b, &s)
	return s, err
}
