package products

import (
	"time"
)

// Product types. Anything other than BOARD uses the reel weight formula.
const (
	TypeReel  = "REEL"
	TypeBoard = "BOARD"
)

// Product represents a paper product reference record. Dimensions feed the
// unit-weight derivation; they are immutable while a stock transaction runs.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Length    float64   `json:"length"`
	Width     float64   `json:"width"`
	Grams     float64   `json:"grams"`
	Type      string    `json:"type"`
	Packing   float64   `json:"packing"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
