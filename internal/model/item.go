package model

import "time"

// InventoryItem is a stock-keeping unit with a single quantity counter.
type InventoryItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Quantity    int       `json:"quantity"`
	MinQuantity int       `json:"minQuantity"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CreatedBy   string    `json:"createdBy"`
	HasPhoto    bool      `json:"hasPhoto"`
}

// LowStock reports whether the quantity has dropped to the minimum.
func (i *InventoryItem) LowStock() bool {
	return i.Quantity <= i.MinQuantity
}

// Categories lists the accepted item categories.
var Categories = []string{
	"Electronics",
	"Mechanical",
	"Tools",
	"Sensors",
	"Motors",
	"Cables",
	"Fasteners",
	"Other",
}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
