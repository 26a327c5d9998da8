package domain

import "time"

// Area is a subdivision of a plant and the scope of approval grants.
type Area struct {
	ID        string
	PlantID   string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
