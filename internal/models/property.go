package models

import "time"

type Property struct {
	ID          int64  `yaml:"id" json:"id"`
	HostID      int64  `yaml:"host_id" json:"host_id"`
	Name        string `yaml:"name" json:"name"`
	IsActive    bool   `yaml:"is_active" json:"is_active"`
	IsPublished bool   `yaml:"is_published" json:"is_published"`
	IsFeatured  bool   `yaml:"-" json:"is_featured"`
	ViewCount   int64  `yaml:"-" json:"view_count"`
	// DiscountPercent is the property-level discount applied at booking time.
	DiscountPercent float64   `yaml:"discount_percent" json:"discount_percent"`
	CreatedAt       time.Time `yaml:"-" json:"created_at"`
	UpdatedAt       time.Time `yaml:"-" json:"updated_at"`
}

type RoomType struct {
	ID         int64     `yaml:"id" json:"id"`
	PropertyID int64     `yaml:"property_id" json:"property_id"`
	Name       string    `yaml:"name" json:"name"`
	TotalRooms int       `yaml:"total_rooms" json:"total_rooms"`
	BasePrice  float64   `yaml:"base_price" json:"base_price"`
	IsActive   bool      `yaml:"is_active" json:"is_active"`
	CreatedAt  time.Time `yaml:"-" json:"created_at"`
	UpdatedAt  time.Time `yaml:"-" json:"updated_at"`
}

type Review struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	BookingID  int64     `json:"booking_id"`
	Rating     float64   `json:"rating"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

// PropertyStats are the rolling figures the featured flag is derived from.
type PropertyStats struct {
	PropertyID          int64
	IsFeatured          bool
	ApprovedReviewCount int
	AverageRating       float64
	BookingCount        int
	ViewCount           int64
	CreatedAt           time.Time
}
