package models

import "time"

type Coupon struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"` // percent, fixed
	DiscountValue float64   `json:"discount_value"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	IsActive      bool      `json:"is_active"`
	UsageLimit    int       `json:"usage_limit"` // 0 means unlimited
	UsedCount     int       `json:"used_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

// Usable reports whether the coupon may be applied at instant now.
// The validity window is [StartDate, EndDate).
func (c *Coupon) Usable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if now.Before(c.StartDate) || !now.Before(c.EndDate) {
		return false
	}
	return c.UsageLimit == 0 || c.UsedCount < c.UsageLimit
}

// Discount returns the discount the coupon grants on amount.
func (c *Coupon) Discount(amount float64) (percent, value float64) {
	switch c.DiscountType {
	case DiscountPercent:
		percent = c.DiscountValue
		value = amount * c.DiscountValue / 100
	case DiscountFixed:
		value = c.DiscountValue
	}
	if value > amount {
		value = amount
	}
	if value < 0 {
		value = 0
	}
	return percent, value
}
