package models

import "time"

type HostEarning struct {
	ID          int64     `json:"id"`
	HostID      int64     `json:"host_id"`
	BookingID   int64     `json:"booking_id"`
	PropertyID  int64     `json:"property_id"`
	GrossAmount float64   `json:"gross_amount"`
	PlatformFee float64   `json:"platform_fee"`
	TaxAmount   float64   `json:"tax_amount"`
	NetAmount   float64   `json:"net_amount"`
	Status      string    `json:"status"` // approved, pending, rejected
	EarnedDate  time.Time `json:"earned_date"`
	PayoutID    *int64    `json:"payout_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type HostPayout struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	HostID        int64     `json:"host_id"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	TotalEarnings float64   `json:"total_earnings"`
	TotalFees     float64   `json:"total_fees"`
	TotalTax      float64   `json:"total_tax"`
	NetAmount     float64   `json:"net_amount"`
	EarningsCount int       `json:"earnings_count"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// PayoutPeriod is a closed calendar-month window [Start, End].
type PayoutPeriod struct {
	Start time.Time
	End   time.Time
}

// PreviousMonth returns the calendar month before the one containing now.
// End is the last nanosecond of that month.
func PreviousMonth(now time.Time) PayoutPeriod {
	now = now.UTC()
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfThis.AddDate(0, -1, 0)
	return PayoutPeriod{Start: start, End: firstOfThis.Add(-time.Nanosecond)}
}

// Sum folds earnings into payout totals.
func (p *HostPayout) Sum(earnings []*HostEarning) {
	p.TotalEarnings, p.TotalFees, p.TotalTax, p.NetAmount = 0, 0, 0, 0
	for _, e := range earnings {
		p.TotalEarnings += e.GrossAmount
		p.TotalFees += e.PlatformFee
		p.TotalTax += e.TaxAmount
		p.NetAmount += e.NetAmount
	}
	p.EarningsCount = len(earnings)
}
