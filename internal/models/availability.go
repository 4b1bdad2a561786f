package models

import "time"

// Calendar sweeps bookings over the calendar days in [from, to) and returns
// per-day inventory for a room type with total rooms. A booking occupies the
// days in [DateOf(CheckIn), DateOf(CheckOut)); cancelled bookings are ignored.
func Calendar(total int, bookings []*Booking, from, to time.Time) []DayAvailability {
	from, to = DateOf(from), DateOf(to)
	n := daysBetween(from, to)
	if n <= 0 {
		return nil
	}

	delta := make([]int, n+1)
	for _, b := range bookings {
		if b.Status == StatusCancelled {
			continue
		}
		start := daysBetween(from, DateOf(b.CheckIn))
		end := daysBetween(from, DateOf(b.CheckOut))
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		delta[start] += b.RoomsCount
		delta[end] -= b.RoomsCount
	}

	days := make([]DayAvailability, n)
	booked := 0
	for i := 0; i < n; i++ {
		booked += delta[i]
		days[i] = DayAvailability{
			Date:      from.AddDate(0, 0, i),
			Total:     total,
			Booked:    booked,
			Available: total - booked,
		}
	}
	return days
}

// MinAvailable is the binding constraint across days. An empty range yields total.
func MinAvailable(total int, days []DayAvailability) int {
	if len(days) == 0 {
		return total
	}
	min := days[0].Available
	for _, d := range days[1:] {
		if d.Available < min {
			min = d.Available
		}
	}
	return min
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Round(time.Hour).Hours() / 24)
}
