package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Payload is the free-form data attached to a notification. Accessors never
// fail: missing or mistyped fields fall back to the supplied default.
type Payload map[string]interface{}

// ParsePayload decodes a stored payload. Malformed input yields an empty payload.
func ParsePayload(raw string) Payload {
	p := Payload{}
	if raw == "" {
		return p
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}
	}
	return p
}

func (p Payload) Encode() string {
	if p == nil {
		return "{}"
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (p Payload) GetString(key, def string) string {
	if p == nil {
		return def
	}
	val, ok := p[key]
	if !ok {
		return def
	}
	switch v := val.(type) {
	case string:
		if v == "" {
			return def
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return def
	}
}

func (p Payload) GetInt64(key string, def int64) int64 {
	if p == nil {
		return def
	}
	val, ok := p[key]
	if !ok {
		return def
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

func (p Payload) GetFloat(key string, def float64) float64 {
	if p == nil {
		return def
	}
	switch v := p[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

func (p Payload) GetTime(key string) time.Time {
	if p == nil {
		return time.Time{}
	}
	val, ok := p[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			t, err = time.Parse("2006-01-02", v)
			if err != nil {
				return time.Time{}
			}
		}
		return t
	default:
		return time.Time{}
	}
}

// DayAvailability is one calendar day of a room type's inventory.
type DayAvailability struct {
	Date      time.Time `json:"date"`
	Total     int       `json:"total"`
	Booked    int       `json:"booked"`
	Available int       `json:"available"`
}

type AvailabilityResult struct {
	Available      bool `json:"available"`
	AvailableRooms int  `json:"available_rooms"`
}
