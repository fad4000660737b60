package extinguishers

import (
	"strings"
	"time"
)

// ExpiryClass buckets a maintenance/service expiry date relative to today.
type ExpiryClass string

const (
	ExpiryExpired ExpiryClass = "vencido"
	ExpirySoon    ExpiryClass = "por_vencer"   // 0-30 days
	ExpiryLater   ExpiryClass = "vence_pronto" // 31-90 days
	ExpiryCurrent ExpiryClass = "vigente"      // >90 days
	ExpiryUnknown ExpiryClass = "desconocido"
)

// Expiry is the classification result. Days is the distance in whole days:
// days overdue when expired, days remaining otherwise. Zero for unknown.
type Expiry struct {
	Class ExpiryClass `json:"clase"`
	Days  int         `json:"dias"`
}

// ClassifyExpiry parses an AGC date string, either MM/YYYY (read as the last
// calendar day of that month) or DD/MM/YYYY, and buckets it against today.
// Pure: same inputs, same output.
func ClassifyExpiry(raw string, today time.Time) Expiry {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Expiry{Class: ExpiryUnknown}
	}

	var date time.Time
	if d, err := time.Parse("02/01/2006", s); err == nil {
		date = d
	} else if m, err := time.Parse("01/2006", s); err == nil {
		// last day of that month
		date = m.AddDate(0, 1, -1)
	} else {
		return Expiry{Class: ExpiryUnknown}
	}

	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	days := int(day(date).Sub(day(today)).Hours() / 24)

	switch {
	case days < 0:
		return Expiry{Class: ExpiryExpired, Days: -days}
	case days <= 30:
		return Expiry{Class: ExpirySoon, Days: days}
	case days <= 90:
		return Expiry{Class: ExpiryLater, Days: days}
	default:
		return Expiry{Class: ExpiryCurrent, Days: days}
	}
}
