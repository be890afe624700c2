// README: Geographic value objects shared by listings, demands, offers and actors.
package types

import "strings"

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether no coordinates were supplied.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

type Location struct {
	County string `json:"county"`
	Point  Point  `json:"point"`
}

// SameCounty compares county names case-insensitively; empty never matches.
func SameCounty(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
