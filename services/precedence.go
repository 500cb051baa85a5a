package services

import (
	"strings"

	"flatsift/models"
)

// Precedence orders backends from most to least trustworthy
type Precedence []string

// DefaultPrecedence is used when no BACKENDS_PRECEDENCE is configured
var DefaultPrecedence = Precedence{"foncia", "seloger", "pap", "leboncoin", "explorimmo", "logicimmo"}

// ParsePrecedence reads a comma separated backend list
func ParsePrecedence(s string) Precedence {
	var p Precedence
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			p = append(p, part)
		}
	}
	if len(p) == 0 {
		return DefaultPrecedence
	}
	return p
}

// Rank returns the trust rank of a backend; higher is more trustworthy.
// Unknown backends rank lowest, at 0.
func (p Precedence) Rank(backend string) int {
	for i, b := range p {
		if b == backend {
			return len(p) - i
		}
	}
	return 0
}

// RankOf ranks a listing by its backend suffix
func (p Precedence) RankOf(l *models.Listing) int {
	return p.Rank(l.Backend())
}
