// Package scoring holds the pure functions that turn tokens into points.
package scoring

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scanquest/orchestrator/internal/models"
)

// Base value by rating (1-5). Out-of-range ratings fall back to rating 1.
var ratingValues = map[int]int{
	1: 100,
	2: 500,
	3: 1000,
	4: 5000,
	5: 10000,
}

// Multiplier by memory type. Unknown types default to 1.
var typeMultipliers = map[string]float64{
	"Personal":  1.0,
	"Business":  3.0,
	"Technical": 5.0,
}

var groupSuffixRe = regexp.MustCompile(`(?i)\s*\(x(\d+)\)\s*$`)

// Value computes the point value of a token from its rating and memory type,
// floored to an integer.
func Value(rating int, memoryType string) int {
	base, ok := ratingValues[rating]
	if !ok {
		base = ratingValues[1]
	}
	mult, ok := typeMultipliers[memoryType]
	if !ok {
		mult = 1.0
	}
	return int(float64(base) * mult)
}

// TokenValue computes the point value of a catalog token
func TokenValue(t models.Token) int {
	return Value(t.ValueRating, t.MemoryType)
}

// ParseGroupMultiplier extracts a trailing "(xN)" multiplier from a group
// label. Labels without a recognizable suffix yield 1; malformed suffixes are
// treated as absent rather than errors (permissive data entry).
func ParseGroupMultiplier(label string) int {
	m := groupSuffixRe.FindStringSubmatch(label)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ExtractGroupID strips the multiplier suffix from a group label and trims
// whitespace. Returns "" when the label is empty or nothing remains.
func ExtractGroupID(label string) string {
	return strings.TrimSpace(groupSuffixRe.ReplaceAllString(label, ""))
}

// GroupComplete reports whether a team's accepted-token set covers every
// member of the group. Groups need at least two members to be completable.
func GroupComplete(members []models.Token, accepted map[string]bool) bool {
	if len(members) < 2 {
		return false
	}
	for _, t := range members {
		if !accepted[t.ID] {
			return false
		}
	}
	return true
}

// GroupBonus computes the completion bonus for a group. Zero unless the group
// is complete for the team; otherwise (multiplier-1) times the summed member
// values, so an (x3) group pays out twice its base sum on top of the per-token
// points already awarded.
func GroupBonus(members []models.Token, accepted map[string]bool) int {
	if !GroupComplete(members, accepted) {
		return 0
	}
	multiplier := 1
	sum := 0
	for _, t := range members {
		if t.GroupMultiplier > multiplier {
			multiplier = t.GroupMultiplier
		}
		sum += TokenValue(t)
	}
	return (multiplier - 1) * sum
}
