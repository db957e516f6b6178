// Package scorer computes the lead quality heuristic.
package scorer

import (
	"strconv"
	"strings"

	"github.com/sells-group/leads-cli/internal/normalize"
)

// Score returns the quality score for a normalized row: +40 for email,
// +30 for website, +20 for phone, plus up to +10 from the Rating column
// (rating x 2, capped at 10; unparseable ratings contribute nothing).
func Score(n normalize.Normalized) int {
	score := 0
	if n.Email != "" {
		score += 40
	}
	if n.Website != "" {
		score += 30
	}
	if n.Phone != "" {
		score += 20
	}
	score += ratingBonus(n.Rating)
	return score
}

func ratingBonus(rating string) int {
	rating = strings.TrimSpace(rating)
	if rating == "" {
		return 0
	}
	f, err := strconv.ParseFloat(rating, 64)
	if err != nil {
		return 0
	}
	bonus := int(f * 2)
	if bonus > 10 {
		bonus = 10
	}
	if bonus < 0 {
		bonus = 0
	}
	return bonus
}
