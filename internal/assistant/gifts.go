package assistant

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// MaxGiftIdeas caps the number of recommendations returned.
const MaxGiftIdeas = 10

// Gift is one catalog entry. AgeGroup is "min-max" (inclusive) or empty for
// any age; Gender is "male", "female", "unisex" or empty.
type Gift struct {
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	PriceRange string   `json:"price_range"`
	AgeGroup   string   `json:"age_group,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	Interests  []string `json:"interests,omitempty"`
	Popularity int      `json:"popularity"`
}

// GiftCriteria narrows a recommendation. Zero fields match everything.
type GiftCriteria struct {
	Age       int
	Gender    string
	Interests []string
}

var giftCatalog = []Gift{
	{Title: "E-reader", Category: "electronics", PriceRange: "$100-150", AgeGroup: "16-80", Gender: "unisex", Interests: []string{"reading", "travel"}, Popularity: 92},
	{Title: "Noise-cancelling headphones", Category: "electronics", PriceRange: "$150-300", AgeGroup: "14-60", Gender: "unisex", Interests: []string{"music", "travel"}, Popularity: 95},
	{Title: "Cooking class voucher", Category: "experience", PriceRange: "$60-120", AgeGroup: "18-70", Interests: []string{"cooking"}, Popularity: 78},
	{Title: "Hardcover classics set", Category: "books", PriceRange: "$40-80", AgeGroup: "12-90", Gender: "unisex", Interests: []string{"reading"}, Popularity: 70},
	{Title: "Trail running vest", Category: "sports", PriceRange: "$50-90", AgeGroup: "18-55", Gender: "unisex", Interests: []string{"running", "outdoors"}, Popularity: 64},
	{Title: "Skincare gift box", Category: "beauty", PriceRange: "$30-70", AgeGroup: "18-65", Gender: "female", Interests: []string{"wellness"}, Popularity: 81},
	{Title: "Grooming kit", Category: "beauty", PriceRange: "$30-60", AgeGroup: "18-70", Gender: "male", Interests: []string{"wellness"}, Popularity: 68},
	{Title: "Board game night bundle", Category: "toys", PriceRange: "$40-60", AgeGroup: "10-99", Gender: "unisex", Interests: []string{"games", "friends"}, Popularity: 74},
	{Title: "LEGO creator set", Category: "toys", PriceRange: "$30-100", AgeGroup: "6-14", Gender: "unisex", Interests: []string{"building", "games"}, Popularity: 88},
	{Title: "Specialty coffee subscription", Category: "food", PriceRange: "$25-45/month", AgeGroup: "18-99", Gender: "unisex", Interests: []string{"coffee"}, Popularity: 83},
	{Title: "Hot air balloon ride", Category: "experience", PriceRange: "$200-350", AgeGroup: "12-75", Gender: "unisex", Interests: []string{"travel", "outdoors"}, Popularity: 60},
	{Title: "Leather weekender bag", Category: "fashion", PriceRange: "$120-250", AgeGroup: "25-70", Gender: "unisex", Interests: []string{"travel"}, Popularity: 58},
	{Title: "Indoor herb garden", Category: "home", PriceRange: "$40-90", AgeGroup: "20-90", Gender: "unisex", Interests: []string{"cooking", "gardening"}, Popularity: 66},
	{Title: "Vinyl record player", Category: "electronics", PriceRange: "$90-200", AgeGroup: "16-80", Gender: "unisex", Interests: []string{"music"}, Popularity: 77},
}

// GiftIdeas returns up to MaxGiftIdeas gifts from the built-in catalog that
// match c, most popular first.
func GiftIdeas(c GiftCriteria) []Gift {
	return RecommendGifts(giftCatalog, c)
}

// RecommendGifts filters catalog by c. A gift matches when c.Age falls in
// its age group, its gender is c.Gender or unisex, and it carries every
// requested interest.
func RecommendGifts(catalog []Gift, c GiftCriteria) []Gift {
	var out []Gift
	for _, g := range catalog {
		if c.Age > 0 && !inAgeGroup(g.AgeGroup, c.Age) {
			continue
		}
		if c.Gender != "" && g.Gender != "" && g.Gender != "unisex" && !strings.EqualFold(g.Gender, c.Gender) {
			continue
		}
		if !hasInterests(g.Interests, c.Interests) {
			continue
		}
		out = append(out, g)
	}
	slices.SortStableFunc(out, func(a, b Gift) int { return cmp.Compare(b.Popularity, a.Popularity) })
	if len(out) > MaxGiftIdeas {
		out = out[:MaxGiftIdeas]
	}
	return out
}

func inAgeGroup(group string, age int) bool {
	if group == "" {
		return true
	}
	lo, hi, ok := strings.Cut(group, "-")
	if !ok {
		return false
	}
	minAge, err1 := strconv.Atoi(strings.TrimSpace(lo))
	maxAge, err2 := strconv.Atoi(strings.TrimSpace(hi))
	return err1 == nil && err2 == nil && age >= minAge && age <= maxAge
}

func hasInterests(have, want []string) bool {
	for _, w := range want {
		if !slices.ContainsFunc(have, func(h string) bool { return strings.EqualFold(h, w) }) {
			return false
		}
	}
	return true
}
