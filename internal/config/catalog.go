package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Category code 99 is the catalogue's "other" bucket.
const CategoryOther = 99

// DefaultCategories returns the best-seller slugs scraped by default, in
// crawl order, mapped to catalogue category codes.
func DefaultCategories() []types.Category {
	return []types.Category{
		{Slug: "digital-text", Code: 2},
		{Slug: "automotive", Code: CategoryOther},
		{Slug: "baby", Code: CategoryOther},
		{Slug: "beauty", Code: 4},
		{Slug: "apparel", Code: 4},
		{Slug: "fashion", Code: 4},
		{Slug: "computers", Code: 3},
		{Slug: "diy", Code: CategoryOther},
		{Slug: "dvd", Code: 6},
		{Slug: "food-beverage", Code: CategoryOther},
		{Slug: "gift-cards", Code: CategoryOther},
		{Slug: "hpc", Code: 5},
		{Slug: "hobby", Code: CategoryOther},
		{Slug: "kitchen", Code: CategoryOther},
		{Slug: "industrial", Code: CategoryOther},
		{Slug: "books", Code: 2},
		{Slug: "jewelry", Code: CategoryOther},
		{Slug: "appliances", Code: 3},
		{Slug: "music", Code: 7},
		{Slug: "musical-instruments", Code: 7},
		{Slug: "office-products", Code: CategoryOther},
		{Slug: "pet-supplies", Code: CategoryOther},
		{Slug: "instant-video", Code: 6},
		{Slug: "shoes", Code: 8},
		{Slug: "toys", Code: 9},
		{Slug: "videogames", Code: 9},
		{Slug: "watch", Code: 3},
	}
}

// DefaultSellers returns the seller ids generated products are assigned to.
func DefaultSellers() []string {
	return []string{
		"483ece19-0a02-4cd1-bf74-0816e1020308",
		"33a64b8d-a4cd-4bfb-83f8-e587fe68bd7d",
		"6daac428-9d9a-454d-af17-3f0187e83593",
		"00946feb-77d0-4134-be0c-ada8a3860991",
		"22ab69a6-ee13-427e-a56e-5021bb407e20",
		"662f55f5-cc20-43e2-8389-81b2381bb061",
		"2867993f-503f-45ba-9cbc-8560999d7db8",
	}
}

// SelectCategories narrows the catalogue to slugs, keeping table order.
func (c *Config) SelectCategories(slugs []string) error {
	want := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		want[s] = true
	}

	var kept []types.Category
	for _, cat := range c.Catalog.Categories {
		if want[cat.Slug] {
			kept = append(kept, cat)
			delete(want, cat.Slug)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for s := range want {
			unknown = append(unknown, s)
		}
		sort.Strings(unknown)
		return fmt.Errorf("unknown categories: %s", strings.Join(unknown, ", "))
	}

	c.Catalog.Categories = kept
	return nil
}
