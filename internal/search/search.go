// Package search ranks shops and menu items against a free-text query.
package search

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/beanhop/backend/internal/database"
	"github.com/beanhop/backend/pkg/logger"
)

// DefaultLimit caps each result list when the caller gives none.
const DefaultLimit = 20

const maxSuggestions = 5

// Popular feeds the suggestion list.
var Popular = []string{"Latte", "Espresso", "Cold Brew", "Matcha", "Cappuccino", "Americano", "Mocha", "Croissant"}

// ShopHit is a shop with its relevance score.
type ShopHit struct {
	database.Shop
	Score int `json:"_score"`
}

// ShopRef is the owning shop embedded in an item hit.
type ShopRef struct {
	Name string `json:"name"`
}

// ItemHit is a menu item with its relevance score and display price.
type ItemHit struct {
	database.MenuItem
	Price decimal.Decimal `json:"price"`
	Shops *ShopRef        `json:"shops"`
	Score int             `json:"_score"`
}

type Results struct {
	Shops       []ShopHit `json:"shops"`
	MenuItems   []ItemHit `json:"menu_items"`
	Suggestions []string  `json:"suggestions"`
}

func empty() *Results {
	return &Results{Shops: []ShopHit{}, MenuItems: []ItemHit{}, Suggestions: []string{}}
}

type Service struct {
	repo database.CatalogRepository
	log  *logger.Logger
}

func NewService(repo database.CatalogRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Search never fails. A datastore error is logged and yields empty results.
func (s *Service) Search(ctx context.Context, q string, limit int) *Results {
	query := strings.ToLower(strings.TrimSpace(q))
	if query == "" {
		return empty()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	// Every shop names its items; only active shops are ranked.
	shops, err := s.repo.ListShops(ctx, database.ShopFilter{})
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Error("search: listing shops failed")
		return empty()
	}
	items, err := s.repo.ListMenuItems(ctx, database.MenuFilter{AvailableOnly: true})
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Error("search: listing menu items failed")
		return empty()
	}

	names := make(map[string]string, len(shops))
	active := make([]database.Shop, 0, len(shops))
	for _, shop := range shops {
		names[shop.ID] = shop.Name
		if shop.IsActive {
			active = append(active, shop)
		}
	}

	return &Results{
		Shops:       RankShops(query, active, limit),
		MenuItems:   RankItems(query, items, names, limit),
		Suggestions: Suggest(query),
	}
}

// =============================================================================
// Scoring
// =============================================================================

// ShopScore scores a shop against a lowercased, trimmed query.
func ShopScore(query string, shop database.Shop) int {
	name := strings.ToLower(shop.Name)
	score := 0

	switch {
	case query == name:
		score += 100
	case strings.HasPrefix(name, query):
		score += 80
	case wordMatch(query, name):
		score += 60
	case strings.Contains(name, query):
		score += 40
	}
	if strings.Contains(lowerOpt(shop.Description), query) {
		score += 20
	}
	if strings.Contains(strings.ToLower(shop.Address), query) {
		score += 10
	}

	// typo tolerance
	if score == 0 && float64(overlap(query, name)) >= float64(len([]rune(query)))*0.7 {
		score += 15
	}
	return score
}

// ItemScore scores a menu item against a lowercased, trimmed query.
func ItemScore(query string, item database.MenuItem) int {
	name := strings.ToLower(item.Name)
	score := 0

	switch {
	case query == name:
		score += 100
	case strings.HasPrefix(name, query):
		score += 80
	case strings.Contains(name, query):
		score += 50
	}
	if strings.Contains(lowerOpt(item.Description), query) {
		score += 20
	}
	if strings.Contains(strings.ToLower(item.Category), query) {
		score += 30
	}
	return score
}

func RankShops(query string, shops []database.Shop, limit int) []ShopHit {
	hits := []ShopHit{}
	for _, shop := range shops {
		if score := ShopScore(query, shop); score > 0 {
			hits = append(hits, ShopHit{Shop: shop, Score: score})
		}
	}
	slices.SortStableFunc(hits, func(a, b ShopHit) int { return b.Score - a.Score })
	return truncate(hits, limit)
}

// RankItems ranks items. shopNames resolves the embedded shop name and may be nil.
func RankItems(query string, items []database.MenuItem, shopNames map[string]string, limit int) []ItemHit {
	hits := []ItemHit{}
	for _, item := range items {
		score := ItemScore(query, item)
		if score == 0 {
			continue
		}
		hit := ItemHit{MenuItem: item, Price: item.BasePrice, Score: score}
		if name, ok := shopNames[item.ShopID]; ok {
			hit.Shops = &ShopRef{Name: name}
		}
		hits = append(hits, hit)
	}
	slices.SortStableFunc(hits, func(a, b ItemHit) int { return b.Score - a.Score })
	return truncate(hits, limit)
}

// Suggest returns up to five popular terms containing the query.
func Suggest(query string) []string {
	out := []string{}
	for _, p := range Popular {
		if len(out) == maxSuggestions {
			break
		}
		if strings.Contains(strings.ToLower(p), query) {
			out = append(out, p)
		}
	}
	return out
}

// wordMatch reports whether query sits on a word boundary in name: as a
// whole word, at the start of a word, or at the end of one.
func wordMatch(query, name string) bool {
	return strings.Contains(" "+name+" ", " "+query+" ") ||
		strings.Contains(" "+name, " "+query) ||
		strings.Contains(name+" ", query+" ")
}

// overlap counts query characters (with repeats) that occur anywhere in name.
func overlap(query, name string) int {
	n := 0
	for _, c := range query {
		if strings.ContainsRune(name, c) {
			n++
		}
	}
	return n
}

func lowerOpt(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(*s)
}

func truncate[T any](s []T, limit int) []T {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
