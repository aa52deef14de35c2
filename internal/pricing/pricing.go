package pricing

import (
	"fmt"
	"math"

	"postpilot/internal/domain"
)

// Bundle is a custom plan's monthly allowance triple.
type Bundle struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
	Ideas    int `json:"ideas"`
}

// UnitPrices are the per-credit prices for one currency.
type UnitPrices struct {
	Post    float64
	Comment float64
	Idea    float64
}

// Preset is a named bundle with a flat, non-formulaic price. Preset prices
// are value pricing: they are not required to equal the unit-price sum.
type Preset struct {
	Name     string
	Bundle   Bundle
	PriceUSD float64
	PriceINR float64
}

const CustomPlanName = "Custom Plan"

// Config carries the price tables. It is built once at startup and injected
// into whatever needs to quote prices; there is no package-level table.
type Config struct {
	Units   map[string]UnitPrices // keyed by currency
	Presets []Preset
}

// Default returns the production price tables.
func Default() Config {
	return Config{
		Units: map[string]UnitPrices{
			domain.CurrencyUSD: {Post: 0.25, Comment: 0.10, Idea: 0.05},
			domain.CurrencyINR: {Post: 20, Comment: 8, Idea: 4},
		},
		Presets: []Preset{
			{Name: "starter", Bundle: Bundle{Posts: 20, Comments: 20, Ideas: 10}, PriceUSD: 12, PriceINR: 999},
			{Name: "pro", Bundle: Bundle{Posts: 50, Comments: 50, Ideas: 30}, PriceUSD: 24, PriceINR: 1999},
			{Name: "elite", Bundle: Bundle{Posts: 100, Comments: 100, Ideas: 50}, PriceUSD: 49, PriceINR: 3999},
		},
	}
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Price returns the monthly price for a bundle in the given currency. An
// exact preset match returns the preset's flat price; anything else is
// priced per unit and rounded to 2 decimals.
func (c *Calculator) Price(b Bundle, currency string) float64 {
	if p, ok := c.preset(b); ok {
		if currency == domain.CurrencyINR {
			return p.PriceINR
		}
		return p.PriceUSD
	}
	units, ok := c.cfg.Units[currency]
	if !ok {
		units = c.cfg.Units[domain.CurrencyUSD]
	}
	raw := float64(b.Posts)*units.Post + float64(b.Comments)*units.Comment + float64(b.Ideas)*units.Idea
	return round2(raw)
}

// PlanName returns the matching preset label, or "Custom Plan".
func (c *Calculator) PlanName(b Bundle) string {
	if p, ok := c.preset(b); ok {
		return p.Name
	}
	return CustomPlanName
}

func (c *Calculator) preset(b Bundle) (Preset, bool) {
	for _, p := range c.cfg.Presets {
		if p.Bundle == b {
			return p, true
		}
	}
	return Preset{}, false
}

const (
	minCredits = 10
	maxCredits = 100
)

// ValidationResult reports bundle validity with per-field errors. Validate
// never panics and never returns an error value; invalid input is data.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// Validate checks that each dimension is within [10,100].
func Validate(b Bundle) ValidationResult {
	var errs []string
	check := func(field string, v int) {
		if v < minCredits || v > maxCredits {
			errs = append(errs, fmt.Sprintf("%s must be between %d and %d", field, minCredits, maxCredits))
		}
	}
	check("posts", b.Posts)
	check("comments", b.Comments)
	check("ideas", b.Ideas)
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
