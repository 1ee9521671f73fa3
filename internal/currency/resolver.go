// Package currency resolves exchange currency codes to canonical currencies.
package currency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

// Overrides maps exchange-specific codes to canonical codes. Keys are upper case.
type Overrides map[string]string

// Resolver maps codes to currencies using a fixed catalog and an immutable override table.
// It is safe for concurrent use.
type Resolver struct {
	catalog   map[string]domain.Currency
	overrides map[string]string
}

// NewResolver creates a resolver over the default catalog.
// The overrides are copied; later changes to the argument have no effect.
func NewResolver(overrides Overrides) *Resolver {
	return NewResolverWithCatalog(DefaultCatalog(), overrides)
}

// NewResolverWithCatalog creates a resolver over an explicit catalog.
func NewResolverWithCatalog(catalog []domain.Currency, overrides Overrides) *Resolver {
	r := &Resolver{
		catalog:   make(map[string]domain.Currency, len(catalog)),
		overrides: make(map[string]string, len(overrides)),
	}
	for _, c := range catalog {
		r.catalog[strings.ToUpper(c.Code)] = c
	}
	for from, to := range overrides {
		r.overrides[normalize(from)] = normalize(to)
	}
	return r
}

// Resolve maps a code to its currency. Unknown codes return an error wrapping
// ports.ErrUnrecognizedValue.
func (r *Resolver) Resolve(code string) (domain.Currency, error) {
	key := normalize(code)
	if key == "" {
		return domain.Currency{}, fmt.Errorf("%w: empty currency code", ports.ErrUnrecognizedValue)
	}
	if canonical, ok := r.overrides[key]; ok {
		key = canonical
	}
	c, ok := r.catalog[key]
	if !ok {
		return domain.Currency{}, fmt.Errorf("%w: currency code %q", ports.ErrUnrecognizedValue, code)
	}
	return c, nil
}

// ValidatePair checks that base and quote form a tradable pair: both set,
// not identical, and the quote able to act as a quote currency.
func (r *Resolver) ValidatePair(base, quote domain.Currency) error {
	if base.IsZero() || quote.IsZero() {
		return fmt.Errorf("%w: incomplete currency pair %s/%s", ports.ErrValidation, base, quote)
	}
	if base.Code == quote.Code {
		return fmt.Errorf("%w: identical currencies in pair %s/%s", ports.ErrValidation, base, quote)
	}
	if !quote.Fiat && !quote.Quote {
		return fmt.Errorf("%w: %s cannot be a quote currency", ports.ErrValidation, quote)
	}
	return nil
}

// Codes returns all catalog codes, sorted.
func (r *Resolver) Codes() []string {
	codes := make([]string, 0, len(r.catalog))
	for code := range r.catalog {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
