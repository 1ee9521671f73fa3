// Package classifier turns raw exchange records into canonical transaction clusters.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/numeric"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

const (
	feeIDSuffix    = "-fee"
	rebateIDSuffix = "-rebate"
)

// CurrencyResolver maps currency codes and validates trading pairs.
type CurrencyResolver interface {
	Resolve(code string) (domain.Currency, error)
	ValidatePair(base, quote domain.Currency) error
}

// Classifier converts single raw records. It holds no mutable state.
type Classifier struct {
	resolver CurrencyResolver
}

// New creates a classifier backed by the given resolver.
func New(resolver CurrencyResolver) (*Classifier, error) {
	if resolver == nil {
		return nil, fmt.Errorf("currency resolver is required for classifier")
	}
	return &Classifier{resolver: resolver}, nil
}

// Classify converts one raw record into a cluster. Errors are *ClassificationError.
func (c *Classifier) Classify(raw domain.RawTradeRecord) (*domain.TransactionCluster, error) {
	if raw.Malformed != "" {
		return nil, invalid("malformed record: "+raw.Malformed, nil)
	}

	kind, err := domain.ParseKind(raw.Kind)
	if err != nil {
		return nil, unsupported(raw.Kind)
	}

	base, err := c.resolver.Resolve(raw.BaseCode)
	if err != nil {
		return nil, invalid(fmt.Sprintf("unknown base currency %q", raw.BaseCode), err)
	}

	main := domain.CanonicalTransaction{
		ID:       raw.ID,
		Executed: raw.Executed,
		Base:     base,
		Quote:    base,
		Kind:     kind,
		Quantity: raw.Volume,
	}

	switch kind {
	case domain.KindReward:
		// rewards never carry fee or rebate transactions
		return domain.NewTransactionCluster(main, nil), nil

	case domain.KindBuy, domain.KindSell:
		quote, err := c.resolver.Resolve(raw.QuoteCode)
		if err != nil {
			return nil, invalid("invalid currency pair", err)
		}
		if err := c.resolver.ValidatePair(base, quote); err != nil {
			return nil, invalid("invalid currency pair", err)
		}
		if base.Fiat {
			return nil, invalid(fmt.Sprintf("base currency is not crypto: %s", base), nil)
		}
		main.Quote = quote
		main.UnitPrice = raw.UnitPrice

	case domain.KindDeposit, domain.KindWithdrawal:
		if strings.TrimSpace(raw.QuoteCode) != "" {
			quote, err := c.resolver.Resolve(raw.QuoteCode)
			if err != nil {
				return nil, invalid(fmt.Sprintf("unknown quote currency %q", raw.QuoteCode), err)
			}
			main.Quote = quote
		}
		if !base.Fiat {
			main.Address = raw.Address
		}

	case domain.KindStake, domain.KindUnstake, domain.KindStakingReward,
		domain.KindEarning, domain.KindFork, domain.KindAirdrop:
		main.UnitPrice = raw.UnitPrice
		main.Note = raw.Note
		main.Address = raw.Address

	case domain.KindFee, domain.KindRebate:
		feeCurrency := base
		main.FeeRebateCurrency = &feeCurrency

	default:
		return nil, unsupported(raw.Kind)
	}

	related, ignored, failed := c.deriveRelated(raw, main)
	cluster := domain.NewTransactionCluster(main, related)
	cluster.Annotate(ignored, failed)
	return cluster, nil
}

type derivation struct {
	kind   domain.TransactionKind
	amount decimal.NullDecimal
	code   string
	suffix string
}

// deriveRelated builds the FEE and REBATE sub-transactions. Each is attempted
// independently and a failure only annotates the cluster.
func (c *Classifier) deriveRelated(raw domain.RawTradeRecord, main domain.CanonicalTransaction) ([]domain.CanonicalTransaction, []domain.FeeIssue, []domain.FeeIssue) {
	var (
		related []domain.CanonicalTransaction
		ignored []domain.FeeIssue
		failed  []domain.FeeIssue
	)

	derivations := []derivation{
		{kind: domain.KindFee, amount: raw.FeeAmount, code: raw.FeeCode, suffix: feeIDSuffix},
		{kind: domain.KindRebate, amount: raw.RebateAmount, code: raw.RebateCode, suffix: rebateIDSuffix},
	}
	for _, d := range derivations {
		if numeric.NullOrZero(d.amount) {
			continue
		}
		tx, err := c.derive(main, d)
		switch {
		case err == nil:
			related = append(related, tx)
		case errors.Is(err, ports.ErrUnrecognizedValue):
			ignored = append(ignored, domain.FeeIssue{
				Source: d.kind,
				Reason: fmt.Sprintf("%s currency %q is not supported", label(d.kind), d.code),
			})
		default:
			failed = append(failed, domain.FeeIssue{
				Source: d.kind,
				Reason: fmt.Sprintf("%s transaction failed: %v", label(d.kind), err),
			})
		}
	}
	return related, ignored, failed
}

func (c *Classifier) derive(main domain.CanonicalTransaction, d derivation) (tx domain.CanonicalTransaction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s derivation panicked: %v", label(d.kind), r)
		}
	}()

	cur, err := c.resolver.Resolve(d.code)
	if err != nil {
		return domain.CanonicalTransaction{}, err
	}

	id := ""
	if main.ID != "" {
		id = main.ID + d.suffix
	}
	feeCurrency := cur
	return domain.CanonicalTransaction{
		ID:                id,
		Executed:          main.Executed,
		Base:              cur,
		Quote:             cur,
		Kind:              d.kind,
		Quantity:          numeric.Scale(d.amount.Decimal),
		FeeRebateCurrency: &feeCurrency,
	}, nil
}

func label(kind domain.TransactionKind) string {
	return strings.ToLower(kind.String())
}

// CountUnitPrice returns quoteAmount / volume, or an invalid value when it cannot be computed.
func CountUnitPrice(quoteAmount, volume decimal.NullDecimal) decimal.NullDecimal {
	return numeric.UnitPrice(quoteAmount, volume)
}
