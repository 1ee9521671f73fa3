package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalTransaction is a normalized transaction ready for accounting.
// It is not modified after construction.
type CanonicalTransaction struct {
	ID                string // empty when the source record carries no id
	Executed          time.Time
	Base              Currency
	Quote             Currency
	Kind              TransactionKind
	Quantity          decimal.Decimal
	UnitPrice         decimal.NullDecimal
	FeeRebateCurrency *Currency // set on FEE and REBATE rows only
	Note              string
	Address           string
}

// TransactionPrice returns quantity * unit price, or an invalid value when no price is known.
func (t CanonicalTransaction) TransactionPrice() decimal.NullDecimal {
	if !t.UnitPrice.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(t.Quantity.Mul(t.UnitPrice.Decimal))
}

// FeeIssue records why a fee or rebate could not be turned into a related transaction.
type FeeIssue struct {
	Source TransactionKind // KindFee or KindRebate
	Reason string
}

// TransactionCluster is a primary transaction plus its derived related transactions.
type TransactionCluster struct {
	Main    CanonicalTransaction
	Related []CanonicalTransaction

	ignoredFees []FeeIssue
	failedFees  []FeeIssue
	annotated   bool
}

// NewTransactionCluster builds a cluster from a main transaction and its related transactions.
func NewTransactionCluster(main CanonicalTransaction, related []CanonicalTransaction) *TransactionCluster {
	return &TransactionCluster{Main: main, Related: related}
}

// Annotate attaches fee issues to the cluster. Only the first call has any effect.
func (c *TransactionCluster) Annotate(ignored, failed []FeeIssue) {
	if c.annotated {
		return
	}
	c.annotated = true
	c.ignoredFees = append([]FeeIssue(nil), ignored...)
	c.failedFees = append([]FeeIssue(nil), failed...)
}

// FeeIgnored reports whether a fee or rebate was skipped because its currency is not recognized.
func (c *TransactionCluster) FeeIgnored() bool { return len(c.ignoredFees) > 0 }

// FeeFailed reports whether a fee or rebate derivation failed for another reason.
func (c *TransactionCluster) FeeFailed() bool { return len(c.failedFees) > 0 }

// IgnoredFees returns the ignored fee issues in derivation order.
func (c *TransactionCluster) IgnoredFees() []FeeIssue { return c.ignoredFees }

// FailedFees returns the failed fee issues in derivation order.
func (c *TransactionCluster) FailedFees() []FeeIssue { return c.failedFees }

// IgnoredFeeMessage joins the reasons of all ignored fee issues.
func (c *TransactionCluster) IgnoredFeeMessage() string { return joinReasons(c.ignoredFees) }

// FailedFeeMessage joins the reasons of all failed fee issues.
func (c *TransactionCluster) FailedFeeMessage() string { return joinReasons(c.failedFees) }

func joinReasons(issues []FeeIssue) string {
	reasons := make([]string, 0, len(issues))
	for _, i := range issues {
		reasons = append(reasons, i.Reason)
	}
	return strings.Join(reasons, "; ")
}
