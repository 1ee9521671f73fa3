package domain

import (
	"fmt"
	"strings"
)

// TransactionKind is the canonical action of a transaction.
type TransactionKind string

const (
	KindBuy           TransactionKind = "BUY"
	KindSell          TransactionKind = "SELL"
	KindDeposit       TransactionKind = "DEPOSIT"
	KindWithdrawal    TransactionKind = "WITHDRAWAL"
	KindReward        TransactionKind = "REWARD"
	KindStake         TransactionKind = "STAKE"
	KindUnstake       TransactionKind = "UNSTAKE"
	KindStakingReward TransactionKind = "STAKING_REWARD"
	KindEarning       TransactionKind = "EARNING"
	KindFork          TransactionKind = "FORK"
	KindAirdrop       TransactionKind = "AIRDROP"
	KindFee           TransactionKind = "FEE"
	KindRebate        TransactionKind = "REBATE"
	KindUnknown       TransactionKind = "UNKNOWN"
)

// Kinds lists every supported transaction kind in declaration order.
var Kinds = []TransactionKind{
	KindBuy, KindSell, KindDeposit, KindWithdrawal, KindReward,
	KindStake, KindUnstake, KindStakingReward, KindEarning,
	KindFork, KindAirdrop, KindFee, KindRebate,
}

// ParseKind converts a raw kind tag (case-insensitive) to a TransactionKind.
// Unknown tags return KindUnknown and an error.
func ParseKind(tag string) (TransactionKind, error) {
	normalized := TransactionKind(strings.ToUpper(strings.TrimSpace(tag)))
	for _, k := range Kinds {
		if k == normalized {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown transaction kind %q", tag)
}

// IsTrade reports whether the kind is a BUY or SELL.
func (k TransactionKind) IsTrade() bool {
	return k == KindBuy || k == KindSell
}

func (k TransactionKind) String() string {
	return string(k)
}

// RowErrorKind classifies a conversion error. Only FAILED is produced.
type RowErrorKind string

const (
	RowErrorFailed RowErrorKind = "FAILED"
)
