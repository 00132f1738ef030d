package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a wallet ledger entry.
type TransactionType string

const (
	TransactionDebit   TransactionType = "DEBIT"
	TransactionRefund  TransactionType = "REFUND"
	TransactionDeposit TransactionType = "DEPOSIT"
)

// WalletTransaction is one immutable ledger row. Amount is always
// positive; the type says which direction the money moved. BalanceAfter
// snapshots the wallet immediately after the entry was applied, inside
// the same database transaction.
type WalletTransaction struct {
	ID           uuid.UUID
	AgentID      uuid.UUID
	RequestID    *uuid.UUID
	Type         TransactionType
	Amount       float64
	BalanceAfter float64
	Description  string
	CreatedAt    time.Time
}
