package payments

import "github.com/securevault/securevault/internal/ledger"

// Kind classifies the outcome of a transfer.
type Kind string

const (
	KindSuccess        Kind = "SUCCESS"
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindInfrastructure Kind = "INFRASTRUCTURE"
)

// Result is the value returned for every transfer attempt. Business-rule
// failures are reported here rather than as Go errors.
type Result struct {
	Kind        Kind
	Message     string
	Transaction *ledger.Transaction
}

// Success reports whether the transfer committed.
func (r Result) Success() bool { return r.Kind == KindSuccess }

// Retryable reports whether the caller may resubmit the same transfer.
// Only conflicts qualify.
func (r Result) Retryable() bool { return r.Kind == KindConflict }

func succeeded(txn ledger.Transaction) Result {
	return Result{Kind: KindSuccess, Message: msgCompleted, Transaction: &txn}
}

func failed(kind Kind, message string) Result {
	return Result{Kind: kind, Message: message}
}
