package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidAmount          ErrorKind = "InvalidAmount"
	KindFeeSchedule            ErrorKind = "FeeScheduleError"
	KindInvalidRequest         ErrorKind = "InvalidRequest"
	KindUnknownRoute           ErrorKind = "UnknownRoute"
	KindInsufficientBalance    ErrorKind = "InsufficientBalance"
	KindDestinationUnavailable ErrorKind = "DestinationUnavailable"
	KindTransactionRejected    ErrorKind = "TransactionRejected"
	KindTransactionReverted    ErrorKind = "TransactionReverted"
	KindBroadcastUncertain     ErrorKind = "BroadcastUncertain"
	KindConfirmationTimeout    ErrorKind = "ConfirmationTimeout"
	KindLockEventNotFound      ErrorKind = "LockEventNotFound"
	KindMintTimeout            ErrorKind = "MintTimeout"
	KindCancelled              ErrorKind = "Cancelled"
	KindLockNotFound           ErrorKind = "LockNotFound"
	KindInternal               ErrorKind = "Internal"
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrFeeSchedule            = errors.New("fee schedule error")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrUnknownRoute           = errors.New("unknown token route")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrDestinationUnavailable = errors.New("destination ledger unavailable")
	ErrTransactionRejected    = errors.New("transaction rejected")
	ErrTransactionReverted    = errors.New("transaction reverted")
	ErrBroadcastUncertain     = errors.New("broadcast outcome unknown")
	ErrConfirmationTimeout    = errors.New("confirmation timeout")
	ErrLockEventNotFound      = errors.New("lock event not found")
	ErrMintTimeout            = errors.New("mint timeout")
	ErrCancelled              = errors.New("cancelled")
	ErrLockNotFound           = errors.New("lock not found")
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrFeeSchedule, KindFeeSchedule},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrUnknownRoute, KindUnknownRoute},
	{ErrInsufficientBalance, KindInsufficientBalance},
	{ErrDestinationUnavailable, KindDestinationUnavailable},
	{ErrTransactionRejected, KindTransactionRejected},
	{ErrTransactionReverted, KindTransactionReverted},
	{ErrBroadcastUncertain, KindBroadcastUncertain},
	{ErrConfirmationTimeout, KindConfirmationTimeout},
	{ErrLockEventNotFound, KindLockEventNotFound},
	{ErrMintTimeout, KindMintTimeout},
	{ErrCancelled, KindCancelled},
	{ErrLockNotFound, KindLockNotFound},
}

// KindOf classifies err by the first sentinel it wraps
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Recoverable kinds leave the source-side funds safe and are resolved by
// re-querying, never by resubmitting the lock.
func Recoverable(kind ErrorKind) bool {
	return kind == KindConfirmationTimeout || kind == KindMintTimeout || kind == KindBroadcastUncertain
}

func NewErrorDetail(err error) *ErrorDetail {
	kind := KindOf(err)
	return &ErrorDetail{
		Kind:        kind,
		Message:     err.Error(),
		Recoverable: Recoverable(kind),
	}
}

// WorkflowError carries the last-known record so the caller keeps the
// source tx hash needed for manual recovery.
type WorkflowError struct {
	Record LockRecord
	Err    error
}

func (e *WorkflowError) Error() string {
	if e.Record.SourceTxHash != "" {
		return fmt.Sprintf("bridge %s (source tx %s): %s", e.Record.ID, e.Record.SourceTxHash, e.Err)
	}
	return fmt.Sprintf("bridge %s: %s", e.Record.ID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
