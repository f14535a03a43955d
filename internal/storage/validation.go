// Package storage provides the SQLite persistence layer for cardwise.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/cardwise/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidJob         = errors.New("invalid job")
	ErrInvalidOffer       = errors.New("invalid offer")
	ErrInvalidMCC         = errors.New("invalid mcc code")
	ErrInvalidAlias       = errors.New("invalid merchant alias")
	ErrInvalidProgress    = errors.New("progress must be between 0 and 100")
	ErrInvalidRanks       = errors.New("invalid recommendation ranks")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString rejects blank identifiers; name ends up in the error.
func validateString(s, name string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, name)
	}
	return nil
}

func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.SessionID == "" {
		return fmt.Errorf("%w: missing session ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.RawDescription) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if txn.MCCCode != nil && txn.CategoryID == nil {
		return fmt.Errorf("%w: mcc %s set without a category", ErrInvalidTransaction, *txn.MCCCode)
	}
	if txn.ResolutionConfidence < 0 || txn.ResolutionConfidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidTransaction)
	}
	return nil
}

// validateModel rejects a nil model and wraps the model's own Validate
// failure in kind.
func validateModel[P interface {
	*T
	Validate() error
}, T any](v P, name string, kind error) error {
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNilParameter, name)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}
	return nil
}

func validateAlias(alias *model.MerchantAlias) error {
	if alias == nil {
		return fmt.Errorf("%w: alias", ErrNilParameter)
	}
	if strings.TrimSpace(alias.MerchantName) == "" {
		return fmt.Errorf("%w: missing merchant name", ErrInvalidAlias)
	}
	if !model.IsMCC(alias.MCCCode) {
		return fmt.Errorf("%w: mcc %q is not four digits", ErrInvalidAlias, alias.MCCCode)
	}
	if alias.Confidence < 0 || alias.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidAlias)
	}
	return nil
}
