package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/cardwise/internal/model"
)

// SaveTransactions inserts raw transactions; rows that already exist are left untouched.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, session_id, date, raw_description, merchant, amount,
				mcc_code, category_id, sub_category_id,
				resolution_confidence, resolution_source, needs_review
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, txn := range transactions {
			source := txn.ResolutionSource
			if source == "" {
				source = model.SourceUnresolved
			}
			if _, err := stmt.ExecContext(ctx,
				txn.ID, txn.SessionID, txn.Date.UTC(), txn.RawDescription, txn.Merchant, txn.Amount,
				nullString(txn.MCCCode), nullInt(txn.CategoryID), nullInt(txn.SubCategoryID),
				txn.ResolutionConfidence, string(source), txn.NeedsReview,
			); err != nil {
				return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
			}
		}
		return nil
	})
}

// GetSessionTransactions returns every transaction of a session ordered by date.
func (s *SQLiteStorage) GetSessionTransactions(ctx context.Context, sessionID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, date, raw_description, merchant, amount,
			mcc_code, category_id, sub_category_id,
			resolution_confidence, resolution_source, needs_review
		FROM transactions
		WHERE session_id = ?
		ORDER BY date, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var (
			txn          model.Transaction
			mcc          sql.NullString
			catID, subID sql.NullInt64
			source       string
		)
		if err := rows.Scan(&txn.ID, &txn.SessionID, &txn.Date, &txn.RawDescription, &txn.Merchant, &txn.Amount,
			&mcc, &catID, &subID, &txn.ResolutionConfidence, &source, &txn.NeedsReview); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Date = txn.Date.UTC()
		txn.MCCCode = stringPtr(mcc)
		txn.CategoryID = intPtr(catID)
		txn.SubCategoryID = intPtr(subID)
		txn.ResolutionSource = model.ResolutionSource(source)
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// UpdateTransactionResolution writes the resolution fields of one transaction.
func (s *SQLiteStorage) UpdateTransactionResolution(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET merchant = ?, mcc_code = ?, category_id = ?, sub_category_id = ?,
			resolution_confidence = ?, resolution_source = ?, needs_review = ?
		WHERE id = ?
	`, txn.Merchant, nullString(txn.MCCCode), nullInt(txn.CategoryID), nullInt(txn.SubCategoryID),
		txn.ResolutionConfidence, string(txn.ResolutionSource), txn.NeedsReview, txn.ID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: transaction %s does not exist", ErrInvalidTransaction, txn.ID)
	}
	return nil
}
