package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
)

// GetCategories returns the category taxonomy ordered by id.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetSubCategories returns every sub-category ordered by id.
func (s *SQLiteStorage) GetSubCategories(ctx context.Context) ([]model.SubCategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, category_id, name, slug FROM sub_categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub-categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.SubCategory
	for rows.Next() {
		var sub model.SubCategory
		if err := rows.Scan(&sub.ID, &sub.CategoryID, &sub.Name, &sub.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan sub-category: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetMCCCodes returns the MCC reference table ordered by code.
func (s *SQLiteStorage) GetMCCCodes(ctx context.Context) ([]model.MCCCode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, description, category_id, sub_category_id, merchant_patterns, confidence
		FROM mcc_codes ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mcc codes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var codes []model.MCCCode
	for rows.Next() {
		mcc, err := scanMCC(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, *mcc)
	}
	return codes, rows.Err()
}

// GetMCCCode returns one MCC record.
func (s *SQLiteStorage) GetMCCCode(ctx context.Context, code string) (*model.MCCCode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}
	return s.getMCCCodeTx(ctx, s.db, code)
}

func (s *SQLiteStorage) getMCCCodeTx(ctx context.Context, q queryable, code string) (*model.MCCCode, error) {
	mcc, err := scanMCC(q.QueryRowContext(ctx, `
		SELECT code, description, category_id, sub_category_id, merchant_patterns, confidence
		FROM mcc_codes WHERE code = ?
	`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mcc %s: %w", code, common.ErrNotFound)
	}
	return mcc, err
}

// SaveMCCCode inserts or replaces an MCC record.
func (s *SQLiteStorage) SaveMCCCode(ctx context.Context, mcc *model.MCCCode) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateModel(mcc, "mcc", ErrInvalidMCC); err != nil {
		return err
	}

	patterns, err := json.Marshal(nonNil(mcc.MerchantPatterns))
	if err != nil {
		return fmt.Errorf("failed to encode patterns: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mcc_codes (code, description, category_id, sub_category_id, merchant_patterns, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			description = excluded.description,
			category_id = excluded.category_id,
			sub_category_id = excluded.sub_category_id,
			merchant_patterns = excluded.merchant_patterns,
			confidence = excluded.confidence
	`, mcc.Code, mcc.Description, mcc.CategoryID, nullInt(mcc.SubCategoryID), string(patterns), mcc.Confidence)
	if err != nil {
		return fmt.Errorf("failed to save mcc %s: %w", mcc.Code, err)
	}
	return nil
}

// AppendMerchantPattern adds pattern to an MCC's merchant patterns unless
// an equal pattern (case-insensitive) is already present.
func (s *SQLiteStorage) AppendMerchantPattern(ctx context.Context, code, pattern string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		mcc, err := s.getMCCCodeTx(ctx, tx, code)
		if err != nil {
			return err
		}
		for _, existing := range mcc.MerchantPatterns {
			if strings.EqualFold(existing, pattern) {
				return nil
			}
		}

		patterns, err := json.Marshal(append(mcc.MerchantPatterns, pattern))
		if err != nil {
			return fmt.Errorf("failed to encode patterns: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE mcc_codes SET merchant_patterns = ? WHERE code = ?`,
			string(patterns), code); err != nil {
			return fmt.Errorf("failed to append pattern to mcc %s: %w", code, err)
		}
		return nil
	})
}

func scanMCC(row rowScanner) (*model.MCCCode, error) {
	var (
		mcc      model.MCCCode
		subID    sql.NullInt64
		patterns string
	)
	if err := row.Scan(&mcc.Code, &mcc.Description, &mcc.CategoryID, &subID, &patterns, &mcc.Confidence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan mcc: %w", err)
	}
	mcc.SubCategoryID = intPtr(subID)
	if err := json.Unmarshal([]byte(patterns), &mcc.MerchantPatterns); err != nil {
		return nil, fmt.Errorf("mcc %s has malformed merchant patterns: %w", mcc.Code, err)
	}
	return &mcc, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
