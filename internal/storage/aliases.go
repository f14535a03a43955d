package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/cardwise/internal/model"
)

// GetMerchantAliases returns every alias row ordered by merchant name.
func (s *SQLiteStorage) GetMerchantAliases(ctx context.Context) ([]model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT merchant_name, aliases, mcc_code, confidence, usage_count, updated_at
		FROM merchant_aliases
		ORDER BY merchant_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.MerchantAlias
	for rows.Next() {
		var (
			alias   model.MerchantAlias
			aliases string
		)
		if err := rows.Scan(&alias.MerchantName, &aliases, &alias.MCCCode, &alias.Confidence,
			&alias.UsageCount, &alias.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merchant alias: %w", err)
		}
		if err := json.Unmarshal([]byte(aliases), &alias.Aliases); err != nil {
			return nil, fmt.Errorf("alias %s has malformed alias list: %w", alias.MerchantName, err)
		}
		result = append(result, alias)
	}
	return result, rows.Err()
}

// UpsertMerchantAlias inserts an alias row or merges into the existing one:
// confidence keeps the maximum, usage count is incremented and alias lists
// are unioned. Repeating the call with the same input only bumps usage.
func (s *SQLiteStorage) UpsertMerchantAlias(ctx context.Context, alias *model.MerchantAlias) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlias(alias); err != nil {
		return err
	}

	name := strings.ToUpper(strings.TrimSpace(alias.MerchantName))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		merged := alias.Aliases
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT aliases FROM merchant_aliases WHERE merchant_name = ?`, name).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to read merchant alias %s: %w", name, err)
		default:
			var prior []string
			if jsonErr := json.Unmarshal([]byte(existing), &prior); jsonErr == nil {
				merged = append(prior, alias.Aliases...)
			}
		}

		aliases, err := json.Marshal(dedupe(merged))
		if err != nil {
			return fmt.Errorf("failed to encode aliases: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO merchant_aliases (merchant_name, aliases, mcc_code, confidence, usage_count, updated_at)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT(merchant_name) DO UPDATE SET
				aliases = excluded.aliases,
				mcc_code = CASE WHEN excluded.confidence > merchant_aliases.confidence
					THEN excluded.mcc_code ELSE merchant_aliases.mcc_code END,
				confidence = MAX(merchant_aliases.confidence, excluded.confidence),
				usage_count = merchant_aliases.usage_count + 1,
				updated_at = excluded.updated_at
		`, name, string(aliases), alias.MCCCode, alias.Confidence, s.now())
		if err != nil {
			return fmt.Errorf("failed to upsert merchant alias %s: %w", name, err)
		}
		return nil
	})
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
