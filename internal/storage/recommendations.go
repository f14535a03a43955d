package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/cardwise/internal/model"
)

// ReplaceRecommendations swaps a session's recommendations in one transaction.
func (s *SQLiteStorage) ReplaceRecommendations(ctx context.Context, sessionID string, recs []model.Recommendation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}
	if err := model.Recommendations(recs).ValidateRanks(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRanks, err)
	}

	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("failed to clear recommendations: %w", err)
		}

		for _, rec := range recs {
			pros, err := json.Marshal(nonNil(rec.Pros))
			if err != nil {
				return fmt.Errorf("failed to encode pros: %w", err)
			}
			cons, err := json.Marshal(nonNil(rec.Cons))
			if err != nil {
				return fmt.Errorf("failed to encode cons: %w", err)
			}
			breakdown := rec.CategoryBreakdown
			if breakdown == nil {
				breakdown = []model.CategoryEarnings{}
			}
			breakdownJSON, err := json.Marshal(breakdown)
			if err != nil {
				return fmt.Errorf("failed to encode breakdown: %w", err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO recommendations (
					session_id, card_id, card_name, rank, score, estimated_earnings, net_savings,
					signup_bonus_value, primary_reason, pros, cons, category_breakdown, is_fallback, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, sessionID, rec.CardID, rec.CardName, rec.Rank, rec.Score, rec.EstimatedEarnings, rec.NetSavings,
				rec.SignupBonusValue, rec.PrimaryReason, string(pros), string(cons), string(breakdownJSON),
				rec.IsFallback, now)
			if err != nil {
				return fmt.Errorf("failed to insert recommendation %s: %w", rec.CardID, err)
			}
		}
		return nil
	})
}

// GetRecommendations returns a session's recommendations by rank.
func (s *SQLiteStorage) GetRecommendations(ctx context.Context, sessionID string) ([]model.Recommendation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, card_id, card_name, rank, score, estimated_earnings, net_savings,
			signup_bonus_value, primary_reason, pros, cons, category_breakdown, is_fallback
		FROM recommendations
		WHERE session_id = ?
		ORDER BY rank
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []model.Recommendation
	for rows.Next() {
		var (
			rec                   model.Recommendation
			pros, cons, breakdown string
		)
		if err := rows.Scan(&rec.SessionID, &rec.CardID, &rec.CardName, &rec.Rank, &rec.Score,
			&rec.EstimatedEarnings, &rec.NetSavings, &rec.SignupBonusValue, &rec.PrimaryReason,
			&pros, &cons, &breakdown, &rec.IsFallback); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		if err := json.Unmarshal([]byte(pros), &rec.Pros); err != nil {
			return nil, fmt.Errorf("malformed pros for %s: %w", rec.CardID, err)
		}
		if err := json.Unmarshal([]byte(cons), &rec.Cons); err != nil {
			return nil, fmt.Errorf("malformed cons for %s: %w", rec.CardID, err)
		}
		if err := json.Unmarshal([]byte(breakdown), &rec.CategoryBreakdown); err != nil {
			return nil, fmt.Errorf("malformed breakdown for %s: %w", rec.CardID, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
