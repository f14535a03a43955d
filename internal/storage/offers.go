package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
)

// SaveOffer validates and upserts an offer. The offer body is stored as JSON;
// the indexed columns mirror the fields used for filtering.
func (s *SQLiteStorage) SaveOffer(ctx context.Context, offer *model.Offer) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateModel(offer, "offer", ErrInvalidOffer); err != nil {
		return err
	}
	return saveOfferTx(ctx, s.db, offer, s.now())
}

func saveOfferTx(ctx context.Context, q queryable, offer *model.Offer, now time.Time) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to encode offer %s: %w", offer.ID, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO offers (id, name, issuer, network, is_active, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			issuer = excluded.issuer,
			network = excluded.network,
			is_active = excluded.is_active,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, offer.ID, offer.Name, offer.Issuer, offer.Network, offer.IsActive, string(data), now)
	if err != nil {
		return fmt.Errorf("failed to save offer %s: %w", offer.ID, err)
	}
	return nil
}

// GetOffer retrieves one offer.
func (s *SQLiteStorage) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM offers WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("offer %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return decodeOffer(data)
}

// ListOffers returns the catalog ordered by id.
func (s *SQLiteStorage) ListOffers(ctx context.Context, activeOnly bool) ([]model.Offer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT data FROM offers`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var offers []model.Offer
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offer, err := decodeOffer(data)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *offer)
	}
	return offers, rows.Err()
}

func decodeOffer(data string) (*model.Offer, error) {
	var offer model.Offer
	if err := json.Unmarshal([]byte(data), &offer); err != nil {
		return nil, fmt.Errorf("%w: malformed offer row: %v", ErrInvalidOffer, err)
	}
	if err := validateModel(&offer, "offer", ErrInvalidOffer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// ImportOffers upserts a catalog in one transaction. Every offer is validated
// before anything is written. With deactivateMissing, stored offers absent
// from the catalog are marked inactive; the count of those is returned.
func (s *SQLiteStorage) ImportOffers(ctx context.Context, offers []model.Offer, deactivateMissing bool) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	keep := make(map[string]bool, len(offers))
	for i := range offers {
		if err := validateModel(&offers[i], "offer", ErrInvalidOffer); err != nil {
			return 0, err
		}
		if keep[offers[i].ID] {
			return 0, fmt.Errorf("%w: duplicate offer id %s", ErrInvalidOffer, offers[i].ID)
		}
		keep[offers[i].ID] = true
	}

	deactivated := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		for i := range offers {
			if err := saveOfferTx(ctx, tx, &offers[i], now); err != nil {
				return err
			}
		}
		if !deactivateMissing {
			return nil
		}

		rows, err := tx.QueryContext(ctx, `SELECT data FROM offers WHERE is_active = 1`)
		if err != nil {
			return fmt.Errorf("failed to query offers: %w", err)
		}
		var stale []*model.Offer
		for rows.Next() {
			var data string
			if err := rows.Scan(&data); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan offer: %w", err)
			}
			offer, err := decodeOffer(data)
			if err != nil {
				_ = rows.Close()
				return err
			}
			if !keep[offer.ID] {
				stale = append(stale, offer)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, offer := range stale {
			offer.IsActive = false
			if err := saveOfferTx(ctx, tx, offer, now); err != nil {
				return err
			}
		}
		deactivated = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deactivated, nil
}
