package instruments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "main/internal/domain/entity/instruments"
	"main/internal/domain/interfaces"
)

const uniqueViolation = "23505"

// Repository persists instrument records and their price history in Postgres.
// ApplyUpdate runs current-row update, history prepend and history trim in a
// single transaction, which is the only concurrency primitive the engine
// relies on.
type Repository struct {
	pool *pgxpool.Pool
}

var _ interfaces.InstrumentsRepository = (*Repository)(nil)

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Ping verifies store connectivity; the engine calls it before every batch.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// EnsureSchema creates the instrument tables when they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS instruments (
			domain       varchar(32)  NOT NULL,
			code         varchar(64)  NOT NULL,
			name         varchar(255) NOT NULL DEFAULT '',
			attributes   jsonb        NOT NULL DEFAULT '{}',
			prices       jsonb        NOT NULL,
			changes      jsonb        NOT NULL DEFAULT '{}',
			last_updated timestamptz  NOT NULL,
			PRIMARY KEY (domain, code)
		);
		CREATE TABLE IF NOT EXISTS price_history (
			domain      varchar(32) NOT NULL,
			code        varchar(64) NOT NULL,
			recorded_at timestamptz NOT NULL,
			prices      jsonb       NOT NULL
		);
		CREATE INDEX IF NOT EXISTS price_history_code_idx
			ON price_history (domain, code, recorded_at DESC);`
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *Repository) FindByCode(ctx context.Context, d domain.Domain, code string) (*domain.Instrument, error) {
	const query = `
		SELECT domain, code, name, attributes, prices, changes, last_updated
		FROM instruments
		WHERE domain = $1 AND code = $2`

	row := r.pool.QueryRow(ctx, query, d.String(), code)
	instrument, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrInstrumentNotFound
		}
		return nil, err
	}
	return instrument, nil
}

func (r *Repository) Create(ctx context.Context, instrument *domain.Instrument, history []domain.HistoryEntry) error {
	if instrument == nil {
		return errors.New("nil instrument")
	}
	attributes, err := marshalJSON(instrument.Attributes)
	if err != nil {
		return err
	}
	prices, err := marshalJSON(instrument.Prices)
	if err != nil {
		return err
	}
	changes, err := marshalJSON(instrument.Changes)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `
		INSERT INTO instruments (domain, code, name, attributes, prices, changes, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.Exec(ctx, insert,
		instrument.Domain.String(),
		instrument.Code,
		instrument.Name,
		attributes,
		prices,
		changes,
		instrument.LastUpdated,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return interfaces.ErrInstrumentExists
		}
		return err
	}

	if len(history) > 0 {
		rows := make([][]interface{}, 0, len(history))
		for _, entry := range history {
			entryPrices, err := marshalJSON(entry.Prices)
			if err != nil {
				return err
			}
			rows = append(rows, []interface{}{
				instrument.Domain.String(),
				instrument.Code,
				entry.RecordedAt,
				entryPrices,
			})
		}
		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"price_history"},
			[]string{"domain", "code", "recorded_at", "prices"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) ApplyUpdate(ctx context.Context, d domain.Domain, code string, update domain.Update) error {
	prices, err := marshalJSON(update.Prices)
	if err != nil {
		return err
	}
	changes, err := marshalJSON(update.Changes)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const updateQuery = `
		UPDATE instruments
		SET prices = $3, changes = $4, last_updated = $5
		WHERE domain = $1 AND code = $2`
	tag, err := tx.Exec(ctx, updateQuery, d.String(), code, prices, changes, update.LastUpdated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrInstrumentNotFound
	}

	if update.History != nil {
		entryPrices, err := marshalJSON(update.History.Prices)
		if err != nil {
			return err
		}
		const prepend = `
			INSERT INTO price_history (domain, code, recorded_at, prices)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, prepend, d.String(), code, update.History.RecordedAt, entryPrices); err != nil {
			return err
		}
	}

	if update.HistoryCap > 0 {
		// ctid keeps the trim exact when multiple entries share a recorded_at.
		const trim = `
			DELETE FROM price_history
			WHERE ctid IN (
				SELECT ctid FROM price_history
				WHERE domain = $1 AND code = $2
				ORDER BY recorded_at DESC, ctid DESC
				OFFSET $3
			)`
		if _, err := tx.Exec(ctx, trim, d.String(), code, update.HistoryCap); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) History(ctx context.Context, d domain.Domain, code string, limit int) ([]domain.HistoryEntry, error) {
	query := `
		SELECT recorded_at, prices
		FROM price_history
		WHERE domain = $1 AND code = $2
		ORDER BY recorded_at DESC`
	args := []interface{}{d.String(), code}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		var raw []byte
		if err := rows.Scan(&entry.RecordedAt, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &entry.Prices); err != nil {
			return nil, fmt.Errorf("decode history prices for %s: %w", code, err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func scanInstrument(row pgx.Row) (*domain.Instrument, error) {
	instrument := &domain.Instrument{}
	var domainName string
	var attributes, prices, changes []byte
	err := row.Scan(
		&domainName,
		&instrument.Code,
		&instrument.Name,
		&attributes,
		&prices,
		&changes,
		&instrument.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	instrument.Domain = domain.Domain(domainName)
	if err := json.Unmarshal(attributes, &instrument.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if err := json.Unmarshal(prices, &instrument.Prices); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}
	if err := json.Unmarshal(changes, &instrument.Changes); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}
	return instrument, nil
}

func marshalJSON(value interface{}) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return data, nil
}
