package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrSlotNotFound is returned when a named save slot does not exist.
var ErrSlotNotFound = errors.New("save slot not found")

// SlotRow is one stored save. Data is the encoded save file, header included.
type SlotRow struct {
	Slot      string
	Version   int
	Tick      uint64
	Entities  int
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SaveRepo struct {
	db *DB
}

func NewSaveRepo(db *DB) *SaveRepo {
	return &SaveRepo{db: db}
}

// Put creates or replaces a slot.
func (r *SaveRepo) Put(ctx context.Context, row *SlotRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO save_slots (slot, version, tick, entities, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (slot) DO UPDATE SET
		   version = EXCLUDED.version, tick = EXCLUDED.tick,
		   entities = EXCLUDED.entities, data = EXCLUDED.data,
		   updated_at = NOW()`,
		row.Slot, row.Version, int64(row.Tick), row.Entities, row.Data,
	)
	if err != nil {
		return fmt.Errorf("put save slot %s: %w", row.Slot, err)
	}
	return nil
}

func (r *SaveRepo) Get(ctx context.Context, slot string) (*SlotRow, error) {
	row := &SlotRow{}
	var tick int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT slot, version, tick, entities, data, created_at, updated_at
		 FROM save_slots WHERE slot = $1`, slot,
	).Scan(&row.Slot, &row.Version, &tick, &row.Entities, &row.Data, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("get save slot %s: %w", slot, err)
	}
	row.Tick = uint64(tick)
	return row, nil
}

// List returns slot metadata, most recently written first. Data is left nil.
func (r *SaveRepo) List(ctx context.Context) ([]SlotRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT slot, version, tick, entities, created_at, updated_at
		 FROM save_slots ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SlotRow
	for rows.Next() {
		var s SlotRow
		var tick int64
		if err := rows.Scan(&s.Slot, &s.Version, &tick, &s.Entities, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}
