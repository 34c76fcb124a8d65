package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/respapi"
)

// Postgres is the production Store, backed by a pgx connection pool. Rows
// are stored with their nested item/usage structures as JSONB, and
// PartialUpdate relies on the status column to guard against overwriting a
// row that has already reached a terminal state.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	id                   TEXT PRIMARY KEY,
	model                TEXT NOT NULL,
	status               TEXT NOT NULL,
	store                BOOLEAN NOT NULL,
	background           BOOLEAN NOT NULL,
	metadata             JSONB,
	previous_response_id TEXT,
	parallel_tool_calls  BOOLEAN NOT NULL,
	input_items          JSONB,
	output_items         JSONB,
	usage                JSONB,
	error                JSONB,
	incomplete_details   JSONB,
	created_at           TIMESTAMPTZ NOT NULL,
	completed_at         TIMESTAMPTZ,
	cancelled_at         TIMESTAMPTZ
)`

// Migrate creates the responses table if it doesn't exist. Called once at
// startup; there's no migration framework here, just an idempotent DDL
// statement, since the schema has one table and no history to manage yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *Postgres) Upsert(ctx context.Context, row *respapi.StoredResponse) error {
	metadata, err := json.Marshal(row.Metadata)
	if err != nil {
		return err
	}

	inputItems, err := json.Marshal(row.InputItems)
	if err != nil {
		return err
	}

	outputItems, err := json.Marshal(row.OutputItems)
	if err != nil {
		return err
	}

	usage, err := json.Marshal(row.Usage)
	if err != nil {
		return err
	}

	errDetail, err := json.Marshal(row.Error)
	if err != nil {
		return err
	}

	incomplete, err := json.Marshal(row.IncompleteDetails)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO responses (
			id, model, status, store, background, metadata, previous_response_id,
			parallel_tool_calls, input_items, output_items, usage, error,
			incomplete_details, created_at, completed_at, cancelled_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			model = EXCLUDED.model,
			status = EXCLUDED.status,
			store = EXCLUDED.store,
			background = EXCLUDED.background,
			metadata = EXCLUDED.metadata,
			previous_response_id = EXCLUDED.previous_response_id,
			parallel_tool_calls = EXCLUDED.parallel_tool_calls,
			input_items = EXCLUDED.input_items,
			output_items = EXCLUDED.output_items,
			usage = EXCLUDED.usage,
			error = EXCLUDED.error,
			incomplete_details = EXCLUDED.incomplete_details,
			completed_at = EXCLUDED.completed_at,
			cancelled_at = EXCLUDED.cancelled_at`,
		row.ID, row.Model, row.Status, row.Store, row.Background, metadata,
		nullableText(row.PreviousResponseID), row.ParallelToolCalls, inputItems,
		outputItems, usage, errDetail, incomplete, row.CreatedAt,
		row.CompletedAt, row.CancelledAt,
	)

	return err
}

func (p *Postgres) PartialUpdate(ctx context.Context, id string, outputItems []respapi.OutputItem, usage *respapi.Usage) (bool, error) {
	items, err := json.Marshal(outputItems)
	if err != nil {
		return false, err
	}

	var usageJSON []byte
	if usage != nil {
		usageJSON, err = json.Marshal(usage)
		if err != nil {
			return false, err
		}
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE responses
		SET output_items = $2, usage = COALESCE($3, usage)
		WHERE id = $1 AND status = 'in_progress'`,
		id, items, nullableJSON(usageJSON),
	)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) Cancel(ctx context.Context, id string) (*respapi.StoredResponse, error) {
	row, err := p.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return nil, apperror.Newf(apperror.KindNotFound, "response %q not found", id)
	}

	if !row.Store {
		return nil, apperror.Newf(apperror.KindConflict, "response %q was not stored", id)
	}

	if row.Status != respapi.StatusQueued && row.Status != respapi.StatusInProgress {
		return nil, apperror.Newf(apperror.KindConflict, "response %q is not cancellable in status %q", id, row.Status)
	}

	now := time.Now()

	tag, err := p.pool.Exec(ctx, `
		UPDATE responses
		SET status = 'cancelled', cancelled_at = $2
		WHERE id = $1 AND status IN ('queued', 'in_progress')`,
		id, now,
	)
	if err != nil {
		return nil, err
	}

	if tag.RowsAffected() == 0 {
		return nil, apperror.Newf(apperror.KindConflict, "response %q is not cancellable in status %q", id, row.Status)
	}

	row.Status = respapi.StatusCancelled
	row.CancelledAt = &now

	return row, nil
}

func (p *Postgres) Load(ctx context.Context, id string) (*respapi.StoredResponse, error) {
	var (
		row                                                 respapi.StoredResponse
		metadata, inputItems, outputItems, usage, errDetail []byte
		incomplete                                          []byte
		previousResponseID                                  *string
	)

	err := p.pool.QueryRow(ctx, `
		SELECT id, model, status, store, background, metadata, previous_response_id,
		       parallel_tool_calls, input_items, output_items, usage, error,
		       incomplete_details, created_at, completed_at, cancelled_at
		FROM responses WHERE id = $1`, id,
	).Scan(
		&row.ID, &row.Model, &row.Status, &row.Store, &row.Background, &metadata,
		&previousResponseID, &row.ParallelToolCalls, &inputItems, &outputItems,
		&usage, &errDetail, &incomplete, &row.CreatedAt, &row.CompletedAt, &row.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if previousResponseID != nil {
		row.PreviousResponseID = *previousResponseID
	}

	if err := unmarshalIfPresent(metadata, &row.Metadata); err != nil {
		return nil, err
	}

	if err := unmarshalIfPresent(inputItems, &row.InputItems); err != nil {
		return nil, err
	}

	if err := unmarshalIfPresent(outputItems, &row.OutputItems); err != nil {
		return nil, err
	}

	if err := unmarshalIfPresent(usage, &row.Usage); err != nil {
		return nil, err
	}

	if err := unmarshalIfPresent(errDetail, &row.Error); err != nil {
		return nil, err
	}

	if err := unmarshalIfPresent(incomplete, &row.IncompleteDetails); err != nil {
		return nil, err
	}

	return &row, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM responses WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}

	return b
}

func unmarshalIfPresent(b []byte, out any) error {
	if len(b) == 0 {
		return nil
	}

	return json.Unmarshal(b, out)
}
