package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgDB is the subset of pgxpool.Pool used by PostgresRepository, split out
// so tests can inject pgxmock.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database. The decision
// audit trail and nested documents live in jsonb columns; the fields used
// for querying (status, timestamps, version) are first-class columns.
type PostgresRepository struct {
	db pgDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db pgDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const leadColumns = `id, version, submission, classification_result, email,
	status, received_at, sent_at, sent_by, classifications, reroute,
	eval_results, created_at`

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, lead *Lead) error {
	submission, result, email, classifications, reroute, err := marshalDocs(lead)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leads (id, version, submission, classification_result, email,
			status, received_at, sent_at, sent_by, classifications, reroute,
			eval_results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		lead.ID,
		lead.Version,
		submission,
		result,
		email,
		string(lead.Status.Status),
		lead.Status.ReceivedAt,
		lead.Status.SentAt,
		nullIfEmpty(lead.Status.SentBy),
		classifications,
		reroute,
		[]byte(lead.EvalResults),
		lead.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("leads: insert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadExists
	}
	return nil
}

// GetByID fetches a lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// Update writes the lead conditionally on its read version. Zero affected
// rows means someone else wrote first.
func (r *PostgresRepository) Update(ctx context.Context, lead *Lead) error {
	submission, result, email, classifications, reroute, err := marshalDocs(lead)
	if err != nil {
		return err
	}

	query := `
		UPDATE leads
		SET version = version + 1,
			submission = $3,
			classification_result = $4,
			email = $5,
			status = $6,
			received_at = $7,
			sent_at = $8,
			sent_by = $9,
			classifications = $10,
			reroute = $11,
			eval_results = $12
		WHERE id = $1 AND version = $2
	`
	tag, err := r.db.Exec(ctx, query,
		lead.ID,
		lead.Version,
		submission,
		result,
		email,
		string(lead.Status.Status),
		lead.Status.ReceivedAt,
		lead.Status.SentAt,
		nullIfEmpty(lead.Status.SentBy),
		classifications,
		reroute,
		[]byte(lead.EvalResults),
	)
	if err != nil {
		return fmt.Errorf("leads: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	lead.Version++
	return nil
}

// ListByStatus returns leads in the given status, oldest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status LeadStatus, limit int) ([]*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status = $1 ORDER BY created_at ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leads: list by status failed: %w", err)
	}
	defer rows.Close()
	return collectLeads(rows)
}

// ListByDateRange returns leads created in [start, end), oldest first.
func (r *PostgresRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads
		WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("leads: list by date range failed: %w", err)
	}
	defer rows.Close()
	return collectLeads(rows)
}

func collectLeads(rows pgx.Rows) ([]*Lead, error) {
	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: rows failed: %w", err)
	}
	return out, nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		lead            Lead
		status          string
		sentBy          *string
		submission      []byte
		result          []byte
		email           []byte
		classifications []byte
		reroute         []byte
		evalResults     []byte
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Version,
		&submission,
		&result,
		&email,
		&status,
		&lead.Status.ReceivedAt,
		&lead.Status.SentAt,
		&sentBy,
		&classifications,
		&reroute,
		&evalResults,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}

	lead.Status.Status = LeadStatus(status)
	if sentBy != nil {
		lead.Status.SentBy = *sentBy
	}
	if err := json.Unmarshal(submission, &lead.Submission); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	if len(result) > 0 {
		lead.ClassificationResult = &ClassificationResult{}
		if err := json.Unmarshal(result, lead.ClassificationResult); err != nil {
			return nil, fmt.Errorf("decode classification result: %w", err)
		}
	}
	if len(email) > 0 {
		lead.Email = &EmailDraft{}
		if err := json.Unmarshal(email, lead.Email); err != nil {
			return nil, fmt.Errorf("decode email: %w", err)
		}
	}
	lead.Classifications = ClassificationLog{}
	if len(classifications) > 0 {
		if err := json.Unmarshal(classifications, &lead.Classifications); err != nil {
			return nil, fmt.Errorf("decode classifications: %w", err)
		}
	}
	if len(reroute) > 0 {
		lead.Reroute = &RerouteRecord{}
		if err := json.Unmarshal(reroute, lead.Reroute); err != nil {
			return nil, fmt.Errorf("decode reroute: %w", err)
		}
	}
	if len(evalResults) > 0 {
		lead.EvalResults = json.RawMessage(evalResults)
	}
	return &lead, nil
}

func marshalDocs(lead *Lead) (submission, result, email, classifications, reroute []byte, err error) {
	submission, err = json.Marshal(lead.Submission)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("leads: encode submission: %w", err)
	}
	if lead.ClassificationResult != nil {
		result, err = json.Marshal(lead.ClassificationResult)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("leads: encode classification result: %w", err)
		}
	}
	if lead.Email != nil {
		email, err = json.Marshal(lead.Email)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("leads: encode email: %w", err)
		}
	}
	classifications, err = json.Marshal(lead.Classifications)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("leads: encode classifications: %w", err)
	}
	if lead.Reroute != nil {
		reroute, err = json.Marshal(lead.Reroute)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("leads: encode reroute: %w", err)
		}
	}
	return submission, result, email, classifications, reroute, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
