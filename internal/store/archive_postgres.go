package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"lighthouse.app/cityintel/core/db"
	"lighthouse.app/cityintel/internal/model"
)

const postgresArchiveSchema = `
CREATE TABLE IF NOT EXISTS archived_issues (
    doc_id             TEXT PRIMARY KEY,
    card_id            INTEGER NOT NULL,
    title              TEXT NOT NULL,
    severity           TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'active',
    card               JSONB NOT NULL,
    agent_analysis     JSONB NOT NULL DEFAULT '{}',
    raw_data           JSONB NOT NULL DEFAULT '{}',
    agent_conversation JSONB NOT NULL DEFAULT '[]',
    created_at         TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS archived_issues_created_at_idx ON archived_issues (created_at DESC);
`

type postgresArchive struct {
	db  *db.DB
	sql sq.StatementBuilderType
	now func() time.Time
}

// NewPostgresArchive returns an archive backed by the pgx pool. Call Migrate once at startup.
func NewPostgresArchive(database *db.DB) *postgresArchive {
	return &postgresArchive{
		db:  database,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now: time.Now,
	}
}

func (a *postgresArchive) Migrate(ctx context.Context) error {
	if _, err := a.db.Pool().Exec(ctx, postgresArchiveSchema); err != nil {
		return fmt.Errorf("migrating archive schema: %w", err)
	}
	return nil
}

func (a *postgresArchive) SaveAll(ctx context.Context, cards []model.IssueCard, agents []model.AgentContext, logs []model.LogEntry) ([]string, error) {
	records := BuildArchivedIssues(cards, agents, logs, a.now())
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(records))
	err := a.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, r := range records {
			row, err := encodeArchiveRow(r)
			if err != nil {
				return fmt.Errorf("encoding archive record %s: %w", r.DocID, err)
			}

			query, args, err := a.sql.Insert(archiveTable).
				Columns(archiveColumns...).
				Values(r.DocID, r.Card.ID, r.Card.Title, string(r.Card.Severity), string(r.Status),
					row.card, row.analysis, row.rawData, row.conversation, r.CreatedAt, r.UpdatedAt).
				Suffix("ON CONFLICT (doc_id) DO NOTHING").
				ToSql()
			if err != nil {
				return fmt.Errorf("building insert: %w", err)
			}

			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("inserting archive record %s: %w", r.DocID, err)
			}
			ids = append(ids, r.DocID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (a *postgresArchive) LoadAll(ctx context.Context) ([]model.ArchivedIssue, error) {
	query, args, err := a.sql.Select("doc_id", "status", "card", "agent_analysis", "raw_data", "agent_conversation", "created_at", "updated_at").
		From(archiveTable).
		OrderBy("created_at DESC", "card_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := a.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var records []model.ArchivedIssue
	for rows.Next() {
		var (
			r      model.ArchivedIssue
			status string
			row    archiveRow
		)
		if err := rows.Scan(&r.DocID, &status, &row.card, &row.analysis, &row.rawData, &row.conversation, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		r.Status = model.ArchiveStatus(status)
		if err := decodeArchiveRow(row, &r); err != nil {
			return nil, fmt.Errorf("decoding archive record %s: %w", r.DocID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archive rows: %w", err)
	}
	return records, nil
}

func (a *postgresArchive) UpdateStatus(ctx context.Context, docID string, status model.ArchiveStatus) error {
	query, args, err := a.sql.Update(archiveTable).
		Set("status", string(status)).
		Set("updated_at", a.now()).
		Where(sq.Eq{"doc_id": docID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	return a.execOne(ctx, query, args...)
}

func (a *postgresArchive) Delete(ctx context.Context, docID string) error {
	query, args, err := a.sql.Delete(archiveTable).Where(sq.Eq{"doc_id": docID}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	return a.execOne(ctx, query, args...)
}

func (a *postgresArchive) Clear(ctx context.Context) error {
	query, args, err := a.sql.Delete(archiveTable).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := a.db.Pool().Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing archive: %w", err)
	}
	return nil
}

func (a *postgresArchive) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := a.db.Pool().Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("executing archive statement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
