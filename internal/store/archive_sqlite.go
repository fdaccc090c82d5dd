package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"lighthouse.app/cityintel/internal/model"
)

const sqliteArchiveSchema = `
CREATE TABLE IF NOT EXISTS archived_issues (
    doc_id             TEXT PRIMARY KEY,
    card_id            INTEGER NOT NULL,
    title              TEXT NOT NULL,
    severity           TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'active',
    card               TEXT NOT NULL,
    agent_analysis     TEXT NOT NULL DEFAULT '{}',
    raw_data           TEXT NOT NULL DEFAULT '{}',
    agent_conversation TEXT NOT NULL DEFAULT '[]',
    created_at         INTEGER NOT NULL,
    updated_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS archived_issues_created_at_idx ON archived_issues (created_at DESC);
`

type sqliteArchive struct {
	db  *sql.DB
	sql sq.StatementBuilderType
	now func() time.Time
}

// NewSQLiteArchive returns an archive in a local SQLite database. Timestamps are stored
// as unix milliseconds.
func NewSQLiteArchive(conn *sql.DB) *sqliteArchive {
	return &sqliteArchive{
		db:  conn,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: time.Now,
	}
}

func (a *sqliteArchive) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, sqliteArchiveSchema); err != nil {
		return fmt.Errorf("migrating archive schema: %w", err)
	}
	return nil
}

func (a *sqliteArchive) SaveAll(ctx context.Context, cards []model.IssueCard, agents []model.AgentContext, logs []model.LogEntry) ([]string, error) {
	records := BuildArchivedIssues(cards, agents, logs, a.now())
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ids := make([]string, 0, len(records))
	for _, r := range records {
		row, err := encodeArchiveRow(r)
		if err != nil {
			return nil, fmt.Errorf("encoding archive record %s: %w", r.DocID, err)
		}

		query, args, err := a.sql.Insert(archiveTable).
			Columns(archiveColumns...).
			Values(r.DocID, r.Card.ID, r.Card.Title, string(r.Card.Severity), string(r.Status),
				string(row.card), string(row.analysis), string(row.rawData), string(row.conversation),
				r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli()).
			Options("OR IGNORE").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("building insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("inserting archive record %s: %w", r.DocID, err)
		}
		ids = append(ids, r.DocID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return ids, nil
}

func (a *sqliteArchive) LoadAll(ctx context.Context) ([]model.ArchivedIssue, error) {
	query, args, err := a.sql.Select("doc_id", "status", "card", "agent_analysis", "raw_data", "agent_conversation", "created_at", "updated_at").
		From(archiveTable).
		OrderBy("created_at DESC", "card_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var records []model.ArchivedIssue
	for rows.Next() {
		var (
			r                    model.ArchivedIssue
			status               string
			card, analysis       string
			rawData, convo       string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&r.DocID, &status, &card, &analysis, &rawData, &convo, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		r.Status = model.ArchiveStatus(status)
		r.CreatedAt = time.UnixMilli(createdAt)
		r.UpdatedAt = time.UnixMilli(updatedAt)

		row := archiveRow{card: []byte(card), analysis: []byte(analysis), rawData: []byte(rawData), conversation: []byte(convo)}
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

func (a *sqliteArchive) UpdateStatus(ctx context.Context, docID string, status model.ArchiveStatus) error {
	query, args, err := a.sql.Update(archiveTable).
		Set("status", string(status)).
		Set("updated_at", a.now().UnixMilli()).
		Where(sq.Eq{"doc_id": docID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	return a.execOne(ctx, query, args...)
}

func (a *sqliteArchive) Delete(ctx context.Context, docID string) error {
	query, args, err := a.sql.Delete(archiveTable).Where(sq.Eq{"doc_id": docID}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	return a.execOne(ctx, query, args...)
}

func (a *sqliteArchive) Clear(ctx context.Context) error {
	query, args, err := a.sql.Delete(archiveTable).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing archive: %w", err)
	}
	return nil
}

func (a *sqliteArchive) execOne(ctx context.Context, query string, args ...any) error {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("executing archive statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
