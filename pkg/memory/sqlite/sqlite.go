// Package sqlite provides a SQLite-backed conversation memory driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqljson"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

// Driver implements memory.Driver using SQLite via the
// github.com/mattn/go-sqlite3 driver (registered as "sqlite3").
type Driver struct {
	db *sql.DB
}

var _ memory.Driver = (*Driver)(nil)

// NewDriver creates a new SQLite-backed memory driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d := &Driver{db: db}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

// migrate creates the necessary tables if they don't exist.
func (d *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prompt_pieces (
		seq_id INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		role TEXT NOT NULL,
		original_value TEXT NOT NULL,
		original_value_data_type TEXT NOT NULL,
		original_value_sha256 TEXT NOT NULL,
		converted_value TEXT NOT NULL,
		converted_value_data_type TEXT NOT NULL,
		converted_value_sha256 TEXT NOT NULL,
		labels TEXT,
		converter_identifiers TEXT,
		target_identifier TEXT,
		orchestrator_identifier TEXT,
		orchestrator_id TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_prompt_pieces_conversation ON prompt_pieces(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_prompt_pieces_orchestrator ON prompt_pieces(orchestrator_id);

	CREATE TABLE IF NOT EXISTS prompt_scores (
		seq_id INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		piece_id TEXT NOT NULL,
		value TEXT NOT NULL,
		value_description TEXT,
		type TEXT NOT NULL,
		category TEXT,
		rationale TEXT,
		metadata TEXT,
		scorer_identifier TEXT,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (piece_id) REFERENCES prompt_pieces(id)
	);

	CREATE INDEX IF NOT EXISTS idx_prompt_scores_piece ON prompt_scores(piece_id);
	`

	_, err := d.db.Exec(schema)
	return err
}

// pieceColumns is the select column order expected by scanPieces.
var pieceColumns = []string{
	"id", "conversation_id", "sequence", "role",
	"original_value", "original_value_data_type", "original_value_sha256",
	"converted_value", "converted_value_data_type", "converted_value_sha256",
	"labels", "converter_identifiers", "target_identifier", "orchestrator_identifier",
	"timestamp",
}

// scoreColumns is the select column order expected by scanScores.
var scoreColumns = []string{
	"id", "piece_id", "value", "value_description", "type",
	"category", "rationale", "metadata", "scorer_identifier", "timestamp",
}

// AddPieces persists pieces in order within a single transaction.
func (d *Driver) AddPieces(ctx context.Context, pieces ...*prompt.Piece) error {
	if len(pieces) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range pieces {
		if p == nil {
			return memory.ErrNilPiece
		}
		p.EnsureHashes()

		labels, err := marshalOrNil(p.Labels)
		if err != nil {
			return fmt.Errorf("failed to marshal labels: %w", err)
		}
		converters, err := marshalOrNil(p.ConverterIdentifiers)
		if err != nil {
			return fmt.Errorf("failed to marshal converter identifiers: %w", err)
		}
		target, err := marshalIdentifier(p.TargetIdentifier)
		if err != nil {
			return fmt.Errorf("failed to marshal target identifier: %w", err)
		}
		orchestrator, err := marshalIdentifier(p.OrchestratorIdentifier)
		if err != nil {
			return fmt.Errorf("failed to marshal orchestrator identifier: %w", err)
		}

		var orchestratorID any
		if !p.OrchestratorIdentifier.IsZero() {
			orchestratorID = p.OrchestratorIdentifier.ID.String()
		}

		query, args := entsql.Dialect(dialect.SQLite).
			Insert("prompt_pieces").
			Columns(
				"id", "conversation_id", "sequence", "role",
				"original_value", "original_value_data_type", "original_value_sha256",
				"converted_value", "converted_value_data_type", "converted_value_sha256",
				"labels", "converter_identifiers", "target_identifier", "orchestrator_identifier",
				"orchestrator_id", "timestamp",
			).
			Values(
				p.ID.String(), p.ConversationID, p.Sequence, string(p.Role),
				p.OriginalValue, string(p.OriginalValueDataType), p.OriginalValueSHA256,
				p.ConvertedValue, string(p.ConvertedValueDataType), p.ConvertedValueSHA256,
				labels, converters, target, orchestrator,
				orchestratorID, p.Timestamp,
			).
			Query()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert piece %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// AddScores persists scores in order within a single transaction.
func (d *Driver) AddScores(ctx context.Context, scores ...*prompt.Score) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range scores {
		if s == nil {
			return memory.ErrNilScore
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("invalid score %s: %w", s.ID, err)
		}

		scorer, err := marshalIdentifier(s.ScorerIdentifier)
		if err != nil {
			return fmt.Errorf("failed to marshal scorer identifier: %w", err)
		}

		query, args := entsql.Dialect(dialect.SQLite).
			Insert("prompt_scores").
			Columns(
				"id", "piece_id", "value", "value_description", "type",
				"category", "rationale", "metadata", "scorer_identifier", "timestamp",
			).
			Values(
				s.ID.String(), s.PieceID.String(), s.Value, s.ValueDescription, string(s.Type),
				s.Category, s.Rationale, s.Metadata, scorer, s.Timestamp,
			).
			Query()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert score %s: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// PiecesByConversation returns the conversation's pieces in insertion order.
func (d *Driver) PiecesByConversation(ctx context.Context, conversationID string) ([]*prompt.Piece, error) {
	return d.QueryPieces(ctx, memory.WithConversation(conversationID))
}

// PiecesByOrchestrator returns pieces stamped with the orchestrator id.
func (d *Driver) PiecesByOrchestrator(ctx context.Context, orchestratorID uuid.UUID) ([]*prompt.Piece, error) {
	return d.QueryPieces(ctx, memory.WithOrchestrator(orchestratorID))
}

// PiecesByIDs returns the pieces with the given ids, skipping unknown ids.
func (d *Driver) PiecesByIDs(ctx context.Context, ids []uuid.UUID) ([]*prompt.Piece, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.QueryPieces(ctx, memory.WithPieceIDs(ids...))
}

// QueryPieces returns pieces matching every given filter, in insertion order.
func (d *Driver) QueryPieces(ctx context.Context, opts ...memory.QueryOption) ([]*prompt.Piece, error) {
	f := memory.NewFilter(opts...)

	sel := entsql.Dialect(dialect.SQLite).
		Select(pieceColumns...).
		From(entsql.Table("prompt_pieces"))

	if preds := piecePredicates(f); len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Asc("seq_id"))

	query, args := sel.Query()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pieces: %w", err)
	}
	defer rows.Close()

	return scanPieces(rows)
}

// piecePredicates translates a memory filter into SQL predicates.
func piecePredicates(f memory.Filter) []*entsql.Predicate {
	var preds []*entsql.Predicate

	if f.ConversationID != "" {
		preds = append(preds, entsql.EQ("conversation_id", f.ConversationID))
	}
	if f.OrchestratorID != uuid.Nil {
		preds = append(preds, entsql.EQ("orchestrator_id", f.OrchestratorID.String()))
	}
	if f.Role != "" {
		preds = append(preds, entsql.EQ("role", string(f.Role)))
	}
	if f.DataType != "" {
		preds = append(preds, entsql.EQ("converted_value_data_type", string(f.DataType)))
	}
	if len(f.PieceIDs) > 0 {
		ids := make([]any, len(f.PieceIDs))
		for i, id := range f.PieceIDs {
			ids[i] = id.String()
		}
		preds = append(preds, entsql.In("id", ids...))
	}
	if !f.SentAfter.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", f.SentAfter))
	}
	for key, value := range f.Labels {
		preds = append(preds, sqljson.ValueEQ("labels", value, sqljson.Path(key)))
	}

	return preds
}

// ScoresByPieceIDs returns all scores attached to the given piece ids.
func (d *Driver) ScoresByPieceIDs(ctx context.Context, pieceIDs []uuid.UUID) ([]*prompt.Score, error) {
	if len(pieceIDs) == 0 {
		return nil, nil
	}

	ids := make([]any, len(pieceIDs))
	for i, id := range pieceIDs {
		ids[i] = id.String()
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Select(scoreColumns...).
		From(entsql.Table("prompt_scores")).
		Where(entsql.In("piece_id", ids...)).
		OrderBy(entsql.Asc("seq_id")).
		Query()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// Conversations lists recorded conversations, most recent activity first.
func (d *Driver) Conversations(ctx context.Context) ([]memory.ConversationSummary, error) {
	query := `
	SELECT conversation_id, COUNT(*), MIN(timestamp), MAX(timestamp)
	FROM prompt_pieces
	GROUP BY conversation_id
	ORDER BY MAX(timestamp) DESC, conversation_id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var summaries []memory.ConversationSummary
	for rows.Next() {
		var (
			s        memory.ConversationSummary
			started  string
			lastSeen string
		)
		if err := rows.Scan(&s.ConversationID, &s.Pieces, &started, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}

		// Aggregates carry no declared column type, so the driver hands the
		// raw text back instead of a time.Time.
		if s.StartedAt, err = parseSQLiteTime(started); err != nil {
			return nil, fmt.Errorf("failed to parse conversation start: %w", err)
		}
		if s.LastActivityAt, err = parseSQLiteTime(lastSeen); err != nil {
			return nil, fmt.Errorf("failed to parse conversation activity: %w", err)
		}

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// sqliteTimeFormats are the layouts go-sqlite3 writes DATETIME values in.
var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range sqliteTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// Stats reports totals for the backend.
func (d *Driver) Stats(ctx context.Context) (memory.Stats, error) {
	var stats memory.Stats

	row := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompt_pieces`)
	if err := row.Scan(&stats.Pieces); err != nil {
		return stats, fmt.Errorf("failed to count pieces: %w", err)
	}

	row = d.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT conversation_id) FROM prompt_pieces`)
	if err := row.Scan(&stats.Conversations); err != nil {
		return stats, fmt.Errorf("failed to count conversations: %w", err)
	}

	row = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompt_scores`)
	if err := row.Scan(&stats.Scores); err != nil {
		return stats, fmt.Errorf("failed to count scores: %w", err)
	}

	return stats, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

// scanPieces reads piece rows in pieceColumns order.
func scanPieces(rows *sql.Rows) ([]*prompt.Piece, error) {
	var pieces []*prompt.Piece

	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, p)
	}

	return pieces, rows.Err()
}

func scanPiece(rows *sql.Rows) (*prompt.Piece, error) {
	var (
		p          prompt.Piece
		id         string
		role       string
		origType   string
		convType   string
		labels     sql.NullString
		converters sql.NullString
		target     sql.NullString
		orch       sql.NullString
		ts         time.Time
	)

	err := rows.Scan(
		&id, &p.ConversationID, &p.Sequence, &role,
		&p.OriginalValue, &origType, &p.OriginalValueSHA256,
		&p.ConvertedValue, &convType, &p.ConvertedValueSHA256,
		&labels, &converters, &target, &orch,
		&ts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan piece: %w", err)
	}

	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse piece id: %w", err)
	}
	p.Role = prompt.Role(role)
	p.OriginalValueDataType = prompt.DataType(origType)
	p.ConvertedValueDataType = prompt.DataType(convType)
	p.Timestamp = ts

	if labels.Valid && labels.String != "" {
		if err := json.Unmarshal([]byte(labels.String), &p.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
		}
	}
	if converters.Valid && converters.String != "" {
		if err := json.Unmarshal([]byte(converters.String), &p.ConverterIdentifiers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal converter identifiers: %w", err)
		}
	}
	if target.Valid && target.String != "" {
		if err := json.Unmarshal([]byte(target.String), &p.TargetIdentifier); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target identifier: %w", err)
		}
	}
	if orch.Valid && orch.String != "" {
		if err := json.Unmarshal([]byte(orch.String), &p.OrchestratorIdentifier); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orchestrator identifier: %w", err)
		}
	}

	return &p, nil
}

// scanScores reads score rows in scoreColumns order.
func scanScores(rows *sql.Rows) ([]*prompt.Score, error) {
	var scores []*prompt.Score

	for rows.Next() {
		var (
			s         prompt.Score
			id        string
			pieceID   string
			scoreType string
			desc      sql.NullString
			category  sql.NullString
			rationale sql.NullString
			metadata  sql.NullString
			scorer    sql.NullString
			ts        time.Time
		)

		err := rows.Scan(
			&id, &pieceID, &s.Value, &desc, &scoreType,
			&category, &rationale, &metadata, &scorer, &ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}

		s.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse score id: %w", err)
		}
		s.PieceID, err = uuid.Parse(pieceID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse score piece id: %w", err)
		}
		s.Type = prompt.ScoreType(scoreType)
		s.ValueDescription = desc.String
		s.Category = category.String
		s.Rationale = rationale.String
		s.Metadata = metadata.String
		s.Timestamp = ts

		if scorer.Valid && scorer.String != "" {
			if err := json.Unmarshal([]byte(scorer.String), &s.ScorerIdentifier); err != nil {
				return nil, fmt.Errorf("failed to unmarshal scorer identifier: %w", err)
			}
		}

		scores = append(scores, &s)
	}

	return scores, rows.Err()
}

// marshalOrNil JSON-encodes v, returning nil for empty values so the column
// stays NULL.
func marshalOrNil(v any) (any, error) {
	switch val := v.(type) {
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	case []prompt.Identifier:
		if len(val) == 0 {
			return nil, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// marshalIdentifier JSON-encodes an identifier, returning nil for the zero value.
func marshalIdentifier(id prompt.Identifier) (any, error) {
	if id.IsZero() {
		return nil, nil
	}

	data, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
