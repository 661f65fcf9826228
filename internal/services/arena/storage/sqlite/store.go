// Package sqlite provides the SQLite-backed arena store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/louisbranch/monarena/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/monarena/internal/services/arena/storage"
	"github.com/louisbranch/monarena/internal/services/arena/storage/sqlite/migrations"
)

// Store persists arena records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite arena store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// CreateBattle inserts one battle record.
func (s *Store) CreateBattle(ctx context.Context, b storage.BattleRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(b.ID)
	if id == "" {
		return fmt.Errorf("battle id is required")
	}
	if b.Players[0] == "" || b.Players[1] == "" {
		return fmt.Errorf("both players are required")
	}
	startedAt := b.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO battles (id, player0, player1, roster0, roster1, mode, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, b.Players[0], b.Players[1], b.RosterIndex[0], b.RosterIndex[1], b.Mode, toMillis(startedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create battle: %w", err)
	}
	return nil
}

// GetBattle returns one battle record by id.
func (s *Store) GetBattle(ctx context.Context, id string) (storage.BattleRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.BattleRecord{}, err
	}
	var (
		b         storage.BattleRecord
		startedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, player0, player1, roster0, roster1, mode, started_at
		   FROM battles
		  WHERE id = ?`,
		strings.TrimSpace(id),
	).Scan(&b.ID, &b.Players[0], &b.Players[1], &b.RosterIndex[0], &b.RosterIndex[1], &b.Mode, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.BattleRecord{}, storage.ErrNotFound
		}
		return storage.BattleRecord{}, fmt.Errorf("get battle: %w", err)
	}
	b.StartedAt = fromMillis(startedAt)
	return b, nil
}

// AppendTurn adds one record to a battle's turn log. A zero Seq is assigned
// the next sequence number for the battle.
func (s *Store) AppendTurn(ctx context.Context, rec storage.TurnRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if rec.ID == "" || rec.BattleID == "" {
		return fmt.Errorf("turn id and battle id are required")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	events := rec.Events
	if len(events) == 0 {
		events = []byte("[]")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seq := rec.Seq
	if seq == 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM battle_turns WHERE battle_id = ?`,
			rec.BattleID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("next turn seq: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO battle_turns (id, battle_id, seq, action, player, turn, flag, winner, events, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.BattleID, seq, rec.Action, rec.Player, int64(rec.Turn), rec.Flag, rec.Winner, string(events), toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("append turn: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turn: %w", err)
	}
	return nil
}

// ListTurns returns one page of a battle's turn log in sequence order. The
// page token is the last sequence number of the previous page.
func (s *Store) ListTurns(ctx context.Context, battleID string, pageSize int, pageToken string) (storage.TurnPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.TurnPage{}, err
	}
	if pageSize <= 0 {
		return storage.TurnPage{}, fmt.Errorf("page size must be greater than zero")
	}
	var after int64
	if tok := strings.TrimSpace(pageToken); tok != "" {
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil || v < 0 {
			return storage.TurnPage{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		after = v
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, battle_id, seq, action, player, turn, flag, winner, events, created_at
		   FROM battle_turns
		  WHERE battle_id = ? AND seq > ?
		  ORDER BY seq ASC
		  LIMIT ?`,
		battleID, after, pageSize+1,
	)
	if err != nil {
		return storage.TurnPage{}, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	page := storage.TurnPage{Turns: make([]storage.TurnRecord, 0, pageSize)}
	for rows.Next() {
		var (
			rec       storage.TurnRecord
			turn      int64
			events    string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.BattleID, &rec.Seq, &rec.Action, &rec.Player, &turn, &rec.Flag, &rec.Winner, &events, &createdAt); err != nil {
			return storage.TurnPage{}, fmt.Errorf("list turns: %w", err)
		}
		rec.Turn = uint64(turn)
		rec.Events = []byte(events)
		rec.CreatedAt = fromMillis(createdAt)
		page.Turns = append(page.Turns, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.TurnPage{}, fmt.Errorf("list turns: %w", err)
	}
	if len(page.Turns) > pageSize {
		page.Turns = page.Turns[:pageSize]
		page.NextPageToken = strconv.FormatInt(page.Turns[pageSize-1].Seq, 10)
	}
	return page, nil
}

// SaveResult records how a battle ended. A battle has at most one result.
func (s *Store) SaveResult(ctx context.Context, r storage.ResultRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if r.BattleID == "" {
		return fmt.Errorf("battle id is required")
	}
	endedAt := r.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO battle_results (battle_id, winner, turns, reason, ended_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.BattleID, r.Winner, int64(r.Turns), r.Reason, toMillis(endedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// GetResult returns a battle's result.
func (s *Store) GetResult(ctx context.Context, battleID string) (storage.ResultRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ResultRecord{}, err
	}
	var (
		r       storage.ResultRecord
		turns   int64
		endedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT battle_id, winner, turns, reason, ended_at
		   FROM battle_results
		  WHERE battle_id = ?`,
		battleID,
	).Scan(&r.BattleID, &r.Winner, &turns, &r.Reason, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ResultRecord{}, storage.ErrNotFound
		}
		return storage.ResultRecord{}, fmt.Errorf("get result: %w", err)
	}
	r.Turns = uint64(turns)
	r.EndedAt = fromMillis(endedAt)
	return r, nil
}

func sqliteCode(err error) (int, bool) {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code(), true
	}
	return 0, false
}

func isUniqueViolation(err error) bool {
	if code, ok := sqliteCode(err); ok {
		return code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if code, ok := sqliteCode(err); ok {
		return code == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
