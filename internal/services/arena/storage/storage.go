// Package storage defines persistence contracts for finished and running
// battles. The engine keeps live state in memory; this layer records what
// happened for audit and replay.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// BattleRecord stores the immutable identity of one battle.
type BattleRecord struct {
	ID          string
	Players     [2]string
	RosterIndex [2]int
	Mode        string
	StartedAt   time.Time
}

// TurnRecord stores one state-changing call against a battle.
type TurnRecord struct {
	ID       string
	BattleID string
	// Seq orders records within a battle, starting at 1.
	Seq    int64
	Action string
	Player int
	Turn   uint64
	Flag   string
	Winner string
	// Events is the JSON-encoded event list the call produced.
	Events    []byte
	CreatedAt time.Time
}

// TurnPage stores one page of turn records.
type TurnPage struct {
	Turns         []TurnRecord
	NextPageToken string
}

// ResultRecord stores how a battle ended.
type ResultRecord struct {
	BattleID string
	Winner   string
	Turns    uint64
	// Reason is "knockout" or "timeout".
	Reason  string
	EndedAt time.Time
}

// BattleStore persists battle records.
type BattleStore interface {
	CreateBattle(ctx context.Context, b BattleRecord) error
	GetBattle(ctx context.Context, id string) (BattleRecord, error)
}

// TurnStore persists the per-battle turn log.
type TurnStore interface {
	AppendTurn(ctx context.Context, rec TurnRecord) error
	ListTurns(ctx context.Context, battleID string, pageSize int, pageToken string) (TurnPage, error)
}

// ResultStore persists battle outcomes.
type ResultStore interface {
	SaveResult(ctx context.Context, r ResultRecord) error
	GetResult(ctx context.Context, battleID string) (ResultRecord, error)
}

// Store is the full arena persistence surface.
type Store interface {
	BattleStore
	TurnStore
	ResultStore
	Close() error
}
