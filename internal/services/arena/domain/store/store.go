// Package store keeps per-battle configuration and status in a bounded pool
// of reusable storage slots.
//
// A slot belongs to an unordered pair of players, so the two players can hold
// at most one battle in progress whichever seats they take. Each new battle between the
// pair bumps the pair's generation nonce, derives a fresh battle id from
// (pair, nonce), and resets the slot to defaults through Config.Reset rather
// than allocating new storage. Status headers live in a separate map whose
// entry is freed when the battle ends; the final status stays on the slot
// until the pair's next battle reuses it.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/hashing"
	"github.com/louisbranch/monarena/internal/services/arena/domain/packing"
)

var (
	// ErrSlotBusy indicates the pair's storage slot holds an unfinished battle.
	ErrSlotBusy = errors.New("storage slot holds a battle in progress")
	// ErrNotFound indicates no battle with the given id is stored.
	ErrNotFound = errors.New("battle not found")
	// ErrPlayerRequired indicates an empty player id.
	ErrPlayerRequired = errors.New("player id is required")
)

// Commitment is the commit/reveal bookkeeping of the current turn.
type Commitment struct {
	Hash        [32]byte
	Committed   bool
	CommittedAt time.Time
	Revealed    [2]bool
	RevealedAt  [2]time.Time
}

// Config is one reusable storage slot.
type Config struct {
	PairKey    string
	Generation uint64
	Battle     battle.Battle
	InProgress bool
	Finished   bool
	Final      battle.Status

	Teams  [2][]battle.RosterSlot
	States [2][]battle.CombatantState
	KO     packing.KOBitmap

	Decisions [2][battle.SlotsPerPlayer]battle.Decision
	Submitted [2][battle.SlotsPerPlayer]bool
	Commit    Commitment

	global       EffectList
	monEffects   [2][battle.MaxTeamSize]EffectList
	effectCounts [2]uint64
}

// Reset returns the slot to its default state, keeping allocated capacity.
// Every combatant delta is set to the cleared sentinel.
func (c *Config) Reset() {
	c.Battle = battle.Battle{}
	c.InProgress = false
	c.Finished = false
	c.Final = battle.Status{}
	for p := range c.Teams {
		c.Teams[p] = c.Teams[p][:0]
		c.States[p] = c.States[p][:0]
		for m := range c.monEffects[p] {
			c.monEffects[p][m].reset()
		}
		c.effectCounts[p] = 0
	}
	c.KO = 0
	c.ClearDecisions()
	c.Commit = Commitment{}
	c.global.reset()
}

// SetTeams installs both rosters and clears their combatant states.
func (c *Config) SetTeams(teams [2][]battle.RosterSlot) {
	for p := range teams {
		c.Teams[p] = append(c.Teams[p][:0], teams[p]...)
		c.States[p] = c.States[p][:0]
		for range teams[p] {
			c.States[p] = append(c.States[p], battle.ClearedCombatant())
		}
	}
}

// ClearDecisions forgets every submitted decision.
func (c *Config) ClearDecisions() {
	c.Decisions = [2][battle.SlotsPerPlayer]battle.Decision{}
	c.Submitted = [2][battle.SlotsPerPlayer]bool{}
}

// Effects returns the list for a scope.
func (c *Config) Effects(t battle.Target) *EffectList {
	if t.Global {
		return &c.global
	}
	return &c.monEffects[t.Player][t.Mon]
}

// AppendEffect allocates a new slot in the scope's list.
func (c *Config) AppendEffect(t battle.Target, a Attachment) (int, error) {
	if !t.Global {
		if t.Player < 0 || t.Player > 1 || t.Mon < 0 || t.Mon >= len(c.Teams[t.Player]) {
			return 0, fmt.Errorf("%w: player %d mon %d", packing.ErrIndexOutOfRange, t.Player, t.Mon)
		}
		word, err := packing.IncrementEffectCount(c.effectCounts[t.Player], t.Mon)
		if err != nil {
			return 0, err
		}
		c.effectCounts[t.Player] = word
	}
	return c.Effects(t).append(a), nil
}

// EffectCount returns the number of slots allocated for a scope.
func (c *Config) EffectCount(t battle.Target) int {
	if t.Global {
		return c.global.Len()
	}
	return packing.EffectCount(c.effectCounts[t.Player], t.Mon)
}

// Clone deep-copies the slot so a failed call can be rolled back.
func (c *Config) Clone() *Config {
	out := *c
	for p := range c.Teams {
		out.Teams[p] = append([]battle.RosterSlot(nil), c.Teams[p]...)
		out.States[p] = append([]battle.CombatantState(nil), c.States[p]...)
		for m := range c.monEffects[p] {
			out.monEffects[p][m] = c.monEffects[p][m].clone()
		}
	}
	out.global = c.global.clone()
	return &out
}

// Store is the pool of storage slots and live status headers.
type Store struct {
	slots    map[string]*Config
	nonces   map[string]uint64
	byID     map[string]*Config
	statuses map[string]*battle.Status
}

// New returns an empty store.
func New() *Store {
	return &Store{
		slots:    make(map[string]*Config),
		nonces:   make(map[string]uint64),
		byID:     make(map[string]*Config),
		statuses: make(map[string]*battle.Status),
	}
}

// PairKey derives the storage key of a player pair. Seat order does not
// matter.
func PairKey(p0, p1 string) string {
	if p1 < p0 {
		p0, p1 = p1, p0
	}
	return hashing.Hex(hashing.Keccak256([]byte(p0), []byte{0}, []byte(p1)))
}

// BattleID derives the id of the nonce-th battle between a pair.
func BattleID(pairKey string, nonce uint64) string {
	return hashing.Hex(hashing.Keccak256([]byte(pairKey), hashing.PutUint64(nonce)))
}

// Acquire claims the pair's slot for a new battle, resetting it to defaults.
func (s *Store) Acquire(p0, p1 string) (*Config, error) {
	if strings.TrimSpace(p0) == "" || strings.TrimSpace(p1) == "" {
		return nil, ErrPlayerRequired
	}
	key := PairKey(p0, p1)
	cfg, ok := s.slots[key]
	if ok && cfg.InProgress {
		return nil, ErrSlotBusy
	}
	if !ok {
		cfg = &Config{PairKey: key}
		s.slots[key] = cfg
	} else {
		delete(s.byID, cfg.Battle.ID)
	}
	nonce := s.nonces[key] + 1
	s.nonces[key] = nonce

	cfg.Reset()
	cfg.Generation = nonce
	cfg.Battle.ID = BattleID(key, nonce)
	cfg.InProgress = true
	s.byID[cfg.Battle.ID] = cfg
	return cfg, nil
}

// Abandon releases a slot claimed by Acquire when battle setup fails.
func (s *Store) Abandon(cfg *Config) {
	delete(s.byID, cfg.Battle.ID)
	cfg.Reset()
}

// Config returns the slot currently holding battle id.
func (s *Store) Config(id string) (*Config, error) {
	cfg, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cfg, nil
}

// Status returns the live status header of battle id.
func (s *Store) Status(id string) (*battle.Status, bool) {
	st, ok := s.statuses[id]
	return st, ok
}

// PutStatus stores a status header.
func (s *Store) PutStatus(id string, st *battle.Status) {
	s.statuses[id] = st
}

// Finish frees the status header and releases the slot for the next battle.
// The slot keeps the finished battle's data and final status until it is
// reused.
func (s *Store) Finish(id string) {
	st, live := s.statuses[id]
	delete(s.statuses, id)
	cfg, ok := s.byID[id]
	if !ok {
		return
	}
	cfg.InProgress = false
	if live {
		cfg.Finished = true
		cfg.Final = *st
	}
}

// Final returns the last status of a finished battle whose slot has not been
// reused.
func (s *Store) Final(id string) (battle.Status, bool) {
	cfg, ok := s.byID[id]
	if !ok || !cfg.Finished {
		return battle.Status{}, false
	}
	return cfg.Final, true
}

// Retained returns the number of battles still addressable by id.
func (s *Store) Retained() int { return len(s.byID) }

// Slots returns the number of allocated storage slots.
func (s *Store) Slots() int { return len(s.slots) }

// Live returns the number of battles with a status header.
func (s *Store) Live() int { return len(s.statuses) }

// LiveIDs returns the ids of battles with a status header, sorted.
func (s *Store) LiveIDs() []string {
	ids := make([]string, 0, len(s.statuses))
	for id := range s.statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
