package app

import (
	"log"
	"sync"

	"github.com/louisbranch/monarena/internal/platform/id"
	"github.com/louisbranch/monarena/internal/services/arena/domain/engine"
)

// subscriberBuffer is how many updates a slow spectator may lag behind before
// updates to it are dropped.
const subscriberBuffer = 32

// Update is one state-changing call as seen by spectators.
type Update struct {
	BattleID string         `json:"battle_id"`
	Action   Action         `json:"action"`
	Player   int            `json:"player"`
	Turn     uint64         `json:"turn"`
	Winner   string         `json:"winner"`
	Flag     string         `json:"flag"`
	Events   []engine.Event `json:"events"`
}

// Subscription receives the updates of one battle. C is closed when the
// battle ends or the subscription is cancelled.
type Subscription struct {
	ID       string
	BattleID string
	C        <-chan Update

	ch chan Update
}

// Hub fans battle updates out to spectators.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[string]*Subscription
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[string]*Subscription)}
}

// Subscribe registers a spectator of battleID. The returned cancel func is
// safe to call more than once.
func (h *Hub) Subscribe(battleID string) (*Subscription, func(), error) {
	subID, err := id.NewID()
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan Update, subscriberBuffer)
	sub := &Subscription{ID: subID, BattleID: battleID, C: ch, ch: ch}

	h.mu.Lock()
	byID, ok := h.subs[battleID]
	if !ok {
		byID = make(map[string]*Subscription)
		h.subs[battleID] = byID
	}
	byID[subID] = sub
	h.mu.Unlock()

	return sub, func() { h.cancel(battleID, subID) }, nil
}

func (h *Hub) cancel(battleID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID := h.subs[battleID]
	sub, ok := byID[subID]
	if !ok {
		return
	}
	delete(byID, subID)
	if len(byID) == 0 {
		delete(h.subs, battleID)
	}
	close(sub.ch)
}

// Publish delivers u to every spectator of its battle without blocking.
func (h *Hub) Publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[u.BattleID] {
		select {
		case sub.ch <- u:
		default:
			log.Printf("arena: spectator %s lagging on %s, update dropped", sub.ID, u.BattleID)
		}
	}
}

// Close ends every subscription of battleID.
func (h *Hub) Close(battleID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[battleID] {
		close(sub.ch)
	}
	delete(h.subs, battleID)
}

// Spectators returns the number of subscriptions on battleID.
func (h *Hub) Spectators(battleID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[battleID])
}
