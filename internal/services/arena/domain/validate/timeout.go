package validate

import (
	"time"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

// Timeout returns the player who forfeits under c, if anyone.
//
// A party that has not acted at all this round gets twice the configured
// duration, measured from the end of the previous turn. A party that is only
// waiting to answer the other side's commit or reveal gets one duration,
// measured from that commit or reveal. A deadline is missed once now reaches
// it.
func Timeout(c battle.Clock) (int, bool) {
	if c.Duration <= 0 {
		return 0, false
	}
	if p, ok := c.Flag.Single(); ok {
		if !c.Revealed[p] && expired(c.Now, c.LastTurnAt, 2*c.Duration) {
			return p, true
		}
		return 0, false
	}

	committer := c.Committer
	revealer := 1 - committer
	switch {
	case !c.Committed:
		if expired(c.Now, c.LastTurnAt, 2*c.Duration) {
			return committer, true
		}
	case !c.Revealed[revealer]:
		if expired(c.Now, c.CommittedAt, c.Duration) {
			return revealer, true
		}
	case !c.Revealed[committer]:
		if expired(c.Now, c.RevealedAt[revealer], c.Duration) {
			return committer, true
		}
	}
	return 0, false
}

// Committer returns the player who commits first on a two-sided turn.
func Committer(turn uint64) int {
	return int(turn % 2)
}

func expired(now, since time.Time, d time.Duration) bool {
	return !now.Before(since.Add(d))
}
