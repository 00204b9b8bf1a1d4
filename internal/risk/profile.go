// Package risk implements per-shard balance holding and settlement: the
// risk-pre stage reserves funds against a command before it reaches
// matching, and risk-post releases or adjusts those holds once matching
// has produced its trade/reject/reduce events.
package risk

import "github.com/llc-993/matching-core/internal/core"

// adjustmentHistorySize bounds how many recent BalanceAdjustment
// transaction ids a profile remembers for idempotency; a replayed command
// with an id older than this window is, in practice, a bug upstream
// (journal replay and the gateway's own retry window are both far
// shorter), not a case this guards against.
const adjustmentHistorySize = 64

// UserProfile is one user's balances and suspension state, scoped to the
// risk shard that owns uid & shard_mask.
type UserProfile struct {
	Uid       core.UserId
	Suspended bool
	Accounts  map[core.Currency]int64

	adjustmentIds [adjustmentHistorySize]core.OrderId
	adjustmentSet map[core.OrderId]struct{}
	adjustmentPos int
}

func NewUserProfile(uid core.UserId) *UserProfile {
	return &UserProfile{
		Uid:           uid,
		Accounts:      make(map[core.Currency]int64),
		adjustmentSet: make(map[core.OrderId]struct{}),
	}
}

func (p *UserProfile) alreadyApplied(txId core.OrderId) bool {
	_, ok := p.adjustmentSet[txId]
	return ok
}

// recordApplied remembers txId as settled, evicting whatever id occupied
// the slot adjustmentHistorySize adjustments ago.
func (p *UserProfile) recordApplied(txId core.OrderId) {
	if old := p.adjustmentIds[p.adjustmentPos]; old != 0 {
		delete(p.adjustmentSet, old)
	}
	p.adjustmentIds[p.adjustmentPos] = txId
	p.adjustmentSet[txId] = struct{}{}
	p.adjustmentPos = (p.adjustmentPos + 1) % adjustmentHistorySize
}
