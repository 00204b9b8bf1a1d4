package risk

import (
	"sort"

	"github.com/llc-993/matching-core/internal/core"
)

// UserProfileSnapshot is the full on-the-wire state of one user profile,
// including the balance-adjustment idempotency window, so a restored
// engine rejects exactly the same replayed adjustments the original would.
type UserProfileSnapshot struct {
	Uid           core.UserId
	Suspended     bool
	Accounts      map[core.Currency]int64
	AdjustmentIds [adjustmentHistorySize]core.OrderId
	AdjustmentPos int
}

func (p *UserProfile) toSnapshot() UserProfileSnapshot {
	accounts := make(map[core.Currency]int64, len(p.Accounts))
	for k, v := range p.Accounts {
		accounts[k] = v
	}
	return UserProfileSnapshot{
		Uid:           p.Uid,
		Suspended:     p.Suspended,
		Accounts:      accounts,
		AdjustmentIds: p.adjustmentIds,
		AdjustmentPos: p.adjustmentPos,
	}
}

func profileFromSnapshot(s UserProfileSnapshot) *UserProfile {
	p := NewUserProfile(s.Uid)
	p.Suspended = s.Suspended
	p.Accounts = s.Accounts
	p.adjustmentIds = s.AdjustmentIds
	p.adjustmentPos = s.AdjustmentPos
	for _, id := range s.AdjustmentIds {
		if id != 0 {
			p.adjustmentSet[id] = struct{}{}
		}
	}
	return p
}

// Snapshot returns every user profile this shard owns, sorted by uid so
// two runs over the same state produce byte-identical output.
func (e *Engine) Snapshot() []UserProfileSnapshot {
	uids := make([]core.UserId, 0, len(e.users))
	for uid := range e.users {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	out := make([]UserProfileSnapshot, 0, len(uids))
	for _, uid := range uids {
		out = append(out, e.users[uid].toSnapshot())
	}
	return out
}

// Restore replaces this shard's users wholesale with the given snapshot.
func (e *Engine) Restore(profiles []UserProfileSnapshot) {
	e.users = make(map[core.UserId]*UserProfile, len(profiles))
	for _, s := range profiles {
		e.users[s.Uid] = profileFromSnapshot(s)
	}
}
