// Package invariant guards the tier-3 failures spec.md §7 calls fatal:
// index/bucket mismatches, a negative balance surviving settlement, a
// best-price cache out of step with the sorted index. These indicate a
// bug, not a user error, so unlike every other error path in this module
// they are not recovered locally.
package invariant

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Check aborts the process if cond is false. It is only for invariants
// that must hold in every reachable state; ordinary validation failures
// belong in a ResultCode, not here. log.Fatal terminates the process
// after logging, so Check never returns when cond is false.
func Check(cond bool, msg string, args ...any) {
	if cond {
		return
	}
	log.Fatal().Str("invariant", fmt.Sprintf(msg, args...)).Msg("invariant violated, aborting")
}
