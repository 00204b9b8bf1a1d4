// Package exchange wires config, pipeline, journal and snapshot store
// into the single entry point a server process or a replay tool drives:
// SubmitCommand for the live path, ReplayJournal and LoadLatestSnapshot
// for recovery, TakeSnapshot to checkpoint.
package exchange

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/llc-993/matching-core/internal/config"
	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/journal"
	"github.com/llc-993/matching-core/internal/pipeline"
	"github.com/llc-993/matching-core/internal/snapshot"
)

// Core is the exchange's top-level wiring: every command that reaches it
// is journaled before it can affect book or balance state, then run
// through the pipeline, then handed to whatever consumer was configured.
type Core struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	journal  *journal.Journaler
	store    *snapshot.Store

	// sessionID tags every snapshot/journal-recovery log line this Core
	// instance emits, so logs from two overlapping processes (e.g. a live
	// server and an offline replay drill reading the same journal) can be
	// told apart.
	sessionID string

	seq uint64
}

func New(cfg *config.Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("exchange: invalid config: %w", err)
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("exchange: open journal: %w", err)
	}

	store, err := snapshot.Open(cfg.Snapshot.Dir)
	if err != nil {
		return nil, fmt.Errorf("exchange: open snapshot store: %w", err)
	}

	return &Core{
		cfg:       cfg,
		pipeline:  pipeline.NewPipeline(cfg.Pipeline.RiskEngines, cfg.Pipeline.MatchingEngines, cfg.Pipeline.MsgsPerGroup),
		journal:   j,
		store:     store,
		sessionID: uuid.New().String(),
	}, nil
}

func (c *Core) Pipeline() *pipeline.Pipeline { return c.pipeline }

// SessionID identifies this Core instance across its own log lines; it is
// minted fresh on every New and does not survive a restart.
func (c *Core) SessionID() string { return c.sessionID }

func (c *Core) SetResultConsumer(consumer pipeline.ResultConsumer) {
	c.pipeline.SetResultConsumer(consumer)
}

func (c *Core) AddSymbol(spec core.SymbolSpecification) {
	c.pipeline.AddSymbol(spec)
}

// SubmitCommand journals cmd, then runs it through the pipeline. A flush
// failure on the journal aborts the command rather than risk a trade
// settling with no durable record of the command that caused it.
func (c *Core) SubmitCommand(cmd *core.OrderCommand) error {
	if err := c.journal.WriteCommand(cmd); err != nil {
		cmd.ResultCode = core.StatePersistMatchingEngineFailed
		return fmt.Errorf("exchange: journal write failed, command rejected: %w", err)
	}
	c.seq++
	c.pipeline.HandleCommand(cmd)

	if c.cfg.Snapshot.Interval > 0 && c.seq%uint64(c.cfg.Snapshot.Interval) == 0 {
		if err := c.TakeSnapshot(); err != nil {
			log.Error().Err(err).Str("session", c.sessionID).Uint64("seq", c.seq).Msg("periodic snapshot failed")
		}
	}
	return nil
}

// TakeSnapshot writes the pipeline's current state under the current
// sequence number (the count of commands applied so far).
func (c *Core) TakeSnapshot() error {
	state := c.pipeline.Snapshot()
	if err := c.store.Save(c.seq, state); err != nil {
		return fmt.Errorf("exchange: take snapshot: %w", err)
	}
	log.Info().Str("session", c.sessionID).Uint64("seq", c.seq).Msg("snapshot written")
	return nil
}

// LoadLatestSnapshot restores the pipeline from the most recent snapshot,
// returning ok=false if the store has none yet. Symbols must already be
// registered via AddSymbol before calling this: Restore replays resting
// orders into books that already exist, it does not create them.
func (c *Core) LoadLatestSnapshot() (ok bool, err error) {
	state, seq, found, err := c.store.LoadLatest()
	if err != nil {
		return false, fmt.Errorf("exchange: load latest snapshot: %w", err)
	}
	if !found {
		return false, nil
	}
	c.pipeline.Restore(state)
	c.seq = seq
	log.Info().Str("session", c.sessionID).Uint64("seq", seq).Msg("restored from snapshot")
	return true, nil
}

// ReplayJournal re-runs the journal's commands against the pipeline,
// skipping whatever prefix the current sequence already reflects. Every
// SubmitCommand call appends exactly one journal record and advances c.seq
// by exactly one, so c.seq doubles as a count of journal records already
// applied: called on a fresh Core (seq 0) it replays the whole file; called
// after LoadLatestSnapshot (seq equal to the snapshot's sequence) it
// replays only the tail written after that snapshot, so recovery never
// re-applies a command the snapshot already reflects.
func (c *Core) ReplayJournal(path string) error {
	commands, err := journal.ReadCommands(path)
	if err != nil {
		return fmt.Errorf("exchange: replay journal: %w", err)
	}
	if c.seq > uint64(len(commands)) {
		return fmt.Errorf("exchange: replay journal: snapshot sequence %d exceeds %d journal records", c.seq, len(commands))
	}
	tail := commands[c.seq:]
	for _, cmd := range tail {
		c.pipeline.HandleCommand(cmd)
		c.seq++
	}
	log.Info().Str("session", c.sessionID).Int("applied", len(tail)).Int("skipped", len(commands)-len(tail)).Msg("journal replay complete")
	return nil
}

func (c *Core) Close() error {
	return c.journal.Close()
}
