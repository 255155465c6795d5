// matchmaker/syncer/moderation_syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/apperr"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/lobby"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/config"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
	log "github.com/sirupsen/logrus"
)

// MatchStore reads and finalizes persisted matches.
type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*models.MatchRecord, error)
	FinalizeResults(ctx context.Context, id string, results []models.MemberResult) (bool, error)
}

// ModerationStore lists and prunes moderation records.
type ModerationStore interface {
	ListModerated(ctx context.Context) ([]models.ModerationRecord, error)
	DeleteRecord(ctx context.Context, id string) error
}

// ResultApplier applies a finalized rating change to a player.
type ResultApplier interface {
	ApplyResult(ctx context.Context, name string, delta float64) error
}

// LobbyLookup finds live lobbies by id.
type LobbyLookup interface {
	Get(id string) (*lobby.Lobby, bool)
}

// SweepStats summarises one sweep.
type SweepStats struct {
	Records   int
	Finalized int
	Orphaned  int
	Stopped   int
	Failed    int
}

// ModerationSyncer periodically finalizes moderated matches and stops the
// lobbies they were played from.
type ModerationSyncer struct {
	config     *config.MatchmakerServiceConfig
	matches    MatchStore
	moderation ModerationStore
	ratings    ResultApplier
	lobbies    LobbyLookup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewModerationSyncer creates a new ModerationSyncer instance.
func NewModerationSyncer(
	cfg *config.MatchmakerServiceConfig,
	matches MatchStore,
	moderation ModerationStore,
	ratings ResultApplier,
	lobbies LobbyLookup,
) *ModerationSyncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &ModerationSyncer{
		config:     cfg,
		matches:    matches,
		moderation: moderation,
		ratings:    ratings,
		lobbies:    lobbies,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start initiates the sweep loop. This should be run in a goroutine.
func (ms *ModerationSyncer) Start() {
	log.Printf("Moderation Syncer starting with sweep interval: %v", ms.config.ModerationInterval)
	ticker := time.NewTicker(ms.config.ModerationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.ctx.Done():
			log.Println("Moderation Syncer shutting down.")
			return
		case <-ticker.C:
			ms.performSweep()
		}
	}
}

// Stop gracefully stops the sweep loop.
func (ms *ModerationSyncer) Stop() {
	ms.cancel()
}

func (ms *ModerationSyncer) performSweep() SweepStats {
	ctx := ms.ctx
	if ms.config.ModerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ms.ctx, ms.config.ModerationTimeout)
		defer cancel()
	}
	return ms.Sweep(ctx)
}

// Sweep processes every moderated record once. A failing record is logged
// and the sweep moves on.
func (ms *ModerationSyncer) Sweep(ctx context.Context) SweepStats {
	var stats SweepStats
	records, err := ms.moderation.ListModerated(ctx)
	if err != nil {
		log.Errorf("Moderation sweep: failed to list moderated matches: %v", err)
		return stats
	}
	stats.Records = len(records)

	for _, record := range records {
		if err := ms.processRecord(ctx, record, &stats); err != nil {
			stats.Failed++
			log.WithFields(log.Fields{"record": record.ID, "match": record.MatchID}).Errorf("Moderation sweep: %v", err)
		}
	}
	if stats.Records > 0 {
		log.Printf("Moderation sweep finished: %d records, %d finalized, %d orphaned, %d lobbies stopped, %d failed",
			stats.Records, stats.Finalized, stats.Orphaned, stats.Stopped, stats.Failed)
	}
	return stats
}

func (ms *ModerationSyncer) processRecord(ctx context.Context, record models.ModerationRecord, stats *SweepStats) error {
	match, err := ms.matches.GetMatch(ctx, record.MatchID)
	if errors.Is(err, apperr.ErrNotFound) {
		if err := ms.moderation.DeleteRecord(ctx, record.ID); err != nil {
			return fmt.Errorf("failed to delete orphaned record: %w", err)
		}
		stats.Orphaned++
		log.WithFields(log.Fields{"record": record.ID, "match": record.MatchID}).Info("Deleted moderation record for a missing match")
		return nil
	}
	if err != nil {
		return err
	}

	if !match.Finalized {
		if err := ms.finalize(ctx, match, stats); err != nil {
			return err
		}
	}

	if l, ok := ms.lobbies.Get(match.LobbyID); ok && l.Stop(ctx) {
		stats.Stopped++
	}
	return nil
}

func (ms *ModerationSyncer) finalize(ctx context.Context, match *models.MatchRecord, stats *SweepStats) error {
	results, err := match.CalculateResults()
	if err != nil {
		return fmt.Errorf("cannot finalize match %s: %w", match.ID, err)
	}
	done, err := ms.matches.FinalizeResults(ctx, match.ID, results)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	stats.Finalized++
	for _, r := range results {
		if err := ms.ratings.ApplyResult(ctx, r.Name, r.RatingDelta); err != nil {
			log.WithFields(log.Fields{"match": match.ID, "member": r.Name}).Warnf("Failed to apply rating change: %v", err)
		}
	}
	return nil
}
