package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"bridgetalk/internal/adapt"
	"bridgetalk/internal/session"
)

// AnalysisThreshold is the minimum number of messages accumulated since the
// last analysis before a new one is worth requesting.
const AnalysisThreshold = 3

// Analyzer opportunistically re-derives a subject's sensitivity profile
// from accumulated history. It runs detached from the foreground flows:
// a subject switch completes immediately regardless of the outcome, and
// failures are logged and abandoned.
type Analyzer struct {
	store  *session.Store
	client *adapt.Client
	log    *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewAnalyzer creates a profile-analysis scheduler.
func NewAnalyzer(store *session.Store, client *adapt.Client, log *zap.Logger) *Analyzer {
	return &Analyzer{
		store:    store,
		client:   client,
		log:      log,
		inflight: map[string]struct{}{},
	}
}

// SubjectSwitched is the trigger: call it with the subject being switched
// away from. It reports whether an analysis was started. A second trigger
// for the same subject while one is outstanding is suppressed, and nothing
// starts below the accumulation threshold.
func (a *Analyzer) SubjectSwitched(ctx context.Context, subjectID string) bool {
	sess := a.store.Current()
	subj, ok := sess.SubjectByID(subjectID)
	if !ok {
		return false
	}

	count := sess.MessageCount(subjectID)
	if count-subj.LastAnalyzedIndex < AnalysisThreshold {
		return false
	}

	a.mu.Lock()
	if _, busy := a.inflight[subjectID]; busy {
		a.mu.Unlock()
		return false
	}
	a.inflight[subjectID] = struct{}{}
	a.mu.Unlock()

	// Snapshot history and count now. Messages appended while the request
	// is in flight belong to the next analysis, so exactly this count is
	// written back on success.
	history := make([]session.Message, count)
	copy(history, sess.Messages[subjectID])

	go a.run(ctx, subj, history, count)
	return true
}

func (a *Analyzer) run(ctx context.Context, subj session.Subject, history []session.Message, analyzedCount int) {
	defer func() {
		a.mu.Lock()
		delete(a.inflight, subj.ID)
		a.mu.Unlock()
	}()

	update, err := a.client.AnalyzeProfile(ctx, subj, history)
	if err != nil {
		// Leave the index unchanged so the same range is reconsidered on
		// the next qualifying trigger.
		a.log.Warn("profile analysis failed",
			zap.String("subject", subj.ID),
			zap.Int("messages", analyzedCount),
			zap.Error(err))
		return
	}

	if _, err := a.store.Mutate(ctx, func(s session.Session) session.Session {
		cur, ok := s.SubjectByID(subj.ID)
		if !ok {
			// Subject deleted while the analysis was in flight.
			return s
		}
		cur.Sensitivities = update.Sensitivities
		cur.Guide = update.Guide
		cur.LastAnalyzedIndex = analyzedCount
		return session.UpdateSubject(s, cur)
	}); err != nil {
		a.log.Error("profile merge failed", zap.String("subject", subj.ID), zap.Error(err))
		return
	}

	a.log.Info("profile analysis merged",
		zap.String("subject", subj.ID),
		zap.Int("analyzedIndex", analyzedCount))
}
