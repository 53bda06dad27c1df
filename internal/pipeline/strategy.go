package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bridgetalk/internal/adapt"
	"bridgetalk/internal/session"
)

// OptionsResult is what a strategy-assist request produces: either three
// options awaiting user choice, or the id of the message appended by the
// direct-translation fallback.
type OptionsResult struct {
	SubjectID string
	Intent    string
	Options   []adapt.StrategyOption
	FellBack  bool
	MessageID string // set when FellBack
}

// Assist converts a stated intent into three phrasing strategies, deferring
// commitment until the user picks one. Only one request is in flight at a
// time; a new request replaces a pending unconsumed result.
type Assist struct {
	store      *session.Store
	client     *adapt.Client
	translator *Translator
	log        *zap.Logger

	mu      sync.Mutex
	pending *OptionsResult
	ready   bool
}

// NewAssist creates a strategy-assist pipeline. The translator is the
// fallback path when option generation fails.
func NewAssist(store *session.Store, client *adapt.Client, translator *Translator, log *zap.Logger) *Assist {
	return &Assist{store: store, client: client, translator: translator, log: log}
}

// Request starts async option generation for the given intent. On failure
// the intent is routed through the direct-translation pipeline instead, so
// the user is never blocked by the richer path failing.
func (a *Assist) Request(ctx context.Context, subjectID, intent string) {
	go func() {
		result := a.generate(ctx, subjectID, intent)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.pending = result
		a.ready = true
	}()
}

// Consume returns the pending result if one is ready, clearing the slot.
func (a *Assist) Consume() (*OptionsResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready {
		return nil, false
	}
	result := a.pending
	a.pending = nil
	a.ready = false
	return result, result != nil
}

func (a *Assist) generate(ctx context.Context, subjectID, intent string) *OptionsResult {
	result := &OptionsResult{SubjectID: subjectID, Intent: intent}

	sess := a.store.Current()
	subj, ok := sess.SubjectByID(subjectID)
	if !ok {
		a.log.Error("strategy request for unknown subject", zap.String("subject", subjectID))
		return result
	}

	recent := sess.Messages[subjectID]
	if len(recent) > adapt.RecentContextLimit {
		recent = recent[len(recent)-adapt.RecentContextLimit:]
	}

	options, err := a.client.GenerateOptions(ctx, intent, subj, recent)
	if err != nil {
		a.log.Warn("option generation failed, falling back to direct translation",
			zap.String("subject", subjectID),
			zap.Error(err))
		result.FellBack = true
		msgID, sendErr := a.translator.Send(ctx, subjectID, intent, session.RoleTeacher)
		if sendErr != nil {
			a.log.Error("fallback translation failed", zap.Error(sendErr))
			return result
		}
		result.MessageID = msgID
		return result
	}

	result.Options = options
	return result
}

// Commit converts exactly one chosen option into a resolved message on the
// subject's sequence. The original text is the option's refined English
// phrasing, not the raw intent. Discarding options needs no call here:
// uncommitted options have no session effect.
func (a *Assist) Commit(ctx context.Context, subjectID string, opt adapt.StrategyOption) (string, error) {
	msg := session.Message{
		ID:        uuid.NewString(),
		Original:  opt.ReferenceText,
		Adapted:   opt.TargetText,
		Note:      fmt.Sprintf("Strategy: %s", opt.Label),
		Sender:    session.RoleTeacher,
		CreatedAt: time.Now().UTC(),
		Strategy:  opt.Label,
		Reasoning: opt.Rationale,
	}

	if _, err := a.store.Mutate(ctx, func(s session.Session) session.Session {
		return session.AppendMessage(s, subjectID, msg)
	}); err != nil {
		return "", fmt.Errorf("commit option: %w", err)
	}
	return msg.ID, nil
}
