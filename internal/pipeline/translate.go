// Package pipeline contains the asynchronous flows that move messages
// through the adaptation service: direct translation, strategy assist, and
// background profile analysis. All of them read and write the session
// store; none of them retries a failed request.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bridgetalk/internal/adapt"
	"bridgetalk/internal/session"
)

// PlaceholderText marks a message whose adaptation is still in flight.
const PlaceholderText = "…"

// FailedText is the terminal sentinel patched into a message whose
// adaptation failed. Resending is the only retry.
const FailedText = "Translation unavailable. Resend to try again."

// Translator turns one outgoing message into a resolved, adapted message
// with an optimistic placeholder visible immediately.
type Translator struct {
	store  *session.Store
	client *adapt.Client
	log    *zap.Logger
}

// NewTranslator creates a translation pipeline over the given store and
// adaptation client.
func NewTranslator(store *session.Store, client *adapt.Client, log *zap.Logger) *Translator {
	return &Translator{store: store, client: client, log: log}
}

// Send appends a placeholder message to the subject's sequence and starts
// the adaptation in the background. The returned id is the join key for
// the eventual patch; the caller observes resolution by re-reading the
// store.
func (t *Translator) Send(ctx context.Context, subjectID, text string, sender session.Role) (string, error) {
	sess := t.store.Current()
	subj, ok := sess.SubjectByID(subjectID)
	if !ok {
		return "", fmt.Errorf("unknown subject %q", subjectID)
	}

	msg := session.Message{
		ID:        uuid.NewString(),
		Original:  text,
		Adapted:   PlaceholderText,
		Sender:    sender,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := t.store.Mutate(ctx, func(s session.Session) session.Session {
		return session.AppendMessage(s, subjectID, msg)
	}); err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}

	go t.resolve(ctx, subjectID, msg.ID, text, sender, subj)
	return msg.ID, nil
}

// resolve runs the single adaptation attempt and patches the message by
// id. The keyed patch makes the update safe against interim appends.
func (t *Translator) resolve(ctx context.Context, subjectID, messageID, text string, sender session.Role, subj session.Subject) {
	res, err := t.client.Adapt(ctx, text, sender, subj)

	patch := func(m *session.Message) {
		m.Adapted = res.AdaptedText
		m.Note = res.Note
	}
	if err != nil {
		t.log.Warn("adaptation failed",
			zap.String("subject", subjectID),
			zap.String("message", messageID),
			zap.Error(err))
		patch = func(m *session.Message) {
			m.Adapted = FailedText
		}
	}

	if _, err := t.store.Mutate(ctx, func(s session.Session) session.Session {
		return session.PatchMessage(s, subjectID, messageID, patch)
	}); err != nil {
		t.log.Error("patch message failed",
			zap.String("message", messageID),
			zap.Error(err))
	}
}
