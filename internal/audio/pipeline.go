package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"bridgetalk/internal/session"
)

// ErrPlaybackBusy is returned when a playback request arrives while
// another message holds the playback slot. Requests are rejected, not
// queued.
var ErrPlaybackBusy = errors.New("playback already in progress")

// Pipeline speaks stored messages aloud. At most one playback is active
// at a time: the slot is acquired before any synthesis or decode step and
// released on every exit path.
type Pipeline struct {
	store *session.Store
	synth Synthesizer
	play  Player
	local LocalSpeaker
	log   *zap.Logger

	mu      sync.Mutex
	playing string
}

func NewPipeline(store *session.Store, synth Synthesizer, play Player, local LocalSpeaker, log *zap.Logger) *Pipeline {
	return &Pipeline{
		store: store,
		synth: synth,
		play:  play,
		local: local,
		log:   log,
	}
}

// Playing reports the id of the message currently holding the playback
// slot, or "" when the slot is empty.
func (p *Pipeline) Playing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Pipeline) acquire(messageID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing != "" {
		return false
	}
	p.playing = messageID
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.playing = ""
	p.mu.Unlock()
}

// Speak plays the message's adapted text aloud and blocks until playback
// ends. Teacher-sent messages follow the remote-voice preference against
// the subject's language; student-sent messages are always spoken locally
// in the teacher's reference language.
func (p *Pipeline) Speak(ctx context.Context, subjectID, messageID string) error {
	sess := p.store.Current()
	subj, ok := sess.SubjectByID(subjectID)
	if !ok {
		return fmt.Errorf("unknown subject %q", subjectID)
	}
	var msg *session.Message
	for i := range sess.Messages[subjectID] {
		if sess.Messages[subjectID][i].ID == messageID {
			msg = &sess.Messages[subjectID][i]
			break
		}
	}
	if msg == nil {
		return fmt.Errorf("unknown message %q", messageID)
	}

	if !p.acquire(messageID) {
		return ErrPlaybackBusy
	}
	defer p.release()

	if msg.Sender == session.RoleStudent {
		return p.speakLocal(ctx, msg.Adapted, session.ReferenceLanguage)
	}

	remote := sess.PreferredVoice == session.VoiceRemote && subj.Language != session.ReferenceLanguage
	if !remote {
		return p.speakLocal(ctx, msg.Adapted, subj.Language)
	}

	p.setLoading(ctx, subjectID, messageID, true)
	defer p.setLoading(ctx, subjectID, messageID, false)

	payload, err := p.synthesize(ctx, msg.Adapted)
	if err != nil {
		p.log.Warn("remote synthesis failed", zap.String("message_id", messageID), zap.Error(err))
		payload = nil
	}
	if payload == nil {
		return p.speakLocal(ctx, msg.Adapted, subj.Language)
	}

	buf, err := DecodePCM16(payload, SynthSampleRate, SynthChannels)
	if err != nil {
		p.log.Warn("pcm decode failed", zap.String("message_id", messageID), zap.Error(err))
		return p.speakLocal(ctx, msg.Adapted, subj.Language)
	}

	if err := p.play.Play(ctx, buf); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

func (p *Pipeline) synthesize(ctx context.Context, text string) ([]byte, error) {
	if p.synth == nil {
		return nil, nil
	}
	return p.synth.Synthesize(ctx, text)
}

func (p *Pipeline) speakLocal(ctx context.Context, text, language string) error {
	return p.local.Speak(ctx, text, language)
}

func (p *Pipeline) setLoading(ctx context.Context, subjectID, messageID string, loading bool) {
	if _, err := p.store.Mutate(ctx, func(s session.Session) session.Session {
		return session.PatchMessage(s, subjectID, messageID, func(m *session.Message) {
			m.AudioLoading = loading
		})
	}); err != nil {
		p.log.Warn("audio loading flag update failed", zap.String("message_id", messageID), zap.Error(err))
	}
}
