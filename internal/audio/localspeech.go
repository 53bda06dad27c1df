package audio

import (
	"context"
	"errors"
	"os/exec"
	"sync"
)

// ErrNoSpeechEngine is returned when no OS speech engine is installed.
// Callers surface it to the user once instead of retrying.
var ErrNoSpeechEngine = errors.New("no speech engine found (tried say, espeak-ng, espeak, spd-say)")

// LocalSpeaker speaks text with a locally available speech engine.
type LocalSpeaker interface {
	Speak(ctx context.Context, text, language string) error
}

// OSSpeaker shells out to the first OS speech engine found on PATH.
type OSSpeaker struct {
	once   sync.Once
	engine string
}

func NewOSSpeaker() *OSSpeaker {
	return &OSSpeaker{}
}

func (s *OSSpeaker) Speak(ctx context.Context, text, language string) error {
	s.once.Do(func() {
		for _, candidate := range []string{"say", "espeak-ng", "espeak", "spd-say"} {
			if _, err := exec.LookPath(candidate); err == nil {
				s.engine = candidate
				return
			}
		}
	})
	if s.engine == "" {
		return ErrNoSpeechEngine
	}

	locale := Locale(language)
	var args []string
	switch s.engine {
	case "say":
		args = []string{text}
	case "espeak-ng", "espeak":
		args = []string{"-v", locale, text}
	case "spd-say":
		args = []string{"-w", "-l", locale, text}
	}
	return exec.CommandContext(ctx, s.engine, args...).Run()
}
