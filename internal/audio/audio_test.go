package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"bridgetalk/internal/session"
	"bridgetalk/internal/store"
)

func TestDecodePCM16(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767}
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}

	buf, err := DecodePCM16(data, SynthSampleRate, SynthChannels)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.SampleRate != SynthSampleRate || buf.Channels != SynthChannels {
		t.Errorf("layout = %d Hz/%d ch", buf.SampleRate, buf.Channels)
	}

	want := []float32{0.0, 0.5, -0.5, 32767.0 / 32768.0}
	if len(buf.Samples) != len(want) {
		t.Fatalf("sample count = %d, want %d", len(buf.Samples), len(want))
	}
	for i, w := range want {
		if math.Abs(float64(buf.Samples[i]-w)) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, buf.Samples[i], w)
		}
	}
}

func TestDecodePCM16OddLength(t *testing.T) {
	if _, err := DecodePCM16([]byte{0x01, 0x02, 0x03}, SynthSampleRate, SynthChannels); err == nil {
		t.Fatal("expected error for odd payload length")
	}
}

func TestLocale(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Spanish", "es-ES"},
		{"  spanish ", "es-ES"},
		{"English", "en-US"},
		{"Mandarin", "zh-CN"},
		{"Klingon", "Klingon"},
		{"pt-BR", "pt-BR"},
	}
	for _, tt := range tests {
		if got := Locale(tt.in); got != tt.want {
			t.Errorf("Locale(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeSynth struct {
	mu      sync.Mutex
	payload []byte
	err     error
	calls   int
}

func (f *fakeSynth) Synthesize(_ context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.payload, f.err
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePlayer struct {
	mu     sync.Mutex
	played []*Buffer
	err    error
	gate   chan struct{} // when non-nil, Play blocks until closed
}

func (f *fakePlayer) Play(_ context.Context, buf *Buffer) error {
	f.mu.Lock()
	f.played = append(f.played, buf)
	gate := f.gate
	err := f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

type spokenText struct {
	text, language string
}

type fakeLocal struct {
	mu     sync.Mutex
	spoken []spokenText
	err    error
}

func (f *fakeLocal) Speak(_ context.Context, text, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, spokenText{text, language})
	return f.err
}

type audioEnv struct {
	store  *session.Store
	synth  *fakeSynth
	player *fakePlayer
	local  *fakeLocal
	pipe   *Pipeline
}

func pcmPayload(samples ...int16) []byte {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	return data
}

func newAudioEnv(t *testing.T, voice session.VoiceMode, language string, sender session.Role) *audioEnv {
	t.Helper()
	kv, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open kv store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	st := session.NewStore(kv)
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := st.Mutate(context.Background(), func(s session.Session) session.Session {
		s.PreferredVoice = voice
		s = session.AddSubject(s, session.Subject{ID: "s1", Name: "Mateo", Language: language, Age: 9})
		return session.AppendMessage(s, "s1", session.Message{
			ID: "m1", Original: "Good job", Adapted: "Buen trabajo", Sender: sender,
		})
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	env := &audioEnv{
		store:  st,
		synth:  &fakeSynth{payload: pcmPayload(0, 100, -100)},
		player: &fakePlayer{},
		local:  &fakeLocal{},
	}
	env.pipe = NewPipeline(st, env.synth, env.player, env.local, zap.NewNop())
	return env
}

func TestSpeakRemotePath(t *testing.T) {
	env := newAudioEnv(t, session.VoiceRemote, "Spanish", session.RoleTeacher)

	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if env.synth.callCount() != 1 {
		t.Errorf("synth calls = %d, want 1", env.synth.callCount())
	}
	if len(env.player.played) != 1 {
		t.Fatalf("played %d buffers, want 1", len(env.player.played))
	}
	if got := env.player.played[0].SampleRate; got != SynthSampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if len(env.local.spoken) != 0 {
		t.Errorf("local fallback invoked on remote success: %v", env.local.spoken)
	}
	if env.pipe.Playing() != "" {
		t.Error("slot not released after success")
	}
	msg := env.store.Current().Messages["s1"][0]
	if msg.AudioLoading {
		t.Error("loading flag not cleared")
	}
}

func TestSpeakRemoteUnavailableFallsBackToLocal(t *testing.T) {
	env := newAudioEnv(t, session.VoiceRemote, "Spanish", session.RoleTeacher)
	env.synth.payload = nil // unavailable, not an error

	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if env.synth.callCount() != 1 {
		t.Errorf("remote path retried: %d calls", env.synth.callCount())
	}
	if len(env.local.spoken) != 1 {
		t.Fatalf("local calls = %d, want 1", len(env.local.spoken))
	}
	if env.local.spoken[0] != (spokenText{"Buen trabajo", "Spanish"}) {
		t.Errorf("local fallback spoke %+v", env.local.spoken[0])
	}
	if len(env.player.played) != 0 {
		t.Errorf("player invoked without a payload")
	}
}

func TestSpeakDecodeFailureFallsBackToLocal(t *testing.T) {
	env := newAudioEnv(t, session.VoiceRemote, "Spanish", session.RoleTeacher)
	env.synth.payload = []byte{0x01} // odd length, undecodable

	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if len(env.local.spoken) != 1 {
		t.Fatalf("local calls = %d, want 1", len(env.local.spoken))
	}
	if env.pipe.Playing() != "" {
		t.Error("slot not released after decode failure")
	}
}

func TestSpeakStudentMessageAlwaysLocalEnglish(t *testing.T) {
	env := newAudioEnv(t, session.VoiceRemote, "Spanish", session.RoleStudent)

	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if env.synth.callCount() != 0 {
		t.Error("student replies must never use remote synthesis")
	}
	if len(env.local.spoken) != 1 || env.local.spoken[0].language != session.ReferenceLanguage {
		t.Errorf("local spoken = %v, want reference language", env.local.spoken)
	}
}

func TestSpeakLocalPreference(t *testing.T) {
	env := newAudioEnv(t, session.VoiceLocal, "Spanish", session.RoleTeacher)

	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if env.synth.callCount() != 0 {
		t.Error("local preference must skip remote synthesis")
	}
	if len(env.local.spoken) != 1 || env.local.spoken[0].language != "Spanish" {
		t.Errorf("local spoken = %v", env.local.spoken)
	}
}

func TestSpeakPassThroughLanguageStaysLocal(t *testing.T) {
	env := newAudioEnv(t, session.VoiceRemote, session.ReferenceLanguage, session.RoleTeacher)

	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if env.synth.callCount() != 0 {
		t.Error("same-language messages must skip remote synthesis")
	}
	if len(env.local.spoken) != 1 {
		t.Fatalf("local calls = %d, want 1", len(env.local.spoken))
	}
}

func TestSpeakRejectsWhileSlotHeld(t *testing.T) {
	env := newAudioEnv(t, session.VoiceRemote, "Spanish", session.RoleTeacher)
	gate := make(chan struct{})
	env.player.gate = gate

	done := make(chan error, 1)
	go func() { done <- env.pipe.Speak(context.Background(), "s1", "m1") }()

	deadline := time.Now().Add(5 * time.Second)
	for env.pipe.Playing() == "" {
		if time.Now().After(deadline) {
			t.Fatal("first playback never acquired the slot")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := env.pipe.Speak(t.Context(), "s1", "m1"); !errors.Is(err, ErrPlaybackBusy) {
		t.Fatalf("second speak err = %v, want ErrPlaybackBusy", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first speak: %v", err)
	}
	if env.pipe.Playing() != "" {
		t.Error("slot not released after playback ended")
	}

	// The slot is free again.
	env.player.gate = nil
	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err != nil {
		t.Fatalf("third speak: %v", err)
	}
}

func TestSpeakReleasesSlotOnError(t *testing.T) {
	env := newAudioEnv(t, session.VoiceLocal, "Spanish", session.RoleTeacher)
	env.local.err = errors.New("engine exploded")

	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err == nil {
		t.Fatal("expected error from local engine")
	}
	if env.pipe.Playing() != "" {
		t.Fatal("slot must be released on failure")
	}

	env.local.err = nil
	if err := env.pipe.Speak(t.Context(), "s1", "m1"); err != nil {
		t.Fatalf("speak after failure: %v", err)
	}
}

func TestSpeakUnknownMessage(t *testing.T) {
	env := newAudioEnv(t, session.VoiceRemote, "Spanish", session.RoleTeacher)
	if err := env.pipe.Speak(t.Context(), "s1", "ghost"); err == nil {
		t.Fatal("expected error for unknown message")
	}
	if env.pipe.Playing() != "" {
		t.Error("slot leaked on validation failure")
	}
}
