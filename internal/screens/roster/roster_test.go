package roster

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"go.uber.org/zap"

	"bridgetalk/internal/adapt"
	"bridgetalk/internal/llm"
	"bridgetalk/internal/pipeline"
	"bridgetalk/internal/screen"
	"bridgetalk/internal/session"
	"bridgetalk/internal/store"
)

// stubChat stands in for the chat screen the factory would build.
type stubChat struct{ subjectID string }

func (s *stubChat) Init() tea.Cmd                           { return nil }
func (s *stubChat) Update(tea.Msg) (screen.Screen, tea.Cmd) { return s, nil }
func (s *stubChat) View(width, height int) string           { return "" }
func (s *stubChat) Title() string                           { return "stub" }

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

// testRoster seeds two subjects, the first selected with three messages
// accumulated since its last analysis, and wires a roster over a recording
// provider.
func testRoster(t *testing.T) (*RosterScreen, *session.Store, *llm.MockProvider) {
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
		s = session.AddSubject(s, session.Subject{ID: "s-a", Name: "Mateo", Language: "Spanish", Age: 9})
		s = session.AddSubject(s, session.Subject{ID: "s-b", Name: "Lin", Language: "Mandarin", Age: 8})
		for _, id := range []string{"m1", "m2", "m3"} {
			s = session.AppendMessage(s, "s-a", session.Message{
				ID: id, Original: "msg", Adapted: "msg", Sender: session.RoleTeacher,
			})
		}
		return session.Select(s, "s-a")
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	provider := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"sensitivities":"Grades","guide":"Praise privately."}`),
	})
	analyzer := pipeline.NewAnalyzer(st, adapt.NewClient(provider, adapt.DefaultConfig()), zap.NewNop())

	r := New(st, analyzer, func(subjectID string) screen.Screen {
		return &stubChat{subjectID: subjectID}
	})
	return r, st, provider
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestOpenChatAnalyzesSubjectSwitchedAwayFrom(t *testing.T) {
	r, st, provider := testRoster(t)

	// Move off the selected subject and open the other one.
	r.Update(keyPress('j'))
	_, cmd := r.Update(specialKey(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("enter on a subject must push a chat screen")
	}

	if st.Current().SelectedID != "s-b" {
		t.Fatalf("selected = %q, want s-b", st.Current().SelectedID)
	}

	// The subject left behind had three unanalyzed messages, so exactly one
	// analysis request goes out for it.
	waitFor(t, func() bool {
		sub, _ := st.Current().SubjectByID("s-a")
		return sub.LastAnalyzedIndex == 3
	})
	if provider.CallCount() != 1 {
		t.Errorf("analysis requests = %d, want 1", provider.CallCount())
	}

	sub, _ := st.Current().SubjectByID("s-b")
	if sub.LastAnalyzedIndex != 0 {
		t.Errorf("newly opened subject must be untouched, index = %d", sub.LastAnalyzedIndex)
	}
}

func TestOpenChatSameSubjectDoesNotReanalyze(t *testing.T) {
	r, st, provider := testRoster(t)

	// Re-open the already selected subject.
	_, cmd := r.Update(specialKey(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("enter on a subject must push a chat screen")
	}
	if st.Current().SelectedID != "s-a" {
		t.Fatalf("selected = %q, want s-a", st.Current().SelectedID)
	}

	// Staying on the same subject is not a switch.
	time.Sleep(50 * time.Millisecond)
	if provider.CallCount() != 0 {
		t.Errorf("analysis requests = %d, want 0", provider.CallCount())
	}
	sub, _ := st.Current().SubjectByID("s-a")
	if sub.LastAnalyzedIndex != 0 {
		t.Errorf("index = %d, want 0", sub.LastAnalyzedIndex)
	}
}
