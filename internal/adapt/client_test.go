package adapt

import (
	"encoding/json"
	"strings"
	"testing"

	"bridgetalk/internal/llm"
	"bridgetalk/internal/session"
)

func testSubject() session.Subject {
	return session.Subject{
		ID:            "s1",
		Name:          "Mateo",
		Language:      "Spanish",
		Age:           9,
		Sensitivities: "Gets anxious about grades",
	}
}

func validOptionsJSON() json.RawMessage {
	return json.RawMessage(`{"options":[
		{"strategy":"Gentle encouragement","reference_text":"You're making progress, let's keep practicing","target_text":"Estás progresando, sigamos practicando","rationale":"Works when confidence is low."},
		{"strategy":"Shared plan","reference_text":"Let's make a plan together","target_text":"Hagamos un plan juntos","rationale":"Gives the student agency."},
		{"strategy":"Direct request","reference_text":"Please finish the exercise today","target_text":"Por favor termina el ejercicio hoy","rationale":"Clear expectations help some students."}
	]}`)
}

func TestAdapt(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"adapted_text":"¡Buen trabajo hoy!","note":"Softened the correction"}`),
	})
	c := NewClient(mock, DefaultConfig())

	got, err := c.Adapt(t.Context(), "Good work today!", session.RoleTeacher, testSubject())
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if got.AdaptedText != "¡Buen trabajo hoy!" {
		t.Errorf("adapted = %q", got.AdaptedText)
	}
	if got.Note != "Softened the correction" {
		t.Errorf("note = %q", got.Note)
	}

	req := mock.Calls[0]
	if !strings.Contains(req.Messages[0].Content, "Spanish") {
		t.Error("request should carry the target language")
	}
	if !strings.Contains(req.Messages[0].Content, "Gets anxious about grades") {
		t.Error("request should carry the sensitivities")
	}
}

func TestAdaptStudentDirectionTargetsEnglish(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"adapted_text":"I finished my homework","note":""}`),
	})
	c := NewClient(mock, DefaultConfig())

	if _, err := c.Adapt(t.Context(), "Terminé mi tarea", session.RoleStudent, testSubject()); err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if !strings.Contains(mock.Calls[0].Messages[0].Content, "into English") {
		t.Error("student direction should request English")
	}
}

func TestAdaptEmptyResultIsError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"adapted_text":"","note":""}`),
	})
	c := NewClient(mock, DefaultConfig())

	if _, err := c.Adapt(t.Context(), "Hi", session.RoleTeacher, testSubject()); err == nil {
		t.Fatal("expected error for empty adapted text")
	}
}

func TestGenerateOptionsExactlyThree(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: validOptionsJSON()})
	c := NewClient(mock, DefaultConfig())

	opts, err := c.GenerateOptions(t.Context(), "Ask him to finish the exercise", testSubject(), nil)
	if err != nil {
		t.Fatalf("generate options: %v", err)
	}
	if len(opts) != OptionCount {
		t.Fatalf("got %d options", len(opts))
	}
	seen := map[string]bool{}
	for _, o := range opts {
		if o.ID == "" {
			t.Error("option missing id")
		}
		if seen[o.ID] {
			t.Error("duplicate option id")
		}
		seen[o.ID] = true
	}
	if opts[0].Label != "Gentle encouragement" {
		t.Errorf("label = %q", opts[0].Label)
	}
}

func TestGenerateOptionsWrongCountIsError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"options":[{"strategy":"Only one","reference_text":"a","target_text":"b","rationale":"c"}]}`),
	})
	c := NewClient(mock, DefaultConfig())

	if _, err := c.GenerateOptions(t.Context(), "intent", testSubject(), nil); err == nil {
		t.Fatal("expected error for wrong option count")
	}
}

func TestGenerateOptionsTrimsContext(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: validOptionsJSON()})
	c := NewClient(mock, DefaultConfig())

	var history []session.Message
	for _, text := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		history = append(history, session.Message{Original: text, Sender: session.RoleTeacher})
	}

	if _, err := c.GenerateOptions(t.Context(), "intent", testSubject(), history); err != nil {
		t.Fatalf("generate options: %v", err)
	}

	content := mock.Calls[0].Messages[0].Content
	if strings.Contains(content, "- [teacher] two") {
		t.Error("context should be capped at the last 5 messages")
	}
	for _, want := range []string{"three", "four", "five", "six", "seven"} {
		if !strings.Contains(content, want) {
			t.Errorf("missing recent message %q", want)
		}
	}
}

func TestAnalyzeProfile(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"sensitivities":"Grades, being singled out","guide":"Praise privately. Frame corrections as next steps."}`),
	})
	c := NewClient(mock, DefaultConfig())

	history := []session.Message{
		{Original: "Good work", Sender: session.RoleTeacher},
		{Original: "Gracias", Sender: session.RoleStudent},
	}

	got, err := c.AnalyzeProfile(t.Context(), testSubject(), history)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got.Sensitivities != "Grades, being singled out" {
		t.Errorf("sensitivities = %q", got.Sensitivities)
	}
	if got.Guide == "" {
		t.Error("expected non-empty guide")
	}
}
