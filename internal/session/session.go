// Package session owns the conversation state graph: the teacher identity,
// the roster of subjects, per-subject message histories, and the current
// selection. All mutation goes through pure helpers so the persisted
// snapshot never lags the in-memory state.
package session

import (
	"time"
)

// Role identifies the sender of a message.
type Role string

const (
	// RoleTeacher is the initiating side of the conversation.
	RoleTeacher Role = "teacher"
	// RoleStudent is the responding side.
	RoleStudent Role = "student"
)

// VoiceMode selects how adapted text is spoken aloud.
type VoiceMode string

const (
	VoiceRemote VoiceMode = "remote"
	VoiceLocal  VoiceMode = "local"
)

// ReferenceLanguage is the teacher's side of every conversation. A subject
// whose target language equals it is the pass-through case: nothing to
// translate, nothing worth remote synthesis.
const ReferenceLanguage = "English"

// Subject is one tracked student. Identity fields are immutable after
// creation; Sensitivities and Guide are overwritten wholesale by analysis
// or manual edit.
type Subject struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Language          string `json:"language"`
	Age               int    `json:"age"`
	Sensitivities     string `json:"sensitivities"`
	Guide             string `json:"guide,omitempty"`
	LastAnalyzedIndex int    `json:"lastAnalyzedIndex"`
}

// Message is one exchange entry. Once resolved it is immutable except for
// the AudioLoading flag; during the optimistic phase Adapted and Note
// transition exactly once from placeholder to final value or to the
// error sentinel.
type Message struct {
	ID           string    `json:"id"`
	Original     string    `json:"original"`
	Adapted      string    `json:"adapted"`
	Note         string    `json:"note,omitempty"`
	Sender       Role      `json:"sender"`
	CreatedAt    time.Time `json:"createdAt"`
	AudioLoading bool      `json:"-"`
	Strategy     string    `json:"strategy,omitempty"`
	Reasoning    string    `json:"reasoning,omitempty"`
}

// Session is the full persisted state graph.
type Session struct {
	TeacherName    string               `json:"teacherName"`
	PreferredVoice VoiceMode            `json:"preferredVoice"`
	Subjects       []Subject            `json:"subjects"`
	Messages       map[string][]Message `json:"messages"`
	SelectedID     string               `json:"selectedId"`
}

// New returns an empty Session with initialized containers.
func New() Session {
	return Session{
		PreferredVoice: VoiceRemote,
		Messages:       map[string][]Message{},
	}
}

// Clone returns a deep copy. Mutation helpers operate on clones so callers
// can treat Session values as immutable snapshots.
func (s Session) Clone() Session {
	out := s
	out.Subjects = make([]Subject, len(s.Subjects))
	copy(out.Subjects, s.Subjects)
	out.Messages = make(map[string][]Message, len(s.Messages))
	for id, msgs := range s.Messages {
		cp := make([]Message, len(msgs))
		copy(cp, msgs)
		out.Messages[id] = cp
	}
	return out
}

// SubjectByID returns the subject with the given id.
func (s Session) SubjectByID(id string) (Subject, bool) {
	for _, sub := range s.Subjects {
		if sub.ID == id {
			return sub, true
		}
	}
	return Subject{}, false
}

// Selected returns the currently selected subject, if any.
func (s Session) Selected() (Subject, bool) {
	if s.SelectedID == "" {
		return Subject{}, false
	}
	return s.SubjectByID(s.SelectedID)
}

// MessageCount returns the number of messages for the given subject.
func (s Session) MessageCount(subjectID string) int {
	return len(s.Messages[subjectID])
}
