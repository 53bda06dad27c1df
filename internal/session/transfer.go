package session

import (
	"encoding/json"
	"fmt"
)

// ExportJSON emits the full Session as an indented JSON document in the
// persisted snapshot format, suitable for backup.
func ExportJSON(sess Session) ([]byte, error) {
	raw, err := json.MarshalIndent(snapshot{Version: snapshotVersion, Session: sess}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return raw, nil
}

// ImportJSON parses an exported document. The document is accepted only if
// it structurally contains a subject list and a message mapping; anything
// else is rejected so the caller's existing state stays untouched.
func ImportJSON(raw []byte) (Session, error) {
	// Presence check distinguishes "field absent" from "field empty".
	var probe struct {
		Session *struct {
			Subjects *[]Subject            `json:"subjects"`
			Messages *map[string][]Message `json:"messages"`
		} `json:"session"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Session{}, fmt.Errorf("parse import: %w", err)
	}
	if probe.Session == nil || probe.Session.Subjects == nil || probe.Session.Messages == nil {
		return Session{}, fmt.Errorf("import rejected: document is not a session backup")
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Session{}, fmt.Errorf("parse import: %w", err)
	}

	sess := snap.Session
	if sess.Messages == nil {
		sess.Messages = map[string][]Message{}
	}
	// Keep the subject list and message mapping consistent both ways.
	for _, sub := range sess.Subjects {
		if _, ok := sess.Messages[sub.ID]; !ok {
			sess.Messages[sub.ID] = []Message{}
		}
	}
	for id := range sess.Messages {
		if _, ok := sess.SubjectByID(id); !ok {
			delete(sess.Messages, id)
		}
	}
	if _, ok := sess.SubjectByID(sess.SelectedID); !ok {
		sess.SelectedID = ""
		if len(sess.Subjects) > 0 {
			sess.SelectedID = sess.Subjects[0].ID
		}
	}
	return sess, nil
}
