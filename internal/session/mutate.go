package session

// Mutation helpers. Each takes a Session value and returns a new one;
// nothing here writes in place. The Store applies these under its lock and
// persists the result, so each helper is one atomic mutation step.

// AddSubject appends a subject and creates its empty message sequence.
// The new subject becomes selected.
func AddSubject(s Session, sub Subject) Session {
	out := s.Clone()
	out.Subjects = append(out.Subjects, sub)
	if _, ok := out.Messages[sub.ID]; !ok {
		out.Messages[sub.ID] = []Message{}
	}
	out.SelectedID = sub.ID
	return out
}

// UpdateSubject replaces the subject with the same id wholesale.
// Unknown ids leave the session unchanged.
func UpdateSubject(s Session, sub Subject) Session {
	out := s.Clone()
	for i := range out.Subjects {
		if out.Subjects[i].ID == sub.ID {
			out.Subjects[i] = sub
			break
		}
	}
	return out
}

// DeleteSubject removes a subject and cascades to its message sequence.
// When the deleted subject was selected, selection moves to the first
// remaining subject, or clears if none remain.
func DeleteSubject(s Session, id string) Session {
	out := s.Clone()
	kept := out.Subjects[:0]
	for _, sub := range out.Subjects {
		if sub.ID != id {
			kept = append(kept, sub)
		}
	}
	out.Subjects = kept
	delete(out.Messages, id)

	if out.SelectedID == id {
		out.SelectedID = ""
		if len(out.Subjects) > 0 {
			out.SelectedID = out.Subjects[0].ID
		}
	}
	return out
}

// AppendMessage appends one message to the subject's sequence. Sequences
// are insertion-ordered and individual messages are never removed.
func AppendMessage(s Session, subjectID string, msg Message) Session {
	out := s.Clone()
	out.Messages[subjectID] = append(out.Messages[subjectID], msg)
	return out
}

// PatchMessage applies fn to the message with the given id inside one
// subject's sequence. The lookup is keyed, not positional, so the patch
// lands even if other messages were appended in the interim. Unknown ids
// are a no-op.
func PatchMessage(s Session, subjectID, messageID string, fn func(*Message)) Session {
	out := s.Clone()
	msgs := out.Messages[subjectID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			fn(&msgs[i])
			break
		}
	}
	return out
}

// Select switches the current subject. An empty id clears the selection;
// other values must name an existing subject or the session is unchanged.
func Select(s Session, id string) Session {
	out := s.Clone()
	if id == "" {
		out.SelectedID = ""
		return out
	}
	if _, ok := out.SubjectByID(id); ok {
		out.SelectedID = id
	}
	return out
}
