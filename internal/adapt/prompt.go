package adapt

import (
	"fmt"
	"strings"

	"bridgetalk/internal/session"
)

const adaptSystemPrompt = `You are a communication assistant helping a teacher talk with a student who needs language adaptation. You translate and adapt messages so they land well for this specific student, respecting their age and sensitivities.`

func buildAdaptUserMessage(text string, sender session.Role, subj session.Subject) string {
	var b strings.Builder

	writeSubjectProfile(&b, subj)

	if sender == session.RoleTeacher {
		b.WriteString(fmt.Sprintf("\nDirection: teacher to student. Adapt the message into %s.\n", subj.Language))
	} else {
		b.WriteString("\nDirection: student to teacher. Translate the message into English for the teacher.\n")
	}

	b.WriteString(fmt.Sprintf("\nMessage:\n%s\n", text))

	b.WriteString(`
Instructions:
1. Produce the adapted message in the requested direction. Keep the meaning intact.
2. Match the student's age: simple vocabulary and short sentences for younger students.
3. Respect the listed sensitivities. Soften or rephrase anything that would touch them.
4. If wording, register, or cultural framing needed adjustment beyond plain translation, add a one-sentence note explaining what you changed and why. Otherwise leave the note empty.`)

	return b.String()
}

const optionsSystemPrompt = `You are a communication coach helping a teacher phrase a difficult or important message for a student who needs language adaptation. You propose alternative communication strategies, not just translations.`

func buildOptionsUserMessage(intent string, subj session.Subject, recent []session.Message) string {
	var b strings.Builder

	writeSubjectProfile(&b, subj)

	b.WriteString("\nRecent conversation:\n")
	if len(recent) == 0 {
		b.WriteString("None\n")
	} else {
		for _, m := range recent {
			b.WriteString(fmt.Sprintf("- [%s] %s\n", m.Sender, m.Original))
		}
	}

	b.WriteString(fmt.Sprintf("\nWhat the teacher wants to communicate:\n%s\n", intent))

	b.WriteString(fmt.Sprintf(`
Instructions:
Propose exactly 3 distinct strategies for delivering this, from gentlest to most direct. For each:
1. A short strategy label (2-4 words, e.g. "Gentle encouragement", "Direct request").
2. The phrasing in plain English, refined for this student (reference_text).
3. The same phrasing in %s (target_text).
4. One sentence of rationale: when this strategy works for a student like this.
The three options must differ in approach, not just wording.`, subj.Language))

	return b.String()
}

const analysisSystemPrompt = `You are reviewing the conversation history between a teacher and a student who needs language adaptation. You maintain the student's communication profile: what topics or phrasings to handle carefully, and practical guidance for the teacher.`

func buildAnalysisUserMessage(subj session.Subject, history []session.Message) string {
	var b strings.Builder

	writeSubjectProfile(&b, subj)

	if subj.Guide != "" {
		b.WriteString(fmt.Sprintf("\nCurrent guide:\n%s\n", subj.Guide))
	}

	b.WriteString("\nFull conversation history:\n")
	for _, m := range history {
		b.WriteString(fmt.Sprintf("- [%s] %s", m.Sender, m.Original))
		if m.Note != "" {
			b.WriteString(fmt.Sprintf(" (note: %s)", m.Note))
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Instructions:
1. Rewrite the sensitivities list from scratch based on everything above. Keep entries that still hold, drop ones the history contradicts, add new ones the history reveals. 2-5 short comma-separated entries.
2. Write a practical communication guide for the teacher: 3-5 sentences on what works with this student, grounded in the actual exchanges.`)

	return b.String()
}

func writeSubjectProfile(b *strings.Builder, subj session.Subject) {
	b.WriteString(fmt.Sprintf("Student: %s\n", subj.Name))
	b.WriteString(fmt.Sprintf("Language: %s\n", subj.Language))
	b.WriteString(fmt.Sprintf("Age: %d\n", subj.Age))
	if subj.Sensitivities != "" {
		b.WriteString(fmt.Sprintf("Sensitivities: %s\n", subj.Sensitivities))
	}
}
