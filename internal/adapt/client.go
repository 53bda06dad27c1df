package adapt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"bridgetalk/internal/llm"
	"bridgetalk/internal/session"
)

// Client performs adaptation requests against an llm.Provider.
type Client struct {
	provider llm.Provider
	cfg      Config
}

// NewClient creates an adaptation client.
func NewClient(provider llm.Provider, cfg Config) *Client {
	return &Client{provider: provider, cfg: cfg}
}

type adaptOutput struct {
	AdaptedText string `json:"adapted_text"`
	Note        string `json:"note"`
}

// Adapt converts one outgoing message into its adapted form for the given
// subject. The sender role steers direction: teacher messages are adapted
// into the subject's target language, student messages back into English.
func (c *Client) Adapt(ctx context.Context, text string, sender session.Role, subj session.Subject) (Adaptation, error) {
	ctx = llm.WithPurpose(ctx, "adapt")

	req := llm.Request{
		System: adaptSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildAdaptUserMessage(text, sender, subj)},
		},
		Schema:      AdaptSchema,
		MaxTokens:   c.cfg.AdaptMaxTokens,
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return Adaptation{}, fmt.Errorf("adapt message: %w", err)
	}

	var out adaptOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return Adaptation{}, fmt.Errorf("parse adapt response: %w", err)
	}
	if out.AdaptedText == "" {
		return Adaptation{}, fmt.Errorf("adapt response has empty adapted text")
	}

	return Adaptation{AdaptedText: out.AdaptedText, Note: out.Note}, nil
}

type optionOutput struct {
	Strategy      string `json:"strategy"`
	ReferenceText string `json:"reference_text"`
	TargetText    string `json:"target_text"`
	Rationale     string `json:"rationale"`
}

type optionsOutput struct {
	Options []optionOutput `json:"options"`
}

// GenerateOptions converts a stated intent into exactly three distinct
// phrasing strategies. Any other count, or an unparseable response, is an
// error; the caller falls back to direct adaptation.
func (c *Client) GenerateOptions(ctx context.Context, intent string, subj session.Subject, recent []session.Message) ([]StrategyOption, error) {
	ctx = llm.WithPurpose(ctx, "strategy-options")

	if len(recent) > RecentContextLimit {
		recent = recent[len(recent)-RecentContextLimit:]
	}

	req := llm.Request{
		System: optionsSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildOptionsUserMessage(intent, subj, recent)},
		},
		Schema:      OptionsSchema,
		MaxTokens:   c.cfg.OptionsMaxTokens,
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate options: %w", err)
	}

	var out optionsOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse options response: %w", err)
	}
	if len(out.Options) != OptionCount {
		return nil, fmt.Errorf("expected %d options, got %d", OptionCount, len(out.Options))
	}

	options := make([]StrategyOption, OptionCount)
	for i, o := range out.Options {
		if o.TargetText == "" || o.ReferenceText == "" {
			return nil, fmt.Errorf("option %d has empty phrasing", i)
		}
		options[i] = StrategyOption{
			ID:            uuid.NewString(),
			Label:         o.Strategy,
			ReferenceText: o.ReferenceText,
			TargetText:    o.TargetText,
			Rationale:     o.Rationale,
		}
	}
	return options, nil
}

type analysisOutput struct {
	Guide         string `json:"guide"`
	Sensitivities string `json:"sensitivities"`
}

// AnalyzeProfile re-derives a subject's sensitivity profile and guide text
// from the full accumulated history.
func (c *Client) AnalyzeProfile(ctx context.Context, subj session.Subject, history []session.Message) (ProfileUpdate, error) {
	ctx = llm.WithPurpose(ctx, "profile-analysis")

	req := llm.Request{
		System: analysisSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildAnalysisUserMessage(subj, history)},
		},
		Schema:      AnalysisSchema,
		MaxTokens:   c.cfg.AnalysisMaxTokens,
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return ProfileUpdate{}, fmt.Errorf("analyze profile: %w", err)
	}

	var out analysisOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return ProfileUpdate{}, fmt.Errorf("parse analysis response: %w", err)
	}
	if out.Sensitivities == "" {
		return ProfileUpdate{}, fmt.Errorf("analysis response has empty sensitivities")
	}

	return ProfileUpdate{Guide: out.Guide, Sensitivities: out.Sensitivities}, nil
}
