package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bridgetalk/internal/adapt"
	"bridgetalk/internal/app"
	"bridgetalk/internal/audio"
	"bridgetalk/internal/config"
	"bridgetalk/internal/llm"
	"bridgetalk/internal/logging"
	"bridgetalk/internal/pipeline"
	"bridgetalk/internal/session"
	"bridgetalk/internal/store"
)

// runApp opens the store, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command) error {
	ctx := cmd.Context()

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	logPath, err := store.DefaultLogPath()
	if err != nil {
		return fmt.Errorf("resolve log path: %w", err)
	}
	log, err := logging.Open(logPath, config.Debug())
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = log.Sync() }()

	sessions := session.NewStore(st)
	if err := sessions.Load(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	cfg := llm.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		discovered, ok := llm.DiscoverConfig()
		if !ok {
			fmt.Fprintln(os.Stderr, "No language model configured:", err)
			fmt.Fprintln(os.Stderr, "Set BRIDGETALK_LLM_PROVIDER and the matching API key, or export a standard key variable (e.g. ANTHROPIC_API_KEY).")
			return err
		}
		cfg = discovered
	}

	provider, err := llm.NewProvider(ctx, cfg, st.EventRepo())
	if err != nil {
		return fmt.Errorf("initialize language model: %w", err)
	}
	client := adapt.NewClient(provider, adapt.DefaultConfig())

	translator := pipeline.NewTranslator(sessions, client, log)
	assist := pipeline.NewAssist(sessions, client, translator, log)
	analyzer := pipeline.NewAnalyzer(sessions, client, log)

	synthKey := cfg.OpenAI.APIKey
	if synthKey == "" {
		synthKey = os.Getenv("OPENAI_API_KEY")
	}
	audioPipe := audio.NewPipeline(
		sessions,
		audio.NewOpenAISynthesizer(synthKey),
		audio.NewOtoPlayer(),
		audio.NewOSSpeaker(),
		log,
	)

	return app.Run(app.Options{
		Store:      sessions,
		Translator: translator,
		Assist:     assist,
		Analyzer:   analyzer,
		Audio:      audioPipe,
	})
}
