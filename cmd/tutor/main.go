// Command tutor runs the tutoring engine as an interactive terminal session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"tutor/pkg/collab"
	"tutor/pkg/config"
	"tutor/pkg/logx"
	"tutor/pkg/metrics"
	"tutor/pkg/persistence"
	"tutor/pkg/proto"
	"tutor/pkg/tutor"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to JSON config file")
		sessionID   = flag.String("session", "", "Session ID to resume (default: new session)")
		dbPath      = flag.String("db", "", "Override the session database path")
		debug       = flag.String("debug", "", "Comma-separated debug domains (or 'all')")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tutor %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	switch *debug {
	case "":
	case "all":
		logx.SetDebug(true, nil)
	default:
		logx.SetDebug(true, strings.Split(*debug, ","))
	}

	os.Exit(run(*configPath, *sessionID, *dbPath))
}

// run contains the main application logic and returns an exit code. This
// allows defers to execute before os.Exit is called.
func run(configPath, sessionID, dbPath string) int {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	if dbPath != "" {
		cfg.Persistence.DBPath = dbPath
	}

	if err := unlockSecrets(); err != nil {
		fmt.Fprintf(os.Stderr, "Secrets error: %v\n", err)
		return 1
	}

	client, err := buildClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "LLM client error: %v\n", err)
		return 1
	}

	store, err := persistence.Open(cfg.Persistence.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Database error: %v\n", err)
		return 1
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", closeErr)
		}
	}()

	routerEngine, err := cfg.BuildRouter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rule pack error: %v\n", err)
		return 1
	}

	recorder := metrics.NewRecorder(nil)
	invoker := collab.NewInvoker(collab.DefaultSet(client),
		collab.WithTimeout(time.Duration(cfg.Collaborator.TimeoutSec)*time.Second),
		collab.WithMaxConcurrent(cfg.Collaborator.MaxConcurrent),
		collab.WithObserver(recorder),
	)

	engine := tutor.NewEngine(client, store, store,
		tutor.WithRouter(routerEngine),
		tutor.WithInvoker(invoker),
		tutor.WithRecorder(recorder),
		tutor.WithTurnLog(store),
		tutor.WithMaxReplyLength(cfg.Tutor.MaxReplyLength),
		tutor.WithContextBudget(cfg.Tutor.ContextTokenLimit),
	)

	var query *metrics.QueryService
	if cfg.Metrics.PrometheusURL != "" {
		query, err = metrics.NewQueryService(cfg.Metrics.PrometheusURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: metrics queries unavailable: %v\n", err)
		}
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
		fmt.Printf("🎓 New session %s (provider: %s)\n", sessionID, cfg.LLM.Provider)
	} else {
		fmt.Printf("🎓 Resuming session %s (provider: %s)\n", sessionID, cfg.LLM.Provider)
	}

	return repl(engine, query, sessionID)
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(configPath)
}

// unlockSecrets decrypts the project secrets file when one exists and stdin
// is a terminal. Without a terminal the env-var fallback still works.
func unlockSecrets() error {
	projectDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	if !config.SecretsFileExists(projectDir) {
		return nil
	}
	if !term.IsTerminal(syscall.Stdin) {
		fmt.Fprintln(os.Stderr, "⚠️  Secrets file present but stdin is not a terminal; using environment variables only.")
		return nil
	}

	fmt.Print("Enter the project password to unlock secrets: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	defer func() {
		for i := range password {
			password[i] = 0
		}
	}()

	secrets, err := config.DecryptSecretsFile(projectDir, string(password))
	if err != nil {
		return err
	}
	config.SetDecryptedSecrets(secrets)
	return nil
}

// defaultKeyEnv maps providers to their conventional API key variable.
var defaultKeyEnv = map[string]string{
	config.ProviderAnthropic: "ANTHROPIC_API_KEY",
	config.ProviderOpenAI:    "OPENAI_API_KEY",
	config.ProviderGemini:    "GEMINI_API_KEY",
}

func buildClient(cfg *config.Config) (collab.LLMClient, error) {
	llm := cfg.LLM

	if llm.Provider == config.ProviderOllama {
		return collab.NewOllamaClientWithModel(llm.Host, llm.Model), nil
	}
	if llm.Provider == config.ProviderMock {
		return collab.NewMockClient(), nil
	}

	keyEnv := llm.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultKeyEnv[llm.Provider]
	}
	apiKey, err := config.GetSecret(keyEnv)
	if err != nil {
		return nil, fmt.Errorf("provider %s needs an API key: %w", llm.Provider, err)
	}

	switch llm.Provider {
	case config.ProviderAnthropic:
		return collab.NewClaudeClientWithModel(apiKey, llm.Model), nil
	case config.ProviderOpenAI:
		return collab.NewOpenAIClientWithModel(apiKey, llm.Model), nil
	case config.ProviderGemini:
		return collab.NewGeminiClientWithModel(apiKey, llm.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", llm.Provider)
	}
}

// repl reads student utterances line by line until EOF or /quit.
func repl(engine *tutor.Engine, query *metrics.QueryService, sessionID string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	notifCh := make(chan *proto.PhaseChangeNotification, 4)
	if err := engine.SetPhaseNotifications(sessionID, notifCh); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: phase notifications unavailable: %v\n", err)
	}

	fmt.Println("Type your question, /phase for progress, /summary for session state, /stats for usage, /quit to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return 0
		case "/phase":
			info, err := engine.PhaseInfo(sessionID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("Phase: %s, milestone: %s (%.0f%%)\n", info.Phase, info.Milestone, info.MilestoneProgress)
			continue
		case "/summary":
			fmt.Println(engine.SessionSummary(sessionID))
			continue
		case "/stats":
			printStats(ctx, query, sessionID)
			continue
		}

		result, err := engine.ProcessTurn(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if ctx.Err() != nil {
				return 1
			}
			continue
		}

		fmt.Printf("\ntutor> %s\n", result.Reply)
		drainNotifications(notifCh)

		if ctx.Err() != nil {
			return 0
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Input error: %v\n", err)
		return 1
	}
	return 0
}

// printStats shows aggregated session usage from Prometheus, when a server
// is configured.
func printStats(ctx context.Context, query *metrics.QueryService, sessionID string) {
	if query == nil {
		fmt.Println("No Prometheus server configured; set metrics.prometheus_url in the config.")
		return
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stats, err := query.GetSessionMetrics(queryCtx, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats error: %v\n", err)
		return
	}
	fmt.Printf("Turns: %d, prompt tokens: %d, completion tokens: %d (total %d)\n",
		stats.Turns, stats.PromptTokens, stats.CompletionTokens, stats.TotalTokens)

	routes, err := query.GetRouteBreakdown(queryCtx)
	if err != nil {
		return
	}
	for route, count := range routes {
		fmt.Printf("  %-28s %d\n", route, count)
	}
}

func drainNotifications(ch <-chan *proto.PhaseChangeNotification) {
	for {
		select {
		case n := <-ch:
			fmt.Printf("🔄 You have moved from the %s phase into %s.\n", n.FromPhase, n.ToPhase)
		default:
			return
		}
	}
}
