// Command songbird is a terminal AI coding agent.
//
// Usage:
//
//	songbird                                 start a chat in the current project
//	songbird --provider anthropic            pick a provider explicitly
//	songbird -c                              continue the latest session
//	songbird -r <session-id>                 resume a specific session
//	songbird providers                       list providers and their models
//	songbird status                          show configuration and session info
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/songbird-ai/songbird/pkg/agent"
	"github.com/songbird-ai/songbird/pkg/cli"
	"github.com/songbird-ai/songbird/pkg/config"
	"github.com/songbird-ai/songbird/pkg/discovery"
	"github.com/songbird-ai/songbird/pkg/llms"
	"github.com/songbird-ai/songbird/pkg/logger"
	"github.com/songbird-ai/songbird/pkg/session"
	"github.com/songbird-ai/songbird/pkg/tools"
	"github.com/songbird-ai/songbird/pkg/utils"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat      ChatCmd      `cmd:"" default:"withargs" help:"Start an interactive coding session."`
	Version   VersionCmd   `cmd:"" help:"Show version information."`
	Status    StatusCmd    `cmd:"" help:"Show configuration, provider, and session status."`
	Providers ProvidersCmd `cmd:"" help:"List providers and their available models."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"warn"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("songbird %s\n", version)
	return nil
}

// StatusCmd shows the resolved configuration and latest session.
type StatusCmd struct{}

func (c *StatusCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	projectRoot := session.CurrentProjectRoot()
	fmt.Printf("Project:   %s\n", projectRoot)
	fmt.Printf("Provider:  %s\n", cfg.Provider)
	fmt.Printf("Model:     %s\n", cfg.Model)
	if cfg.ProviderURL != "" {
		fmt.Printf("API base:  %s\n", cfg.ProviderURL)
	}

	key, needsKey := config.APIKey(cfg.Provider)
	switch {
	case !needsKey:
		fmt.Printf("API key:   not required\n")
	case key != "":
		fmt.Printf("API key:   configured\n")
	default:
		fmt.Printf("API key:   missing (set %s)\n", strings.Join(config.EnvKeyNames(cfg.Provider), " or "))
	}

	store, err := newSessionStore()
	if err != nil {
		return err
	}
	latest, err := store.Latest(projectRoot)
	if err != nil {
		return err
	}
	if latest == nil {
		fmt.Printf("Sessions:  none for this project\n")
	} else {
		fmt.Printf("Sessions:  latest %s (%s) %q\n",
			latest.ID, latest.UpdatedAt.Local().Format("2006-01-02 15:04"), latest.Summary)
		if est := transcriptEstimate(store, projectRoot, latest.ID, cfg.Model); est != "" {
			fmt.Printf("Context:   %s\n", est)
		}
	}
	return nil
}

// transcriptEstimate sizes a session's transcript in tokens. The status
// output is best effort; any failure yields an empty string.
func transcriptEstimate(store *session.Store, projectRoot, id, model string) string {
	sess, err := store.Load(projectRoot, id)
	if err != nil {
		return ""
	}
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		return ""
	}
	total := 0
	for _, msg := range sess.Messages {
		total += counter.CountMessage(msg.Role, msg.Content)
	}
	return fmt.Sprintf("~%d tokens in %d messages", total, len(sess.Messages))
}

// ProvidersCmd lists providers and their models.
type ProvidersCmd struct {
	Provider string `arg:"" optional:"" help:"Only list models for this provider."`
}

func (c *ProvidersCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	svc := discovery.NewService(discovery.WithFastMode(cfg.FastMode))

	providers := config.KnownProviders()
	if c.Provider != "" {
		providers = []string{c.Provider}
	}

	for _, provider := range providers {
		models, err := svc.ListModels(context.Background(), provider)
		if err != nil {
			return err
		}
		source := ""
		if svc.UsedFallback(provider) {
			source = " (known defaults; live listing unavailable)"
		}
		fmt.Printf("%s%s\n", provider, source)
		for _, m := range models {
			fmt.Printf("  %s\n", m.ID)
		}
	}
	return nil
}

// ChatCmd runs the interactive session.
type ChatCmd struct {
	Provider    string `help:"LLM provider (openai, anthropic, gemini, openrouter, ollama)."`
	Model       string `help:"Model name, optionally vendor-prefixed (anthropic/claude-sonnet-4-20250514)."`
	ProviderURL string `name:"provider-url" help:"Custom API base URL."`
	Continue    bool   `short:"c" help:"Continue the most recent session in this project."`
	Resume      string `short:"r" help:"Resume a session by ID." placeholder:"SESSION_ID"`
	Prompt      string `arg:"" optional:"" help:"One-shot prompt; exits after the reply."`
}

func (c *ChatCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.Provider != "" {
		cfg.Provider = c.Provider
		if c.Model == "" {
			cfg.Model = config.DefaultModel(cfg.Provider)
		}
	}
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.ProviderURL != "" {
		cfg.ProviderURL = c.ProviderURL
	}

	projectRoot := session.CurrentProjectRoot()
	store, err := newSessionStore()
	if err != nil {
		return err
	}

	providerCfg := session.ProviderConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIBase:  cfg.ProviderURL,
	}

	sess, err := c.openSession(store, projectRoot, providerCfg)
	if err != nil {
		return err
	}
	// Explicit flags override whatever a resumed session recorded.
	if c.Provider != "" || c.Model != "" || c.ProviderURL != "" {
		sess.SetProvider(providerCfg)
	}

	adapter, err := llms.NewUnifiedAdapter(sess.Provider.Provider, sess.Provider.Model, sess.Provider.APIBase)
	if err != nil {
		return err
	}
	defer adapter.Cleanup()

	terminal := cli.NewTerminal()
	interrupts := cli.NewInterruptHandler(terminal)
	defer interrupts.Close()

	workspace, err := tools.NewWorkspace(projectRoot)
	if err != nil {
		return err
	}
	todoStore := tools.NewTodoStore(store.ProjectDir(projectRoot))
	todoStore.SetSessionID(sess.ID)

	confirm := terminal.Confirm
	if cfg.AutoApply {
		confirm = func(ctx context.Context, path, diff string) (bool, error) { return true, nil }
	}

	// The registry's confirm gate needs the agent for state tracking,
	// and the agent needs the registry. Tools only confirm mid-turn,
	// well after both exist, so a late-bound pointer closes the cycle.
	var ag *agent.Agent
	registry, err := tools.NewDefaultRegistry(workspace, todoStore, func(ctx context.Context, path, diff string) (bool, error) {
		return ag.GateConfirm(confirm)(ctx, path, diff)
	})
	if err != nil {
		return err
	}

	ag = agent.New(adapter, registry, store, sess, agent.Options{
		UI:                terminal,
		MaxToolIterations: cfg.MaxToolIterations,
		FastMode:          cfg.FastMode,
	})

	if c.Prompt != "" {
		return runTurn(ag, interrupts, c.Prompt)
	}

	terminal.Notify(fmt.Sprintf("songbird · %s · %s · session %s",
		adapter.Vendor(), adapter.ModelName(), shortID(sess.ID)))
	terminal.Notify(`Type a request, "/model <name>" to switch models, or "/exit" to quit.`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := handleSlashCommand(ag, terminal, line); done {
				return nil
			}
			continue
		}

		if err := runTurn(ag, interrupts, line); err != nil {
			// Provider failures are recoverable: show them and
			// re-prompt instead of killing the session.
			if recoverable(err) {
				terminal.Notify(err.Error())
				continue
			}
			return err
		}
	}
}

// recoverable reports whether a turn error should be printed and the
// prompt reshown instead of ending the process.
func recoverable(err error) bool {
	var perr *llms.ProviderError
	return errors.As(err, &perr)
}

func runTurn(ag *agent.Agent, interrupts *cli.InterruptHandler, text string) error {
	ctx, cancel := context.WithCancel(context.Background())
	interrupts.Watch(cancel)
	defer func() {
		interrupts.Watch(nil)
		cancel()
	}()

	_, err := ag.HandleMessage(ctx, text)
	if errors.Is(err, agent.ErrCancelled) {
		return nil
	}
	if err != nil {
		var perr *llms.ProviderError
		if errors.As(err, &perr) && perr.Hint() != "" {
			return fmt.Errorf("%w\n  hint: %s", err, perr.Hint())
		}
		return err
	}
	return nil
}

func handleSlashCommand(ag *agent.Agent, terminal *cli.Terminal, line string) (done bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/model":
		if len(fields) < 2 {
			terminal.Notify("usage: /model <name>")
			return false
		}
		ag.SwitchModel(fields[1])
		return false
	case "/tokens":
		counter, err := utils.NewTokenCounter(ag.Session().Provider.Model)
		if err != nil {
			terminal.Notify(fmt.Sprintf("cannot load token encoding: %v", err))
			return false
		}
		terminal.Notify(fmt.Sprintf("~%d tokens in %d messages",
			ag.EstimateTokens(counter), len(ag.Session().Messages)))
		return false
	case "/help":
		terminal.Notify("/model <name>  switch models\n/tokens        show transcript size\n/exit          quit")
		return false
	default:
		terminal.Notify(fmt.Sprintf("unknown command %s (try /help)", fields[0]))
		return false
	}
}

func (c *ChatCmd) openSession(store *session.Store, projectRoot string, providerCfg session.ProviderConfig) (*session.Session, error) {
	switch {
	case c.Resume != "":
		sess, err := store.Load(projectRoot, c.Resume)
		if err != nil {
			return nil, fmt.Errorf("cannot resume session %s: %w", c.Resume, err)
		}
		return sess, nil
	case c.Continue:
		latest, err := store.Latest(projectRoot)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			return store.Load(projectRoot, latest.ID)
		}
		// nothing to continue; start fresh
		return session.New(projectRoot, providerCfg), nil
	default:
		return session.New(projectRoot, providerCfg), nil
	}
}

func newSessionStore() (*session.Store, error) {
	dataDir, err := config.DataDir()
	if err != nil {
		return nil, err
	}
	return session.NewStore(filepath.Join(dataDir, "projects")), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func main() {
	config.LoadEnvFiles()

	var c CLI
	ctx := kong.Parse(&c,
		kong.Name("songbird"),
		kong.Description("Songbird - terminal AI coding agent"),
		kong.UsageOnError(),
	)

	level := logger.ParseLevel(c.LogLevel)
	if c.LogFile != "" {
		f, cleanup, err := logger.OpenLogFile(c.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		logger.Init(level, f, c.LogFormat)
	} else {
		logger.Init(level, os.Stderr, c.LogFormat)
	}

	err := ctx.Run(&c)
	ctx.FatalIfErrorf(err)
}
