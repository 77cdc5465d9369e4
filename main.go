package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"ember/backend"
	"ember/budget"
	"ember/catalog"
	"ember/chat"
	"ember/config"
	"ember/runtime"
	"ember/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ember: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dataDir := cfg.DataDir()
	config.InitDebugLog(dataDir)

	catalogPath := filepath.Join(dataDir, "models.toml")
	if err := catalog.CreateDefaultCatalog(catalogPath); err != nil {
		return err
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return err
	}

	index, err := storage.NewSearchIndex(dataDir)
	if err != nil {
		return err
	}
	defer index.Close()

	store, err := storage.NewConversationStore(dataDir, index)
	if err != nil {
		return err
	}

	orch := runtime.New(backend.Config{
		OllamaHost:   cfg.OllamaHost,
		ContainerURL: cfg.ContainerURL,
	})
	defer orch.UnloadModel()

	planner := budget.NewPlanner(cat.ContextLength)
	mgr := chat.NewManager(store, cat, planner, orch, config.DebugLog)

	modelID := cfg.DefaultModel
	desc, ok := cat.Descriptor(modelID)
	if !ok {
		return fmt.Errorf("default model %q not in catalog (%s)", modelID, catalogPath)
	}
	fmt.Printf("loading %s (%s backend)...\n", desc.ID, desc.Kind)
	if err := orch.LoadModel(context.Background(), desc); err != nil {
		return fmt.Errorf("load %s: %w", desc.ID, err)
	}

	mgr.StartNewConversation(modelID)
	fmt.Println("ready. /new /list /search <text> /quit; Ctrl-C stops a reply.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := command(line, mgr, store, modelID); quit {
				return nil
			}
			continue
		}

		// Ctrl-C during a turn cancels just that stream; partial output is
		// kept since the stop was user-initiated.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		res, err := mgr.Send(ctx, line, true, func(chunk string) error {
			fmt.Print(chunk)
			return nil
		})
		stop()
		fmt.Println()

		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "[%v]\n", err)
		case res.StopReason != "":
			fmt.Printf("[stopped: %s, %d tokens, %.1f tok/s]\n",
				res.StopReason, res.Stats.TokenCount, res.Stats.TokensPerSecond)
		default:
			fmt.Printf("[%d tokens, %.1f tok/s]\n",
				res.Stats.TokenCount, res.Stats.TokensPerSecond)
		}
	}
}

func command(line string, mgr *chat.Manager, store *storage.ConversationStore, modelID string) (quit bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/q":
		return true
	case "/new":
		conv := mgr.StartNewConversation(modelID)
		fmt.Printf("new conversation %s\n", conv.ID)
	case "/open":
		if err := mgr.OpenConversation(strings.TrimSpace(arg)); err != nil {
			fmt.Fprintf(os.Stderr, "[%v]\n", err)
		}
	case "/list":
		summaries, err := store.LoadAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%v]\n", err)
			return false
		}
		for _, s := range summaries {
			fmt.Printf("%s  %-40s  %d messages\n", s.ID, s.Title, s.MessageCount)
		}
	case "/search":
		matches, err := store.SearchTitles(strings.TrimSpace(arg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%v]\n", err)
			return false
		}
		for _, s := range matches {
			fmt.Printf("%s  %s\n", s.ID, s.Title)
		}
	default:
		fmt.Println("commands: /new /open <id> /list /search <text> /quit")
	}
	return false
}
