package main

import (
	"collab/internal/config"
	"collab/internal/embedding"
	"collab/internal/graph"
	"collab/internal/ingest"
	"collab/internal/llm"
	"collab/internal/logging"
	"collab/internal/retrieval"
	"collab/internal/session"
	"collab/internal/store"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "collab",
	Short: "collab - assistente colaborativo de equipe",
	Long: `collab is a small team assistant: a chat that routes prefixed commands
to deterministic handlers and everything else to a local LLM.

Message prefixes:
  buscar:  <consulta>                      similarity search over indexed PDFs
  resumir: <texto>                         deterministic text summary
  votar:   <tema> ; <sim|não|abster>       cast a vote on a topic
  tarefa:  <descrição> ; <usuário> ; <prazo>  create a task

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "collab" && cmd.CalledAs() == "collab" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch interactive chat
		return runInteractiveChat()
	},
}

// ingestCmd indexes PDF files into a collection
var ingestCmd = &cobra.Command{
	Use:   "ingest [pdf...]",
	Short: "Extract and index PDF pages for retrieval",
	Long: `Extracts the text of each PDF page, embeds it and stores the chunks
in the local database. Indexed chunks are searched by 'buscar:' messages
and by the 'ask' command.

Example:
  collab ingest ata-reuniao.pdf plano-q3.pdf --collection reunioes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

// askCmd answers a question grounded on the indexed PDFs
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question using the indexed PDFs as context",
	Long: `Retrieves the most similar chunks for the question and asks the LLM
to answer using them as context.

Example:
  collab ask "qual foi a decisão sobre o orçamento?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// taskCmd groups the task ledger operations
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the shared task list",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open tasks",
	RunE:  runTaskList,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Complete (remove) a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

// voteCmd casts a vote on a topic
var voteCmd = &cobra.Command{
	Use:   "vote [topic] [choice]",
	Short: "Cast a vote on a topic",
	Long: `Registers one vote per user per topic. Accepted choices: sim, não,
nao, abster, yes, no, abstain.

Example:
  collab vote "mudar horário da daily" sim --user ana`,
	Args: cobra.ExactArgs(2),
	RunE: runVote,
}

// statusCmd shows ledger and storage status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collab storage status",
	RunE:  showStatus,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: collab.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	ingestCmd.Flags().String("collection", "", "Target collection (default: config default_collection)")
	askCmd.Flags().String("collection", "", "Collection to search (default: config default_collection)")

	taskCreateCmd.Flags().String("assignee", "desconhecido", "Who the task is assigned to")
	taskCreateCmd.Flags().String("deadline", "sem prazo", "Task deadline, free-form")

	voteCmd.Flags().String("user", "", "Voter identity (required)")
	voteCmd.MarkFlagRequired("user")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDoneCmd)

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// =============================================================================
// RUNTIME WIRING
// =============================================================================

// runtime bundles the backend components behind every command.
type runtime struct {
	cfg     config.Config
	ledger  *store.LocalStore
	actions *logging.ActionLog
	adapter *retrieval.Adapter
	router  *graph.Router
}

// openRuntime loads the config and opens storage, the action log and the
// model backends. Callers must Close it.
func openRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.Dir = dataDir
	}

	if err := logging.Initialize(cfg.Storage.Dir, logging.Options{
		Debug: cfg.Logging.Debug || verbose,
		Level: cfg.Logging.Level,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize debug logging: %w", err)
	}

	ledger, err := store.Open(filepath.Join(cfg.Storage.Dir, "collab.db"))
	if err != nil {
		return nil, err
	}

	actions, err := logging.OpenActionLog(filepath.Join(cfg.Storage.Dir, "logs"))
	if err != nil {
		ledger.Close()
		return nil, err
	}
	ledger.SetActionLog(actions)

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		actions.Close()
		ledger.Close()
		return nil, err
	}
	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		actions.Close()
		ledger.Close()
		return nil, err
	}

	adapter := retrieval.NewAdapter(ledger, engine, client, cfg.Retrieval.TopK)
	router := graph.NewRouter(adapter, ledger, actions, cfg.Retrieval.DefaultCollection)

	return &runtime{
		cfg:     cfg,
		ledger:  ledger,
		actions: actions,
		adapter: adapter,
		router:  router,
	}, nil
}

func (r *runtime) sessionsDir() string {
	return filepath.Join(r.cfg.Storage.Dir, "sessions")
}

func (r *runtime) Close() {
	r.actions.Close()
	r.ledger.Close()
	logging.Shutdown()
}

// cancelOnSignal cancels ctx on SIGINT/SIGTERM.
func cancelOnSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if logger != nil {
			logger.Info("Received shutdown signal")
		}
		cancel()
	}()
}

// =============================================================================
// COMMANDS
// =============================================================================

// runIngest extracts, embeds and stores the pages of each PDF
func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cancelOnSignal(cancel)

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	collection, _ := cmd.Flags().GetString("collection")
	if collection == "" {
		collection = rt.cfg.Retrieval.DefaultCollection
	}

	total := 0
	for _, path := range args {
		logger.Info("Ingesting PDF",
			zap.String("path", path),
			zap.String("collection", collection))

		chunks, err := ingest.ExtractChunks(path, collection)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", path, err)
		}
		if err := rt.adapter.Index(ctx, chunks); err != nil {
			return fmt.Errorf("failed to index %s: %w", path, err)
		}

		total += len(chunks)
		fmt.Printf("Indexed %s: %d page(s)\n", path, len(chunks))
	}
	rt.actions.Record(logging.Action{Type: logging.ActionIndex, Content: collection, Count: total})

	count, err := rt.ledger.CountChunks(collection)
	if err != nil {
		return err
	}
	fmt.Printf("Collection %q now holds %d chunk(s) (+%d)\n", collection, count, total)
	return nil
}

// runAsk answers a question grounded on the indexed chunks
func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cancelOnSignal(cancel)

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	collection, _ := cmd.Flags().GetString("collection")
	if collection == "" {
		collection = rt.cfg.Retrieval.DefaultCollection
	}

	question := strings.Join(args, " ")
	logger.Info("Answering question",
		zap.String("question", question),
		zap.String("collection", collection))

	answer, err := rt.adapter.AskWithContext(ctx, question, collection)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	fmt.Println(answer)
	return nil
}

// runTaskCreate adds a task to the shared list
func runTaskCreate(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	description := strings.Join(args, " ")
	assignee, _ := cmd.Flags().GetString("assignee")
	deadline, _ := cmd.Flags().GetString("deadline")

	task, err := rt.ledger.CreateTask(description, assignee, deadline)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	logger.Info("Task created", zap.String("id", task.ID))
	fmt.Printf("Tarefa criada com sucesso! (%s)\n", task.ID)
	return nil
}

// runTaskList prints the open tasks in creation order
func runTaskList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	tasks, err := rt.ledger.ListTasks()
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("Nenhuma tarefa pendente.")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%s  %-40s  %s  (%s)\n", t.ID, t.Description, t.Assignee, t.Deadline)
	}
	return nil
}

// runTaskDone completes a task. Unknown ids are a silent no-op so that a
// retried completion never errors.
func runTaskDone(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	id := args[0]
	if err := rt.ledger.CompleteTask(id); err != nil {
		return fmt.Errorf("failed to complete task %s: %w", id, err)
	}

	fmt.Printf("Tarefa %s concluída.\n", id)
	return nil
}

// runVote casts one vote and prints the updated tally
func runVote(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	topic, choice := args[0], args[1]
	user, _ := cmd.Flags().GetString("user")

	tally, err := rt.ledger.CastVote(topic, user, choice)
	switch {
	case errors.Is(err, store.ErrInvalidChoice):
		return fmt.Errorf("voto inválido %q: use sim, não ou abster", choice)
	case errors.Is(err, store.ErrDuplicateVote):
		return fmt.Errorf("%s já votou em %q", user, topic)
	case err != nil:
		return fmt.Errorf("failed to cast vote: %w", err)
	}

	logger.Info("Vote recorded",
		zap.String("topic", topic),
		zap.String("user", user))
	fmt.Printf("Placar de %q: sim=%d não=%d abster=%d (%d votos)\n",
		tally.Topic, tally.Yes, tally.No, tally.Abstain, len(tally.Votes))
	return nil
}

// showStatus displays storage and ledger status
func showStatus(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Println("collab Status")
	fmt.Println("=============")
	fmt.Printf("Data dir:   %s\n", rt.cfg.Storage.Dir)
	fmt.Printf("LLM:        %s (%s)\n", rt.cfg.LLM.Model, rt.cfg.LLM.Provider)
	fmt.Printf("Embeddings: %s (%s)\n", rt.cfg.Embedding.Model, rt.cfg.Embedding.Provider)
	fmt.Printf("Action log: %s\n", rt.actions.Path())
	fmt.Println()

	stats, err := rt.ledger.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Tasks:  %d\n", stats["tasks"])
	fmt.Printf("Votes:  %d\n", stats["votes"])
	fmt.Printf("Chunks: %d\n", stats["chunks"])
	var collections []string
	for key := range stats {
		if name, ok := strings.CutPrefix(key, "collection:"); ok {
			collections = append(collections, name)
		}
	}
	sort.Strings(collections)
	for _, name := range collections {
		fmt.Printf("  %-40s %d chunks\n", name, stats["collection:"+name])
	}
	if dropped := rt.actions.Dropped(); dropped > 0 {
		fmt.Printf("Dropped action-log writes: %d\n", dropped)
	}

	topics, err := rt.ledger.ListTopics()
	if err != nil {
		return err
	}
	if len(topics) > 0 {
		fmt.Println("\nTopics:")
		for _, topic := range topics {
			tally, err := rt.ledger.GetTally(topic)
			if err != nil {
				continue
			}
			fmt.Printf("  %-40s sim=%d não=%d abster=%d\n",
				topic, tally.Yes, tally.No, tally.Abstain)
		}
	}

	sessions, err := session.List(rt.sessionsDir())
	if err == nil && len(sessions) > 0 {
		fmt.Printf("\nSessions: %d saved\n", len(sessions))
	}

	return nil
}
