package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trivia-quiz/internal/adapter"
	"trivia-quiz/internal/adapter/opentdb"
	"trivia-quiz/internal/bank"
	"trivia-quiz/internal/cache"
	"trivia-quiz/internal/config"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/logger"
	"trivia-quiz/internal/service"
	"trivia-quiz/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	categoryID int
	difficulty string
	randomPick bool
	offline    bool
	playerID   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a timed trivia quiz in the terminal",
	Long: `Play twenty multiple-choice questions from Open Trivia DB.
Each question has a 30 second countdown. Answer with A-D,
press Enter to move on, or type q to quit.

When Open Trivia DB cannot be reached the built-in question
bank is used instead.`,
	SilenceUsage: true,
	RunE:         runPlay,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List playable categories",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, c := range domain.Categories {
			fmt.Fprintf(out, "%3d  %s %s\n", c.ID, c.Icon, c.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a config file")
	flags.IntVar(&categoryID, "category", domain.DefaultCategoryID, "Category ID (see 'play categories')")
	flags.StringVarP(&difficulty, "difficulty", "d", string(domain.DifficultyEasy), "easy, medium or hard")
	flags.BoolVarP(&randomPick, "random", "r", false, "Pick a random category and difficulty")
	flags.BoolVar(&offline, "offline", false, "Only use the built-in question bank")
	flags.StringVarP(&playerID, "player", "p", "local", "Player name used to keep game records")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log to stderr at the configured level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfigFile(configPath)
	}
	return config.LoadConfig()
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !verbose {
		cfg.Logger.Level = "error"
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if cfg.File != "" {
		logger.Get().Info("Using config file", zap.String("path", cfg.File))
	}

	rng := util.NewLockedRand(cfg.Quiz.Seed)

	quizCfg := domain.QuizConfig{CategoryID: categoryID, Difficulty: domain.Difficulty(difficulty)}
	if randomPick {
		quizCfg = domain.RandomConfig(rng)
	} else {
		d, err := domain.ParseDifficulty(difficulty)
		if err != nil {
			return err
		}
		quizCfg.Difficulty = d
		if err := quizCfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	questionBank, err := bank.Default()
	if err != nil {
		return err
	}

	var source domain.QuestionSource
	if !offline {
		client, err := opentdb.NewClient(cfg.Trivia.BaseURL, cfg.Trivia.Timeout, rng, logger.Get())
		if err != nil {
			return err
		}
		source = client
	}

	store, closeStore := openRecordStore(ctx, cfg)
	defer closeStore()

	records, err := store.List(ctx, playerID)
	if err != nil {
		logger.Get().Warn("Failed to load game records", zap.Error(err))
	}

	session := service.NewSession(source, questionBank,
		service.WithRandomizer(rng),
		service.WithRecords(records),
		service.WithOnFinish(func(r domain.GameRecord) {
			if err := store.Append(context.Background(), playerID, r); err != nil {
				logger.Get().Error("Failed to save game record", zap.Error(err))
			}
		}),
	)

	g := newGame(session, cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Quiz.TickInterval)
	return g.play(ctx, quizCfg)
}

// openRecordStore uses Redis when configured so records follow the player
// between runs, and memory otherwise.
func openRecordStore(ctx context.Context, cfg *config.Config) (service.RecordStore, func()) {
	if !cfg.Redis.Enabled() {
		return service.NewMemoryRecordStore(), func() {}
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Get().Warn("Redis unavailable, game records kept in memory", zap.Error(err))
		return service.NewMemoryRecordStore(), func() {}
	}
	return service.NewRecordStore(adapter.NewRedisCacheAdapter(client), cfg.Records.TTL), func() { _ = client.Close() }
}
