package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mentor/internal/engine"
	"github.com/pavelanni/mentor/internal/handler"
	"github.com/pavelanni/mentor/internal/llm"
	"github.com/pavelanni/mentor/internal/model"
	"github.com/pavelanni/mentor/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mentor",
		Short: "Adaptive AI tutor that learns how each learner learns",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `mentor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP tutoring server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "mentor.db", "SQLite database path")
	f.StringSliceP("modules", "m", []string{"modules/intro_programming.json"}, "Paths to module JSON files (repeatable)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("llm-fallback-url", "", "Fallback OpenAI-compatible API base URL (optional)")
	f.String("llm-fallback-key", "", "API key for fallback LLM")
	f.String("llm-fallback-model", "", "Fallback LLM model name")
	f.Float64("exploration-rate", engine.DefaultExplorationRate, "Probability of exploring a less-tried teaching style")
	f.Int("max-tokens", 1500, "Token budget for generated lessons")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set MENTOR_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export learner profiles, mastery, and retention stats as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "mentor.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MENTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mentor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mentor")
	v.AddConfigPath("/etc/mentor")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if err := loadModules(db, v.GetStringSlice("modules")); err != nil {
		return fmt.Errorf("load modules: %w", err)
	}

	providers := []llm.ProviderConfig{{
		Name:    "primary",
		BaseURL: v.GetString("llm-url"),
		APIKey:  v.GetString("llm-key"),
		Model:   v.GetString("llm-model"),
	}}
	if url := v.GetString("llm-fallback-url"); url != "" {
		providers = append(providers, llm.ProviderConfig{
			Name:    "fallback",
			BaseURL: url,
			APIKey:  v.GetString("llm-fallback-key"),
			Model:   v.GetString("llm-fallback-model"),
		})
	}
	llmClient, err := llm.New(providers, v.GetInt("max-tokens"))
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	cfg := model.TutorConfig{
		ExplorationRate: v.GetFloat64("exploration-rate"),
		MaxTokens:       v.GetInt("max-tokens"),
		SecureCookies:   v.GetBool("secure-cookies"),
	}

	tutor := engine.NewTutor(db, llmClient, llmClient, nil, cfg.ExplorationRate)
	h := handler.New(db, tutor, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"providers", len(providers),
		"exploration_rate", cfg.ExplorationRate,
	)
	return http.ListenAndServe(addr, r)
}

// learnerExport is the export document for one learner.
type learnerExport struct {
	Username    string                 `json:"username"`
	DisplayName string                 `json:"display_name"`
	Profile     *model.LearnerProfile  `json:"profile,omitempty"`
	Insights    *engine.Insights       `json:"insights,omitempty"`
	Mastery     []model.ConceptMastery `json:"mastery,omitempty"`
	Retention   *engine.RetentionStats `json:"retention,omitempty"`
	Progress    []model.ModuleProgress `json:"progress,omitempty"`
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	learners, err := db.ListLearners()
	if err != nil {
		return fmt.Errorf("list learners: %w", err)
	}

	repetition := engine.NewRepetition(db, nil, nil)
	var reports []learnerExport
	for _, u := range learners {
		report := learnerExport{Username: u.Username, DisplayName: u.DisplayName}

		report.Profile, err = db.GetLearnerProfile(u.ID)
		if err != nil {
			return fmt.Errorf("profile for %s: %w", u.Username, err)
		}
		if report.Profile != nil {
			report.Insights = engine.LearningInsights(report.Profile)
		}
		report.Mastery, err = db.ListConceptMastery(u.ID)
		if err != nil {
			return fmt.Errorf("mastery for %s: %w", u.Username, err)
		}
		report.Retention, err = repetition.Stats(u.ID)
		if err != nil {
			return fmt.Errorf("retention stats for %s: %w", u.Username, err)
		}
		report.Progress, err = db.ListModuleProgress(u.ID)
		if err != nil {
			return fmt.Errorf("progress for %s: %w", u.Username, err)
		}
		reports = append(reports, report)
	}

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}

// loadModules imports module seed files, skipping files whose content hash
// matches a previous import.
func loadModules(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("modules file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("modules file changed since last import, skipping to avoid breaking existing sessions",
				"path", path)
			continue
		}

		var modules []model.ModuleImport
		if err := json.Unmarshal(data, &modules); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, mi := range modules {
			err := db.InsertModule(model.Module{
				ID:                 mi.ID,
				Title:              mi.Title,
				Description:        mi.Description,
				Topic:              mi.Topic,
				LearningObjectives: mi.LearningObjectives,
				DifficultyLevel:    mi.DifficultyLevel,
				EstimatedTime:      mi.EstimatedTime,
			})
			if err != nil {
				return fmt.Errorf("insert module %s from %s: %w", mi.ID, path, err)
			}
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported modules", "path", path, "count", len(modules))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or MENTOR_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
