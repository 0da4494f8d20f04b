package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbaille/tiku/internal/api"
	"github.com/pbaille/tiku/internal/catalog"
	"github.com/pbaille/tiku/internal/config"
	"github.com/pbaille/tiku/internal/domain"
	"github.com/pbaille/tiku/internal/fetcher"
	"github.com/pbaille/tiku/internal/ingest"
	"github.com/pbaille/tiku/internal/render"
	"github.com/pbaille/tiku/internal/store"
)

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
	logger  = slog.Default()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "tiku",
		Short:         "Incrementally collect mistake-book questions and render practice sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./tiku.yaml or ~/.tiku/tiku.yaml)")
	rootCmd.PersistentFlags().String("db", config.DefaultDBPath(), "database path")
	rootCmd.PersistentFlags().String("output-dir", ".", "directory for rendered sheets")
	_ = v.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = v.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setup() error {
	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	level, _ := c.Level()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg = c
	return nil
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.DBPath)
}

func writeDocument(questions []domain.Question) (string, error) {
	doc, err := render.New().Render(questions)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return render.WriteFile(cfg.OutputDir, time.Now(), doc)
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch new questions, store them and write a practice sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Credentials are checked before any request goes out
			if err := cfg.ValidateSession(); err != nil {
				return err
			}
			client, err := fetcher.New(cfg.Fetcher())
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := ingest.New(s, client, cfg.Ingest(), logger)
			if err != nil {
				return err
			}

			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			path, err := writeDocument(res.Questions)
			if err != nil {
				return fmt.Errorf("%w (questions are stored; retry with 'tiku render')", err)
			}

			rec := ingest.SyncRecord{
				RunID:      res.RunID,
				FinishedAt: time.Now(),
				Stored:     len(res.Questions),
				Missing:    res.Missing,
				Output:     path,
			}
			if err := ingest.SaveSyncRecord(cmd.Context(), s, rec); err != nil {
				return err
			}

			fmt.Printf("New questions: %d\n", len(res.Questions))
			if len(res.Missing) > 0 {
				fmt.Printf("Not returned by the service: %v\n", res.Missing)
			}
			fmt.Printf("Written: %s\n", path)
			return nil
		},
	}

	cmd.Flags().Int("chunk-size", 15, "question ids per detail request")
	cmd.Flags().String("catalog-commit", string(ingest.CommitAfter), "when to save the catalog snapshot: after|before")
	cmd.Flags().Duration("interval", 0, "minimum delay between detail requests")
	_ = v.BindPFlag("chunk_size", cmd.Flags().Lookup("chunk-size"))
	_ = v.BindPFlag("catalog_commit", cmd.Flags().Lookup("catalog-commit"))
	_ = v.BindPFlag("request_interval", cmd.Flags().Lookup("interval"))
	return cmd
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			questions, err := s.ListQuestions(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}

			if len(questions) == 0 {
				fmt.Println("No questions yet. Use 'tiku sync' to fetch some.")
				return nil
			}

			for _, q := range questions {
				fmt.Printf("%-10d  %s\n", q.ID, render.Truncate(render.PlainText(q.Content), 60))
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of questions to show")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a stored question with its answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id: %s", args[0])
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			q, err := s.GetQuestion(cmd.Context(), id)
			if err != nil {
				return err
			}

			doc, err := render.New().Render([]domain.Question{*q})
			if err != nil {
				return err
			}

			fmt.Printf("ID: %d\n\n", q.ID)
			fmt.Print(doc.Questions)
			fmt.Print(doc.Answers)
			return nil
		},
	}
}

func renderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [id...]",
		Short: "Write a practice sheet from stored questions (all when no ids given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var questions []domain.Question
			if len(args) == 0 {
				questions, err = s.ListQuestions(cmd.Context(), 0, 0)
				if err != nil {
					return err
				}
			}
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id: %s", arg)
				}
				q, err := s.GetQuestion(cmd.Context(), id)
				if err != nil {
					return err
				}
				questions = append(questions, *q)
			}

			path, err := writeDocument(questions)
			if err != nil {
				return err
			}

			fmt.Printf("Rendered %d questions: %s\n", len(questions), path)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store statistics and the last sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.CountQuestions(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database:  %s\n", cfg.DBPath)
			fmt.Printf("Questions: %d\n", n)

			raw, ok, err := s.GetConfig(ctx, ingest.CatalogKey)
			if err != nil {
				return err
			}
			if ok {
				tree, err := catalog.Parse([]byte(raw))
				if err != nil {
					return err
				}
				fmt.Printf("Catalog:   %d keypoints, %d question ids\n", len(tree), len(catalog.Flatten(tree)))
			}

			rec, err := ingest.LastSyncRecord(ctx, s)
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Println("Last sync: never")
				return nil
			}
			fmt.Printf("Last sync: %s (%d new, run %s)\n",
				rec.FinishedAt.Local().Format("2006-01-02 15:04:05"), rec.Stored, shortID(rec.RunID))
			if rec.Output != "" {
				fmt.Printf("Output:    %s\n", rec.Output)
			}
			if len(rec.Missing) > 0 {
				fmt.Printf("Missing:   %s\n", joinIDs(rec.Missing))
			}
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			server := api.New(s, addr, logger)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "server address")
	return cmd
}
