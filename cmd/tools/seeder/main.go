package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/service/tmdb"
	"github.com/zhouzirui/moodreel/backend/internal/store/movies"
)

var (
	cfg *config.Config

	catalogPath string
	quickMode   bool
	movieCount  int
)

var rootCmd = &cobra.Command{
	Use:          "seeder",
	Short:        "Manage the moodreel movie catalog",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			logging.Debug().Err(err).Msg("no .env file, using system environment only")
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfg = loaded
		logging.Init(logging.Config{Level: cfg.Log.Level, Format: "console"})

		if catalogPath == "" {
			catalogPath = cfg.Catalog.Path
		}
		if catalogPath == "" {
			return errors.New("no catalog path: set CATALOG_PATH or pass --catalog")
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fetch movies from TMDB into the catalog",
	Long: `Fetch popular and top rated movies from TMDB and store them in the catalog.

Full mode also looks up runtime and the YouTube trailer of every movie.
Quick mode reads popular pages only and skips those lookups.

Examples:
  seeder seed
  seeder seed --quick --count 100`,
	RunE: runSeed,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of movies in the catalog",
	RunE:  runStats,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog directory (default $CATALOG_PATH)")
	seedCmd.Flags().BoolVarP(&quickMode, "quick", "q", false, "skip runtime and trailer lookups")
	seedCmd.Flags().IntVar(&movieCount, "count", 1000, "number of movies to fetch")

	rootCmd.AddCommand(seedCmd, statsCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if movieCount <= 0 {
		return fmt.Errorf("--count must be positive, got %d", movieCount)
	}

	client, err := tmdb.NewClient(cfg.TMDB)
	if err != nil {
		return err
	}

	store, err := movies.OpenBadger(catalogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := tmdb.Ingest(cmd.Context(), client, store, tmdb.Options{Count: movieCount, Quick: quickMode})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stored %d movies (%d skipped)\n", report.Stored, report.Skipped)
	if len(report.Sample) > 0 {
		fmt.Fprintln(out, "\nSample movies:")
		for _, m := range report.Sample {
			fmt.Fprintf(out, "  - %s (%d) - %s\n", m.Title, m.Year, strings.Join(m.Genres, ", "))
		}
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := movies.OpenBadger(catalogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Catalog %s holds %d movies\n", catalogPath, n)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
