package main

import (
	"fmt"
	"os"

	"cargobot/internal/config"
	"cargobot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	appConfig *config.Config

	// Logger
	logger *zap.Logger

	// Set with -ldflags "-X main.version=..."
	version = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cargobot",
	Short: "Telegram bot for tracking logistics orders",
	Long: `cargobot answers staff questions about freight orders whose lifecycle
events are synced into a Postgres (Supabase) database, renders PDF
activity reports and delivers queued notifications.

Configuration comes from an optional YAML file (--config) and
environment variables (TELEGRAM_TOKEN, DATABASE_URL, ADMIN_IDS, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		appConfig = cfg

		// Initialize logger
		logger, err = logging.NewZap(cfg.Logging.ToLogging(), verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Install(logger, cfg.Logging.ToLogging())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// runCmd starts the bot
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot (long polling, notification dispatcher, metrics)",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

// migrateCmd creates the schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

// reportCmd renders a report without Telegram
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the PDF activity report to a file",
	Long: `Renders the same report /report sends in chat, from the events of the
configured lookback window.

Example:
  cargobot report --out ./weekly.pdf`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

// enqueueCmd adds a pending notification
var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a notification for delivery by the running bot",
	Long: `Inserts a pending row into notifications_queue. The bot's dispatcher
sends it (Markdown) on its next cycle.

Example:
  cargobot enqueue --chat 123456789 --text "*MLS-042* arrived at Sarakhs"`,
	Args: cobra.NoArgs,
	RunE: runEnqueue,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cargobot %s\n", version)
	},
}

var (
	reportOut   string
	enqueueChat int64
	enqueueText string
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file (missing file = defaults)")

	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Output file (default: a new file in reports.dir)")

	enqueueCmd.Flags().Int64Var(&enqueueChat, "chat", 0, "Telegram chat id (required)")
	enqueueCmd.Flags().StringVar(&enqueueText, "text", "", "Message text, Markdown (required)")
	enqueueCmd.MarkFlagRequired("chat")
	enqueueCmd.MarkFlagRequired("text")

	// Add commands to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
