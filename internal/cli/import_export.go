package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nself-org/chat-importer/internal/adapters"
	"github.com/nself-org/chat-importer/internal/config"
	"github.com/nself-org/chat-importer/internal/database"
	"github.com/nself-org/chat-importer/internal/importer"
)

// ImportCommand handles importing a chat export file from the command line.
type ImportCommand struct {
	FilePath     string
	Platform     string
	DatabasePath string
	Channels     string
	PreserveIDs  bool
	Overwrite    bool
	SkipFiles    bool
	SkipThreads  bool
	Verbose      bool
	DryRun       bool
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	fs.StringVar(&cmd.FilePath, "file", "", "Path to the chat export file (required)")
	fs.StringVar(&cmd.Platform, "platform", "", "Export platform: discord, slack or generic (auto-detected if not specified)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file for storing imported data")
	fs.StringVar(&cmd.Channels, "channels", "", "Comma-separated channel names to import (all channels if not specified)")
	fs.BoolVar(&cmd.PreserveIDs, "preserve-ids", false, "Keep the source platform's IDs instead of generating new ones")
	fs.BoolVar(&cmd.Overwrite, "overwrite", false, "Overwrite entities that were already imported from the same source")
	fs.BoolVar(&cmd.SkipFiles, "skip-files", false, "Skip the file attachments stage")
	fs.BoolVar(&cmd.SkipThreads, "skip-threads", false, "Skip thread replies")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print per-stage progress while importing")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Parse and summarize the export without making changes")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import a chat workspace export into a local database.\n\n")
		fmt.Fprintf(os.Stderr, "Supported formats: DiscordChatExporter JSON, Slack workspace export,\n")
		fmt.Fprintf(os.Stderr, "and generic CSV/JSON datasets of users, channels and messages.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Import a Discord export, auto-detecting the format:\n")
		fmt.Fprintf(os.Stderr, "  %s import -file export.json\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Import only two channels from a Slack export:\n")
		fmt.Fprintf(os.Stderr, "  %s import -file slack.json -platform slack -channels general,random\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Preview what would be imported:\n")
		fmt.Fprintf(os.Stderr, "  %s import -file export.json -dry-run\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.FilePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}

	return nil
}

func (cmd *ImportCommand) Run() error {
	fmt.Println("Chat Export Import")
	fmt.Println("==================")

	if cmd.DryRun {
		fmt.Println("DRY RUN MODE - No changes will be made")
		fmt.Println()
	}

	raw, err := os.ReadFile(cmd.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read export file: %w", err)
	}

	platform := cmd.Platform
	if platform == "" {
		platform = adapters.Detect(raw)
		fmt.Printf("Detected platform: %s\n", platform)
	}

	adapter, err := adapters.ForPlatform(platform)
	if err != nil {
		return err
	}

	fmt.Printf("File: %s\n", cmd.FilePath)
	fmt.Println("\nParsing export...")

	export, err := adapters.Load(adapter, raw)
	if err != nil {
		return fmt.Errorf("failed to parse export: %w", err)
	}

	fmt.Printf("Found %d users, %d channels, %d messages\n",
		len(export.Users), len(export.Channels), len(export.Messages))

	if cmd.DryRun {
		fmt.Println("\nDry run complete. Use without -dry-run to import.")
		return nil
	}

	absDBPath, err := filepath.Abs(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for database: %w", err)
	}
	cmd.DatabasePath = absDBPath

	fmt.Printf("\nSaving to database: %s\n", cmd.DatabasePath)

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	importCfg := importer.DefaultConfig()
	importCfg.PreserveIDs = cmd.PreserveIDs
	importCfg.OverwriteExisting = cmd.Overwrite
	importCfg.ImportFiles = !cmd.SkipFiles
	importCfg.ImportThreads = !cmd.SkipThreads
	if cmd.Channels != "" {
		for _, name := range strings.Split(cmd.Channels, ",") {
			if name = strings.TrimSpace(name); name != "" {
				importCfg.ChannelFilter = append(importCfg.ChannelFilter, name)
			}
		}
	}

	gateway := database.NewGateway(db, database.GatewayOptions{
		PreserveIDs:       importCfg.PreserveIDs,
		OverwriteExisting: importCfg.OverwriteExisting,
	})

	var opts []importer.Option
	if cmd.Verbose {
		opts = append(opts, importer.WithProgressFunc(func(p importer.Progress) {
			fmt.Printf("  [%s] %.1f%% (%d/%d)\n", p.CurrentStage, p.Percent, p.ItemsProcessed, p.ItemsTotal)
		}))
	}

	imp := importer.New(gateway, importCfg, opts...)

	fmt.Println("\nImporting...")
	started := time.Now()
	result := imp.Run(context.Background(), export)

	runs := database.NewRunRepository(db)
	if err := runs.SaveResult(uuid.NewString(), platform, started, result); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record import run: %v\n", err)
	}

	printResult(result)

	if !result.Success {
		return fmt.Errorf("import finished with status %s", result.Progress.Status)
	}
	return nil
}

func printResult(result *importer.Result) {
	stats := result.Stats

	fmt.Println("\n=== Import Summary ===")
	fmt.Printf("Status:    %s\n", result.Progress.Status)
	fmt.Printf("Duration:  %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("Users:     %d imported, %d skipped, %d failed\n",
		stats.UsersImported, stats.UsersSkipped, stats.UsersFailed)
	fmt.Printf("Channels:  %d imported, %d skipped, %d failed\n",
		stats.ChannelsImported, stats.ChannelsSkipped, stats.ChannelsFailed)
	fmt.Printf("Messages:  %d imported, %d skipped, %d failed\n",
		stats.MessagesImported, stats.MessagesSkipped, stats.MessagesFailed)
	fmt.Printf("Files:     %d imported, %d skipped, %d failed\n",
		stats.FilesImported, stats.FilesSkipped, stats.FilesFailed)
	fmt.Printf("Threads:   %d replies\n", stats.ThreadsImported)
	fmt.Printf("Reactions: %d\n", stats.ReactionsImported)

	if len(result.Progress.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Progress.Warnings))
		for _, w := range result.Progress.Warnings {
			fmt.Printf("  - [%s] %s: %s\n", w.Kind, w.Item, w.Message)
		}
	}
	if len(result.Progress.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Progress.Errors))
		for _, e := range result.Progress.Errors {
			fmt.Printf("  - [%s] %s: %s\n", e.Kind, e.Item, e.Message)
		}
	}
}
