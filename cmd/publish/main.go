package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/database"
	"github.com/stemsi/exstem-kiosk/internal/examfile"
	"github.com/stemsi/exstem-kiosk/internal/logger"
	"github.com/stemsi/exstem-kiosk/internal/repository"
	"github.com/stemsi/exstem-kiosk/internal/service"
	"github.com/stemsi/exstem-kiosk/internal/store"
	"github.com/stemsi/exstem-kiosk/internal/validator"
)

// publish manages the published exam in the configured store without going
// through the HTTP API.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	if err := requireSharedStore(cfg.StoreBackend); err != nil {
		log.Fatal().Err(err).Str("store", cfg.StoreBackend).
			Msg("Set STORE_BACKEND=redis or STORE_BACKEND=postgres to the server's store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// ─── Connect Store ─────────────────────────────────────────────────
	backends, err := database.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer backends.Close()

	publisher := service.NewPublisherService(repository.NewExamRepository(backends.Store, log), cfg, log)

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "publish":
		err = runPublish(ctx, publisher, args)
	case "clear":
		err = publisher.ClearPublished(ctx)
	case "export-config":
		err = runExport(args, "exam-config.json", func() ([]byte, error) { return publisher.ExportConfig(ctx) })
	case "export-csv":
		err = runExport(args, "submissions.csv", func() ([]byte, error) { return publisher.ExportSubmissionsCSV(ctx) })
	default:
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		var defErr *service.DefinitionError
		if errors.As(err, &defErr) {
			for field, msg := range defErr.Fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
		}
		backends.Close()
		log.Fatal().Err(err).Str("command", command).Msg("Command failed")
	}
}

// errMemoryStore is returned when the CLI would write to a store that lives
// only as long as this process.
var errMemoryStore = errors.New("memory store is private to each process, changes would not reach the server")

func requireSharedStore(backend string) error {
	if backend == store.BackendMemory {
		return errMemoryStore
	}
	return store.ValidateBackend(backend)
}

func runPublish(ctx context.Context, publisher *service.PublisherService, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	file := fs.String("file", "", "Exam definition (.json, .yaml or .yml)")
	code := fs.String("code", "", "Access code (default: DEFAULT_ACCESS_CODE)")
	maxViolations := fs.Int("max-violations", -1, "Violations before auto-submit (default: DEFAULT_MAX_VIOLATIONS)")
	voice := fs.String("voice", "", "Voice hint; empty keeps voice prompts off")
	fs.Parse(args)

	if *file == "" {
		return errors.New("-file is required")
	}
	raw, err := examfile.Load(*file)
	if err != nil {
		return err
	}

	var maxPtr *int
	if *maxViolations >= 0 {
		maxPtr = maxViolations
	}
	out, err := publisher.Publish(ctx, string(raw), *code, maxPtr, *voice)
	if err != nil {
		return err
	}
	fmt.Printf("Published %s (%d questions), access code %q, max violations %d\n",
		out.Exam.Meta.ExamID, len(out.Exam.Questions), out.Settings.AccessCode, out.Settings.MaxViolations)
	return nil
}

func runExport(args []string, defaultName string, export func() ([]byte, error)) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", defaultName, "Output file, - for stdout")
	fs.Parse(args)

	raw, err := export()
	if err != nil {
		return err
	}
	if *out == "-" {
		_, err = os.Stdout.Write(raw)
		return err
	}
	if err := os.WriteFile(*out, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", *out, len(raw))
	return nil
}

func printUsage() {
	fmt.Println("Usage: publish <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  publish -file exam.yaml [-code CODE] [-max-violations N] [-voice TEXT]")
	fmt.Println("  clear")
	fmt.Println("  export-config [-out exam-config.json]")
	fmt.Println("  export-csv [-out submissions.csv]")
}
