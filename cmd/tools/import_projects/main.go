package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"synapse-project-api/internal/config"
	"synapse-project-api/internal/events"
	"synapse-project-api/internal/logging"
	"synapse-project-api/internal/repository"
	"synapse-project-api/internal/service"
	"synapse-project-api/pkg/importer"
)

func main() {
	var (
		filePath    = flag.String("file", "", "path to the .xlsx workbook")
		mappingPath = flag.String("mapping", "", "YAML header mapping (default: built-in)")
		dryRun      = flag.Bool("dry-run", false, "validate rows without creating projects")
		maxErrors   = flag.Int("max-errors", 50, "abort after this many row errors")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Error: -file is required")
		fmt.Println("Usage: import_projects -file=path.xlsx [-mapping=configs/mapping/projects.yaml] [-dry-run] [-max-errors=50]")
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := repository.Open(ctx, cfg.Storage, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %s", logging.SanitizeError(err))
	}
	defer store.Close()

	publisher, err := events.NewPublisher(ctx, cfg.Events, logger)
	if err != nil {
		log.Fatalf("Failed to connect event publisher: %s", logging.SanitizeError(err))
	}
	defer publisher.Close()

	dispatcher := events.NewDispatcher(publisher, events.DispatcherConfigFrom(cfg.Events), logger)
	projects := service.NewProjectService(store, dispatcher, logger)

	file, err := os.Open(*filePath)
	if err != nil {
		log.Fatalf("Failed to open Excel file: %v", err)
	}
	defer file.Close()

	fmt.Printf("Importing from %s into %s storage (dry_run=%v)\n", *filePath, cfg.Storage.Driver, *dryRun)
	fmt.Println(strings.Repeat("=", 60))

	summary, importErr := importer.ImportExcel(ctx, projects, file, importer.ImportOptions{
		MappingPath: *mappingPath,
		DryRun:      *dryRun,
		MaxErrors:   *maxErrors,
	})

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dispatcher.Close(flushCtx); err != nil {
		fmt.Printf("Warning: some ProjectCreated events were not delivered: %v\n", err)
	}

	printSummary(summary)
	if importErr != nil {
		fmt.Printf("\nImport failed: %v\n", importErr)
		os.Exit(1)
	}
}

func printSummary(summary importer.ImportSummary) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Total inserted: %d\n", summary.Inserted)
	fmt.Printf("Total duplicates: %d\n", summary.Duplicates)
	fmt.Printf("Total skipped: %d\n", summary.Skipped)
	fmt.Printf("Total errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)

	if len(summary.Sheets) == 0 {
		return
	}
	fmt.Println("\nSheet Details:")
	for _, sheet := range summary.Sheets {
		fmt.Printf("  %s: inserted=%d, duplicates=%d, skipped=%d, errors=%d\n",
			sheet.Name, sheet.Inserted, sheet.Duplicates, sheet.Skipped, sheet.Errors)
		if len(sheet.Samples) > 0 {
			fmt.Printf("    Error samples:\n")
			for _, sample := range sheet.Samples {
				fmt.Printf("      Row %d: %s\n", sample.Row, sample.Message)
			}
		}
	}
}
