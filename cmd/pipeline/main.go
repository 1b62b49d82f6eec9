// Command pipeline is a single-shot CLI front end (C13) for the invoice
// pipeline: ingest one file, wait for the job to finish, print the result,
// and exit with the §6 exit code for the outcome.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/layan-haddad/invoice-pipeline/internal/config"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/audit"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/orchestrator"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/perr"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/wiring"
	"github.com/layan-haddad/invoice-pipeline/pkg/utils"
)

// Exit codes per §6.
const (
	exitOK              = 0
	exitBadInput        = 2
	exitUnsupportedType = 3
	exitInternalFailure = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	filePath := flag.String("file", "", "invoice file to process")
	waitTimeout := flag.Duration("timeout", 2*time.Minute, "maximum time to wait for the job to finish")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: pipeline -file <path> [-config <path>] [-timeout <duration>]")
		return exitBadInput
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return exitInternalFailure
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return exitInternalFailure
	}
	defer logger.Sync()

	data, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", *filePath, err)
		return exitBadInput
	}

	ext := strings.ToLower(filepath.Ext(*filePath))
	if !orchestrator.AllowedExtensions[ext] {
		fmt.Fprintf(os.Stderr, "unsupported file extension %q\n", ext)
		return exitUnsupportedType
	}

	auditLogger, err := audit.NewLogger(cfg.Pipeline.AuditLogPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open audit log: %v\n", err)
		return exitInternalFailure
	}
	defer auditLogger.Close()

	orch := wiring.BuildOrchestrator(cfg, auditLogger, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *waitTimeout)
	defer cancel()

	jobID, err := orch.Submit(ctx, data, filepath.Base(*filePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit failed: %v\n", err)
		if _, ok := err.(perr.InputError); ok {
			return exitBadInput
		}
		return exitInternalFailure
	}

	state, err := awaitCompletion(ctx, orch, jobID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "job %s did not finish: %v\n", jobID, err)
		return exitInternalFailure
	}

	if state.Status == "failed" {
		fmt.Fprintf(os.Stderr, "job %s failed: %s\n", jobID, state.Error)
		return exitInternalFailure
	}

	out, err := json.MarshalIndent(state.Result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		return exitInternalFailure
	}
	fmt.Println(string(out))
	return exitOK
}

// awaitCompletion polls Status until the job reaches a terminal state or
// ctx expires. The orchestrator has no blocking "wait" call by design
// (§5: the only suspension points are OCR/LLM/audit I/O inside a job's own
// goroutine) so a CLI caller polls from outside, same as an HTTP client
// would against /api/pipeline/status.
func awaitCompletion(ctx context.Context, orch *orchestrator.Orchestrator, jobID string) (orchestrator.JobState, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		state, ok := orch.Status(jobID)
		if ok && (state.Status == "completed" || state.Status == "failed") {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return orchestrator.JobState{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
