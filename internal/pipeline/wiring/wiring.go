// Package wiring assembles the pipeline's core components (C1-C8) from
// config into a ready-to-use Orchestrator. Both cmd/server and cmd/pipeline
// build their Orchestrator this same way; the donor kept its production
// and diagnostic binaries (cmd/server, cmd/test-gpt-connection) as thin
// wrappers around one construction path, which this mirrors.
package wiring

import (
	"go.uber.org/zap"

	"github.com/layan-haddad/invoice-pipeline/internal/config"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/audit"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/classify"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/decision"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/extract"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/ocr"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/orchestrator"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/repair"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/rules"
)

// BuildOrchestrator wires every core component together. The OCR engine
// is a placeholder (§1: OCR engines are external collaborators specified
// only by interface) — a deployment replaces it with a real Engine before
// relying on this for anything but wiring verification.
func BuildOrchestrator(cfg *config.Config, auditLogger *audit.Logger, logger *zap.Logger) *orchestrator.Orchestrator {
	ocrAdapter := ocr.NewAdapter(ocr.NewPlaceholderEngine(), ocr.ScaleUnit)
	extractor := extract.NewExtractor(cfg.Pipeline.VendorCacheSize)
	classifier := classify.NewPatternClassifier()
	rulesEngine := rules.NewEngine(rules.Thresholds{
		ArithmeticTolerance:   cfg.Pipeline.ArithmeticTolerance,
		RoundingDecimalPlaces: cfg.Pipeline.RoundingDecimalPlaces,
	})
	policy := decision.Policy{
		FieldConfidenceThreshold:    cfg.Pipeline.FieldConfidenceThreshold,
		CategoryConfidenceThreshold: cfg.Pipeline.CategoryConfidenceThreshold,
	}

	var repairGW *repair.Gateway
	if cfg.OpenAI.APIKey != "" {
		fixer := repair.NewOpenAIFixer(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
		repairGW = repair.NewGateway(fixer, cfg.Pipeline.MaxLLMPatches, 5)
	}

	timeouts := orchestrator.Timeouts{OCR: cfg.Pipeline.OCRTimeout, LLM: cfg.Pipeline.LLMTimeout}

	return orchestrator.New(ocrAdapter, extractor, classifier, rulesEngine, policy, repairGW, auditLogger, timeouts, logger)
}
