// Package orchestrator drives one invoice through OCR, extraction,
// classification, validation, decision, and optional LLM repair (C7). It
// owns the in-memory job map and is the only component allowed to mutate a
// JobState once a job starts.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/audit"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/classify"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/decision"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/extract"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/ocr"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/perr"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/repair"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/rules"
)

// Stage names, matching the job state machine's current_stage values.
const (
	StageOCR            = "ocr"
	StageExtraction     = "extraction"
	StageClassification = "classification"
	StageValidation     = "validation"
	StageDecision       = "decision"
	StageLLMFallback    = "llm_fallback"
	StagePatchApply     = "patch_apply"
	StageCompleted      = "completed"
	StageError          = "error"
)

// imageExtensions are the upload extensions the OCR adapter can rasterize
// or read directly; the remainder of the §6 allow-list (.csv/.xls/.xlsx)
// is accepted at ingress but has no token-producing path in this pipeline,
// so extraction fails with an OcrError for those rather than silently
// fabricating tokens.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tiff": true,
}

// AllowedExtensions is the full §6 ingress allow-list.
var AllowedExtensions = map[string]bool{
	".csv": true, ".xlsx": true, ".xls": true, ".pdf": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tiff": true,
}

// StageEvent is one entry in a job's stages_completed trail.
type StageEvent struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JobState is the orchestrator's mutable record for one job. Reads (status
// polling) take the RLock; the owning goroutine takes the Lock for every
// mutation, so a job's own goroutine never contends with itself.
type JobState struct {
	mu              sync.RWMutex
	Status          string
	StartedAt       time.Time
	Filename        string
	StagesCompleted []StageEvent
	CurrentStage    string
	Result          *model.ProcessingResult
	Error           string
}

func (j *JobState) snapshot() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	stages := make([]StageEvent, len(j.StagesCompleted))
	copy(stages, j.StagesCompleted)
	return JobState{
		Status:          j.Status,
		StartedAt:       j.StartedAt,
		Filename:        j.Filename,
		StagesCompleted: stages,
		CurrentStage:    j.CurrentStage,
		Result:          j.Result,
		Error:           j.Error,
	}
}

func (j *JobState) setStage(stage, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.CurrentStage = stage
	j.StagesCompleted = append(j.StagesCompleted, StageEvent{Stage: stage, Message: message, Timestamp: time.Now()})
}

func (j *JobState) finish(status string, result *model.ProcessingResult, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Result = result
	j.Error = errMsg
}

// Timeouts bounds the per-call suspension points (§5): OCR and LLM calls
// are the only points a job's goroutine blocks on an external collaborator.
type Timeouts struct {
	OCR time.Duration
	LLM time.Duration
}

// DefaultTimeouts gives the two collaborators this pipeline actually calls
// out to 60s (OCR) and 30s (LLM), 90s in all.
var DefaultTimeouts = Timeouts{OCR: 60 * time.Second, LLM: 30 * time.Second}

// Orchestrator wires every core component together and runs jobs as
// detached goroutines, one per job, with no intra-job parallelism (§5).
type Orchestrator struct {
	ocrAdapter   *ocr.Adapter
	extractor    *extract.Extractor
	classifier   classify.Classifier
	rulesEngine  *rules.Engine
	policy       decision.Policy
	repairGW     *repair.Gateway
	auditLogger  *audit.Logger
	timeouts     Timeouts
	logger       *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*JobState
}

// New builds an Orchestrator. repairGW may be nil if no LLM collaborator
// is configured — a job routed to llm_fallback with no gateway falls
// straight through to needs_review, the same outcome as an LlmError.
func New(
	ocrAdapter *ocr.Adapter,
	extractor *extract.Extractor,
	classifier classify.Classifier,
	rulesEngine *rules.Engine,
	policy decision.Policy,
	repairGW *repair.Gateway,
	auditLogger *audit.Logger,
	timeouts Timeouts,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		ocrAdapter:  ocrAdapter,
		extractor:   extractor,
		classifier:  classifier,
		rulesEngine: rulesEngine,
		policy:      policy,
		repairGW:    repairGW,
		auditLogger: auditLogger,
		timeouts:    timeouts,
		logger:      logger,
		jobs:        make(map[string]*JobState),
	}
}

// Submit validates the upload extension, registers a job, and launches its
// processing goroutine, returning the job id immediately. An extension
// outside the §6 allow-list is an InputError and no job is created.
func (o *Orchestrator) Submit(ctx context.Context, fileBytes []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		return "", perr.InputError{Message: fmt.Sprintf("unsupported file extension %q", ext)}
	}

	jobID := uuid.NewString()
	job := &JobState{Status: "processing", StartedAt: time.Now(), Filename: filename, CurrentStage: StageOCR}
	o.mu.Lock()
	o.jobs[jobID] = job
	o.mu.Unlock()

	go o.run(ctx, jobID, job, fileBytes, filename)

	if o.logger != nil {
		o.logger.Info("started processing job", zap.String("job_id", jobID), zap.String("filename", filename))
	}
	return jobID, nil
}

// Status returns a point-in-time snapshot of a job's state.
func (o *Orchestrator) Status(jobID string) (JobState, bool) {
	o.mu.RLock()
	job, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if !ok {
		return JobState{}, false
	}
	return job.snapshot(), true
}

// ApplyReviewPatch validates and applies a human reviewer's corrections to
// a completed job's invoice, re-evaluates the rules, and updates the job's
// stored result in place — the real implementation of the endpoint the
// original leaves as a stub ("this would integrate with the review
// system... for now, return success"). A reviewer citing no OCR evidence
// (they verified the correction against the source document themselves,
// not against an extracted token) should set CitesBBox to ["human_review"]
// rather than leaving it empty, since Validate requires it non-empty for
// both LLM and human patches alike; that sentinel names the patch's
// provenance for JsonPatch.Validate, it is not a bbox id model.Set can
// resolve to an Evidence, so the field it writes carries no Evidence of
// its own and model.Set caps its confidence at the unconfirmed 0.5.
func (o *Orchestrator) ApplyReviewPatch(jobID string, patches []model.JsonPatch) (model.ProcessingResult, error) {
	o.mu.RLock()
	job, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if !ok {
		return model.ProcessingResult{}, perr.InputError{Message: fmt.Sprintf("job %s not found", jobID)}
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.Status != "completed" || job.Result == nil {
		return model.ProcessingResult{}, perr.InputError{Message: fmt.Sprintf("job %s has no result to patch", jobID)}
	}

	invoice := job.Result.Invoice
	for _, p := range patches {
		if err := p.Validate(); err != nil {
			return model.ProcessingResult{}, err
		}
		if err := model.Set(&invoice, p.Path, p.Value, nil); err != nil {
			return model.ProcessingResult{}, err
		}
	}

	report := o.rulesEngine.Evaluate(invoice)
	status := model.StatusNeedsReview
	if report.Passed {
		status = model.StatusAutoPosted
	}

	finalJSON, err := json.Marshal(invoice)
	if err != nil {
		finalJSON = nil
	}

	result := model.ProcessingResult{
		Invoice:    invoice,
		RuleReport: report,
		LLMPatch:   job.Result.LLMPatch,
		FinalJSON:  finalJSON,
		AuditTrail: job.Result.AuditTrail,
		Status:     status,
	}
	job.Result = &result

	o.logStage(jobID, StagePatchApply, "completed", map[string]interface{}{
		"patches_applied": len(patches),
		"final_status":     string(status),
		"source":           "human_review",
	})
	return result, nil
}

// run is the per-job task. It never panics the caller: every collaborator
// error is captured, logged, and turns into a failed JobState rather than
// propagating.
func (o *Orchestrator) run(ctx context.Context, jobID string, job *JobState, fileBytes []byte, filename string) {
	startedAt := time.Now()
	ext := strings.ToLower(filepath.Ext(filename))

	defer func() {
		if r := recover(); r != nil {
			o.fail(jobID, job, startedAt, perr.InternalError{Message: fmt.Sprintf("panic in job %s: %v", jobID, r)})
		}
	}()

	// Stage 1: OCR
	job.setStage(StageOCR, "Extracting text from document...")
	tokens, err := o.runOCR(ctx, ext, fileBytes)
	if err != nil {
		o.fail(jobID, job, startedAt, err)
		return
	}
	pages := countPages(tokens)
	o.logStage(jobID, StageOCR, "completed", map[string]interface{}{
		"tokens_extracted": len(tokens), "pages": pages,
	})

	if ctx.Err() != nil {
		o.fail(jobID, job, startedAt, perr.CancelledError{JobID: jobID})
		return
	}

	// Stage 2: Deterministic extraction
	job.setStage(StageExtraction, "Extracting invoice data...")
	processingID := fmt.Sprintf("%s_%s", jobID, time.Now().Format("20060102_150405"))
	invoice, warnings, err := o.extractor.ExtractInvoice(tokens, filename, processingID)
	if err != nil {
		o.fail(jobID, job, startedAt, err)
		return
	}
	o.logStage(jobID, StageExtraction, "completed", map[string]interface{}{
		"vendor":         safeValue(invoice.Vendor.Name),
		"invoice_number": safeValue(invoice.InvoiceNumber),
		"warnings":       len(warnings),
	})

	// Stage 3: Classification
	job.setStage(StageClassification, "Classifying line items...")
	o.classifyLineItems(&invoice)
	o.logStage(jobID, StageClassification, "completed", map[string]interface{}{
		"line_items_classified": len(invoice.LineItems),
	})

	// Stage 4: Rules validation
	job.setStage(StageValidation, "Validating business rules...")
	report := o.rulesEngine.Evaluate(invoice)
	o.logStage(jobID, StageValidation, "completed", map[string]interface{}{
		"rules_passed": report.Passed,
		"failures":     len(report.Failures),
		"warnings":     len(report.Warnings),
		"failed_rules": failureNames(report),
	})

	// Stage 5: Decision
	job.setStage(StageDecision, "Evaluating processing decision...")
	d := o.policy.Decide(invoice, report)

	var patches []model.JsonPatch
	status := model.StatusNeedsReview

	switch d.Action {
	case decision.ActionAutoPosted:
		status = model.StatusAutoPosted

	case decision.ActionLLMFallback:
		job.setStage(StageLLMFallback, "Applying LLM fallback...")
		patches, status, report = o.applyLLMFallback(ctx, jobID, invoice, report, tokens, &invoice)

	default:
		status = model.StatusNeedsReview
	}

	finalJSON, err := json.Marshal(invoice)
	if err != nil {
		finalJSON = nil
	}

	result := model.ProcessingResult{
		Invoice:    invoice,
		RuleReport: report,
		LLMPatch:   patches,
		FinalJSON:  finalJSON,
		// AuditTrail is left empty here, as in the original's
		// _create_processing_result: it is populated by the audit log
		// reader at result-retrieval time (C9's /pipeline/result handler),
		// not by the orchestrator itself.
		AuditTrail: nil,
		Status:     status,
	}

	job.setStage(StageCompleted, "Processing completed")
	job.finish("completed", &result, "")

	o.logStage(jobID, StageCompleted, "completed", map[string]interface{}{
		"final_status":     string(status),
		"processing_time_ms": time.Since(startedAt).Milliseconds(),
	})
}

func (o *Orchestrator) runOCR(ctx context.Context, ext string, fileBytes []byte) ([]model.Token, error) {
	if !imageExtensions[ext] && ext != ".pdf" {
		return nil, perr.OcrError{Message: fmt.Sprintf("extension %q has no OCR-extractable token source in this pipeline", ext)}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeouts.OCR)
	defer cancel()

	if ext != ".pdf" {
		return o.ocrAdapter.Extract(ctx, fileBytes)
	}

	pages, err := ocr.RasterizePDF(fileBytes)
	if err != nil {
		return nil, perr.OcrError{Message: fmt.Sprintf("rasterizing pdf: %v", err)}
	}
	var all []model.Token
	for pageIdx, png := range pages {
		pageTokens, err := o.ocrAdapter.Extract(ctx, png)
		if err != nil {
			continue // a single unreadable page should not fail the whole document
		}
		for _, t := range pageTokens {
			t.Page = pageIdx
			all = append(all, t)
		}
	}
	if len(all) == 0 {
		return nil, perr.OcrError{Message: "no tokens extracted from any pdf page"}
	}
	return all, nil
}

func (o *Orchestrator) classifyLineItems(invoice *model.Invoice) {
	vendorName := safeValue(invoice.Vendor.Name)
	for i, li := range invoice.LineItems {
		if !li.Description.Present() || *li.Description.Value == "" {
			continue
		}
		code, conf := o.classifier.Predict(*li.Description.Value, vendorName)
		invoice.LineItems[i] = li.WithCategory(code, conf)
	}
}

// applyLLMFallback runs the bounded repair: one Fixer call, validated
// patches applied generically, rules re-evaluated once. Any gateway error
// (including a nil gateway) is treated as "no patch", matching §4.6/§7's
// LlmError semantics, and the job proceeds to needs_review rather than
// failing.
func (o *Orchestrator) applyLLMFallback(ctx context.Context, jobID string, invoice model.Invoice, report model.RuleReport, tokens []model.Token, dst *model.Invoice) ([]model.JsonPatch, model.Status, model.RuleReport) {
	if o.repairGW == nil {
		return nil, model.StatusNeedsReview, report
	}

	llmCtx, cancel := context.WithTimeout(ctx, o.timeouts.LLM)
	defer cancel()

	patches, byID, err := o.repairGW.Repair(llmCtx, invoice, report, tokens)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("llm fallback failed, proceeding to needs_review", zap.String("job_id", jobID), zap.Error(err))
		}
		return nil, model.StatusNeedsReview, report
	}
	if len(patches) == 0 {
		return nil, model.StatusNeedsReview, report
	}

	repair.Apply(dst, patches, byID)

	finalReport := o.rulesEngine.Evaluate(*dst)
	if finalReport.Passed {
		return patches, model.StatusAutoPosted, finalReport
	}
	return patches, model.StatusNeedsReview, finalReport
}

func (o *Orchestrator) fail(jobID string, job *JobState, startedAt time.Time, err error) {
	job.setStage(StageError, err.Error())
	job.finish("failed", nil, err.Error())
	if o.logger != nil {
		o.logger.Error("job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	o.logStage(jobID, StageError, "failed", map[string]interface{}{
		"error":               err.Error(),
		"processing_time_ms": time.Since(startedAt).Milliseconds(),
	})
}

func (o *Orchestrator) logStage(jobID, stage, status string, metadata map[string]interface{}) {
	if o.auditLogger == nil {
		return
	}
	o.auditLogger.LogStage(jobID, stage, status, metadata)
}

func countPages(tokens []model.Token) int {
	seen := map[int]bool{}
	for _, t := range tokens {
		seen[t.Page] = true
	}
	return len(seen)
}

func failureNames(report model.RuleReport) []string {
	names := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		names = append(names, f.Rule)
	}
	return names
}

func safeValue(fv model.FieldValue[string]) string {
	if !fv.Present() {
		return ""
	}
	return *fv.Value
}
