package wiring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layan-haddad/invoice-pipeline/internal/config"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/audit"
)

func testConfig(openAIKey string) *config.Config {
	return &config.Config{
		OpenAI: config.OpenAIConfig{APIKey: openAIKey, Model: "gpt-4o-mini"},
		Pipeline: config.PipelineConfig{
			OCRTimeout:                  5 * time.Second,
			LLMTimeout:                  5 * time.Second,
			ArithmeticTolerance:         0.01,
			RoundingDecimalPlaces:       2,
			FieldConfidenceThreshold:    0.7,
			CategoryConfidenceThreshold: 0.6,
			MaxLLMPatches:               5,
			VendorCacheSize:             100,
		},
	}
}

func TestBuildOrchestratorWithoutAPIKeyHasNoRepairGateway(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")
	logger, err := audit.NewLogger(auditPath, nil)
	require.NoError(t, err)
	defer logger.Close()

	orch := BuildOrchestrator(testConfig(""), logger, nil)
	require.NotNil(t, orch)

	// An unsupported extension is rejected the same way regardless of
	// whether a repair gateway is wired, so this exercises the orchestrator
	// is fully constructed without needing to drive a job to completion.
	_, err = orch.Submit(context.Background(), []byte("data"), "invoice.exe")
	assert.Error(t, err)
}

func TestBuildOrchestratorWithAPIKeyAcceptsSupportedExtension(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")
	logger, err := audit.NewLogger(auditPath, nil)
	require.NoError(t, err)
	defer logger.Close()

	orch := BuildOrchestrator(testConfig("sk-test-key"), logger, nil)
	require.NotNil(t, orch)

	jobID, err := orch.Submit(context.Background(), []byte("data"), "invoice.png")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	_, found := orch.Status(jobID)
	assert.True(t, found)
}
