package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/audit"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/export"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/orchestrator"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/perr"
)

// Handlers implements the §6 ingress API. It holds no state beyond its
// collaborators: the orchestrator owns job state, the audit log owns the
// trail, export owns file rendering.
type Handlers struct {
	orch         *orchestrator.Orchestrator
	auditLogPath string
}

// NewHandlers wires a Handlers to its collaborators.
func NewHandlers(orch *orchestrator.Orchestrator, auditLogPath string) *Handlers {
	return &Handlers{orch: orch, auditLogPath: auditLogPath}
}

// Response is the standard envelope the donor's handlers already use.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

// errorStatus maps a §7 error kind to its HTTP status.
func errorStatus(err error) int {
	var inputErr perr.InputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Ingest handles POST /api/pipeline/ingest: a multipart file upload that
// starts a new job and returns immediately.
func (h *Handlers) Ingest(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, perr.InputError{Message: "multipart field \"file\" is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, perr.InputError{Message: "could not open uploaded file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, perr.InputError{Message: "could not read uploaded file"})
		return
	}

	jobID, err := h.orch.Submit(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		fail(c, errorStatus(err), err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"job_id":  jobID,
		"status":  "processing",
		"message": "file accepted for processing",
	})
}

// Status handles GET /api/pipeline/status?job_id=….
func (h *Handlers) Status(c *gin.Context) {
	jobID := c.Query("job_id")
	state, found := h.orch.Status(jobID)
	if !found {
		fail(c, http.StatusNotFound, perr.InputError{Message: "job not found"})
		return
	}

	resp := gin.H{
		"job_id":           jobID,
		"status":           state.Status,
		"current_stage":    state.CurrentStage,
		"started_at":       state.StartedAt,
		"filename":         state.Filename,
		"stages_completed": state.StagesCompleted,
	}
	if state.Error != "" {
		resp["error"] = state.Error
	}
	ok(c, http.StatusOK, resp)
}

// Result handles GET /api/pipeline/result?job_id=….
func (h *Handlers) Result(c *gin.Context) {
	jobID := c.Query("job_id")
	state, found := h.orch.Status(jobID)
	if !found {
		fail(c, http.StatusNotFound, perr.InputError{Message: "job not found"})
		return
	}
	if state.Result == nil {
		ok(c, http.StatusOK, gin.H{
			"job_id":            jobID,
			"status":            state.Status,
			"current_stage":     state.CurrentStage,
			"started_at":        state.StartedAt,
			"filename":          state.Filename,
			"stages_completed":  state.StagesCompleted,
			"processing_status": state.Status,
		})
		return
	}

	var trail []audit.Entry
	if h.auditLogPath != "" {
		trail, _ = audit.JobTrail(h.auditLogPath, jobID)
	}

	invoiceJSON, _ := json.Marshal(state.Result.Invoice)

	ok(c, http.StatusOK, gin.H{
		"job_id":            jobID,
		"status":            state.Status,
		"current_stage":     state.CurrentStage,
		"started_at":        state.StartedAt,
		"filename":          state.Filename,
		"stages_completed":  state.StagesCompleted,
		"invoice_json":      json.RawMessage(invoiceJSON),
		"rule_report":       state.Result.RuleReport,
		"llm_patch":         state.Result.LLMPatch,
		"final_json":        json.RawMessage(state.Result.FinalJSON),
		"audit_trail":       trail,
		"processing_status": state.Result.Status,
	})
}

// Audit handles GET /api/pipeline/audit?job_id=….
func (h *Handlers) Audit(c *gin.Context) {
	jobID := c.Query("job_id")
	if h.auditLogPath == "" {
		ok(c, http.StatusOK, gin.H{"job_id": jobID, "audit_trail": []audit.Entry{}, "total_entries": 0})
		return
	}
	trail, err := audit.JobTrail(h.auditLogPath, jobID)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"job_id":        jobID,
		"audit_trail":   trail,
		"total_entries": len(trail),
	})
}

// Stats handles GET /api/pipeline/stats?start_date=…&end_date=….
func (h *Handlers) Stats(c *gin.Context) {
	start, err := parseDate(c.Query("start_date"), time.Unix(0, 0))
	if err != nil {
		fail(c, http.StatusBadRequest, perr.InputError{Message: "invalid start_date"})
		return
	}
	end, err := parseDate(c.Query("end_date"), time.Now())
	if err != nil {
		fail(c, http.StatusBadRequest, perr.InputError{Message: "invalid end_date"})
		return
	}
	// end_date names a day; widen to its end so that day's entries are included.
	end = end.Add(24 * time.Hour)

	report, err := audit.Stats(h.auditLogPath, start, end)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"date_range": gin.H{"start": start, "end": end},
		"statistics": report,
	})
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", s)
}

// reviewPatchRequest is the §6 review/apply wire body: a bare JSON array
// of patches, the same shape the LLM gateway's response contract uses.
type reviewPatchRequest = []model.JsonPatch

// ReviewApply handles POST /api/pipeline/review/apply?job_id=….
func (h *Handlers) ReviewApply(c *gin.Context) {
	jobID := c.Query("job_id")
	var patches reviewPatchRequest
	if err := c.ShouldBindJSON(&patches); err != nil {
		fail(c, http.StatusBadRequest, perr.InputError{Message: "request body must be a JSON array of patches"})
		return
	}

	result, err := h.orch.ApplyReviewPatch(jobID, patches)
	if err != nil {
		fail(c, errorStatus(err), err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"job_id":  jobID,
		"status":  result.Status,
		"message": "review patch applied",
	})
}

// Health handles GET /api/pipeline/health.
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "invoice pipeline is healthy",
		"timestamp": time.Now(),
	})
}

// Export is an enrichment over the §6 table's file-format section: a
// direct CSV/XLSX download for a completed job's invoice, reusing C11's
// emitters instead of requiring a separate batch export step.
func (h *Handlers) Export(c *gin.Context) {
	jobID := c.Query("job_id")
	format := c.DefaultQuery("format", "csv")

	state, found := h.orch.Status(jobID)
	if !found || state.Result == nil {
		fail(c, http.StatusNotFound, perr.InputError{Message: "job has no result to export"})
		return
	}

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=\""+jobID+".csv\"")
		if err := export.WriteCSV(c.Writer, state.Result.Invoice); err != nil {
			fail(c, http.StatusInternalServerError, err)
		}
	case "xlsx":
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=\""+jobID+".xlsx\"")
		if err := export.NewXLSXWriter(nil).WriteTo(c.Writer, state.Result.Invoice); err != nil {
			fail(c, http.StatusInternalServerError, err)
		}
	default:
		fail(c, http.StatusBadRequest, perr.InputError{Message: "format must be csv or xlsx"})
	}
}
