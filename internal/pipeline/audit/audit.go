// Package audit implements the append-only audit log (C8): one JSON object
// per line, written by a single background goroutine draining a buffered
// channel so concurrent job goroutines never contend on the file handle.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one audit-log line. Stage and Type are mutually descriptive —
// most entries are stage transitions (`Stage` set), a few are structural
// events like LLM calls (`Type` set) that don't correspond to a pipeline
// stage on their own.
type Entry struct {
	Timestamp  time.Time              `json:"timestamp"`
	JobID      string                 `json:"job_id"`
	Stage      string                 `json:"stage,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	DurationMs *int64                 `json:"duration_ms,omitempty"`
}

// Logger is the single writer for one audit log file. Log is safe to call
// from any job's goroutine; the channel ordering is whatever arrival order
// happens to be, which is fine — entries are independently timestamped and
// Stats filters by timestamp, not by file position.
type Logger struct {
	ch     chan Entry
	done   chan struct{}
	logger *zap.Logger
	mu     sync.Mutex
	w      io.WriteCloser
}

// NewLogger opens path for append and starts the writer goroutine. Close
// must be called to flush and release the file.
func NewLogger(path string, logger *zap.Logger) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	l := &Logger{
		ch:     make(chan Entry, 1024),
		done:   make(chan struct{}),
		logger: logger,
		w:      f,
	}
	go l.run()
	return l, nil
}

func (l *Logger) run() {
	defer close(l.done)
	w := bufio.NewWriter(l.w)
	defer w.Flush()
	for e := range l.ch {
		b, err := json.Marshal(e)
		if err != nil {
			if l.logger != nil {
				l.logger.Error("audit entry marshal failed", zap.Error(err))
			}
			continue
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			if l.logger != nil {
				l.logger.Error("audit entry write failed", zap.Error(err))
			}
			continue
		}
		w.Flush()
	}
}

// Log enqueues an entry, filling in Timestamp if it's zero. It never
// blocks the caller for long: the channel is large, and a full channel
// means the writer is falling behind, which is itself worth dropping and
// logging rather than stalling a job's processing goroutine.
func (l *Logger) Log(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case l.ch <- e:
	default:
		if l.logger != nil {
			l.logger.Warn("audit log channel full, dropping entry", zap.String("job_id", e.JobID))
		}
	}
}

// LogStage is the common case: a pipeline stage transition.
func (l *Logger) LogStage(jobID, stage, status string, metadata map[string]interface{}) {
	l.Log(Entry{JobID: jobID, Stage: stage, Status: status, Metadata: metadata})
}

// LogExport records that an invoice was exported to CSV/XLSX, for the same
// lineage-tracking purpose as the original's log_export.
func (l *Logger) LogExport(jobID, format, path string, recordCount int) {
	l.Log(Entry{
		JobID: jobID,
		Type:  "export",
		Metadata: map[string]interface{}{
			"format":       format,
			"path":         path,
			"record_count": recordCount,
		},
	})
}

// LogLLMCall records that a repair call happened, storing digests and
// sizes of the request/response, never the raw content.
func (l *Logger) LogLLMCall(jobID string, requestDigest, responseDigest string, requestSize, responseSize int, duration time.Duration) {
	ms := duration.Milliseconds()
	l.Log(Entry{
		JobID: jobID,
		Type:  "llm_call",
		Metadata: map[string]interface{}{
			"request_digest":  requestDigest,
			"response_digest": responseDigest,
			"request_size":    requestSize,
			"response_size":   responseSize,
		},
		DurationMs: &ms,
	})
}

// Close stops accepting entries and waits for the writer to drain.
func (l *Logger) Close() error {
	close(l.ch)
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}

// Digest returns a 64-bit truncated hex digest of v's canonical JSON
// encoding. encoding/json already sorts map[string]T keys alphabetically,
// which is what makes this deterministic across calls with equivalent
// data.
func Digest(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8]), nil
}

// JobTrail scans the audit log once and returns every entry for jobID, in
// file order — the Go equivalent of the original's get_job_audit_trail.
func JobTrail(path, jobID string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	defer f.Close()

	var trail []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if e.JobID == jobID {
			trail = append(trail, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return trail, fmt.Errorf("scanning audit log: %w", err)
	}
	return trail, nil
}

// Report is the aggregate Stats produces over a time window.
type Report struct {
	TotalEntries             int            `json:"total_entries"`
	ByStatus                 map[string]int `json:"by_status"`
	RuleFailureHistogram     map[string]int `json:"rule_failure_histogram"`
	ProcessingTimeMsMin      float64        `json:"processing_time_ms_min"`
	ProcessingTimeMsMax      float64        `json:"processing_time_ms_max"`
	ProcessingTimeMsAvg      float64        `json:"processing_time_ms_avg"`
	ProcessingTimeMsP50      float64        `json:"processing_time_ms_p50"`
	ProcessingTimeMsP95      float64        `json:"processing_time_ms_p95"`
}

// Stats scans the audit log file once, filtering to [start,end], and
// aggregates status counts, a per-rule failure histogram (read from the
// validation stage's "failed_rules" metadata array), and the completed-job
// processing-time distribution.
func Stats(path string, start, end time.Time) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	defer f.Close()

	report := Report{
		ByStatus:             map[string]int{},
		RuleFailureHistogram: map[string]int{},
	}
	var durations []float64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		report.TotalEntries++
		if e.Status != "" {
			report.ByStatus[e.Status]++
		}
		if e.Stage == "validation" {
			if rules, ok := e.Metadata["failed_rules"].([]interface{}); ok {
				for _, r := range rules {
					if name, ok := r.(string); ok {
						report.RuleFailureHistogram[name]++
					}
				}
			}
		}
		if e.Stage == "completed" && e.DurationMs != nil {
			durations = append(durations, float64(*e.DurationMs))
		}
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("scanning audit log: %w", err)
	}

	if len(durations) > 0 {
		sort.Float64s(durations)
		report.ProcessingTimeMsMin = durations[0]
		report.ProcessingTimeMsMax = durations[len(durations)-1]
		sum := 0.0
		for _, d := range durations {
			sum += d
		}
		report.ProcessingTimeMsAvg = sum / float64(len(durations))
		report.ProcessingTimeMsP50 = percentile(durations, 0.50)
		report.ProcessingTimeMsP95 = percentile(durations, 0.95)
	}
	return report, nil
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
