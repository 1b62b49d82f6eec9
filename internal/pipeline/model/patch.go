package model

import "strings"

// PatchOp is the limited operation set the LLM repair gateway may emit.
type PatchOp string

const (
	PatchOpAdd     PatchOp = "add"
	PatchOpReplace PatchOp = "replace"
)

// JsonPatch is a single validated repair operation. Rationale must be at
// least 10 characters and CitesBBox must be non-empty — both are enforced
// by Validate, not by the constructor, since patches arrive already
// deserialized from the LLM's JSON response.
type JsonPatch struct {
	Op        PatchOp     `json:"op"`
	Path      string      `json:"path"`
	Value     interface{} `json:"value"`
	Rationale string      `json:"rationale"`
	CitesBBox []string    `json:"cites_bbox"`
}

// Validate reports whether a patch satisfies the response contract in
// §4.6: op is add or replace, path is non-empty and pointer-shaped,
// rationale is at least 10 characters after trimming, and cites_bbox is
// non-empty.
func (p JsonPatch) Validate() error {
	if p.Op != PatchOpAdd && p.Op != PatchOpReplace {
		return SchemaError{Path: p.Path, Reason: "patch op must be add or replace"}
	}
	if !strings.HasPrefix(p.Path, "/") {
		return SchemaError{Path: p.Path, Reason: "patch path must be a JSON-Pointer starting with /"}
	}
	if len(strings.TrimSpace(p.Rationale)) < 10 {
		return SchemaError{Path: p.Path, Reason: "patch rationale must be at least 10 characters"}
	}
	if len(p.CitesBBox) == 0 {
		return SchemaError{Path: p.Path, Reason: "patch cites_bbox must be non-empty"}
	}
	return nil
}

// ProcessingResult is the pipeline's terminal output for one job.
type ProcessingResult struct {
	Invoice    Invoice     `json:"invoice"`
	RuleReport RuleReport  `json:"rule_report"`
	LLMPatch   []JsonPatch `json:"llm_patch,omitempty"`
	FinalJSON  []byte      `json:"final_json"`
	AuditTrail []string    `json:"audit_trail"`
	Status     Status      `json:"status"`
}

// Status is the job's terminal disposition.
type Status string

const (
	StatusAutoPosted  Status = "auto_posted"
	StatusNeedsReview Status = "needs_review"
	StatusFailed      Status = "failed"
)
