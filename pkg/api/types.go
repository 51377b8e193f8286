package api

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Default LLM settings applied by the server when a project omits them.
const (
	DefaultLLMType  = "ollama"
	DefaultLLMModel = "qwen2.5vl:7b"
)

// timestampLayouts are accepted when decoding timestamps. The server may
// emit naive ISO datetimes without a zone; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp is a time.Time that also accepts zone-less ISO datetimes.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON encodes the timestamp as RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// MarshalYAML encodes the timestamp as a YAML timestamp.
func (t Timestamp) MarshalYAML() (any, error) {
	return t.UTC(), nil
}

// UnmarshalJSON decodes RFC 3339 and zone-less ISO datetimes.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()

			return nil
		}
	}

	return fmt.Errorf("timestamp: unsupported format %q", s)
}

// GrafanaSource is one monitoring source configured on a project.
type GrafanaSource struct {
	Name  string `json:"name" yaml:"name"`
	URL   string `json:"url" yaml:"url"`
	Token string `json:"token" yaml:"token"`
}

// K8sConfig is the cluster-access configuration of a project. Either a
// base64 kubeconfig or a server/token pair is set.
type K8sConfig struct {
	Server           string `json:"server,omitempty" yaml:"server,omitempty"`
	Token            string `json:"token,omitempty" yaml:"token,omitempty"`
	KubeconfigBase64 string `json:"kubeconfig_base64,omitempty" yaml:"kubeconfig_base64,omitempty"`
}

// Project groups tests for one system under test.
type Project struct {
	ID             int64           `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Description    *string         `json:"description,omitempty" yaml:"description,omitempty"`
	GrafanaSources []GrafanaSource `json:"grafana_sources,omitempty" yaml:"grafana_sources,omitempty"`
	K8sConfig      *K8sConfig      `json:"k8s_config,omitempty" yaml:"k8s_config,omitempty"`
	LLMType        string          `json:"llm_type" yaml:"llm_type"`
	LLMModel       string          `json:"llm_model" yaml:"llm_model"`
	CreatedAt      Timestamp       `json:"created_at" yaml:"created_at"`
}

// Identity returns the project id.
func (p Project) Identity() int64 { return p.ID }

// ProjectCreate is the payload for creating a project.
type ProjectCreate struct {
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	GrafanaSources []GrafanaSource `json:"grafana_sources,omitempty"`
	K8sConfig      *K8sConfig      `json:"k8s_config,omitempty"`
	LLMType        string          `json:"llm_type,omitempty"`
	LLMModel       string          `json:"llm_model,omitempty"`
	LLMAPIKey      *string         `json:"llm_api_key,omitempty"`
}

// ProjectUpdate is a sparse project update: nil fields are not sent and
// are left untouched server-side.
type ProjectUpdate struct {
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	GrafanaSources *[]GrafanaSource `json:"grafana_sources,omitempty"`
	K8sConfig      *K8sConfig       `json:"k8s_config,omitempty"`
	LLMType        *string          `json:"llm_type,omitempty"`
	LLMModel       *string          `json:"llm_model,omitempty"`
	LLMAPIKey      *string          `json:"llm_api_key,omitempty"`
}

// TestType is the kind of load test.
type TestType string

const (
	TestTypeMaxSearch       TestType = "max_search"
	TestTypeMaxConfirmation TestType = "max_confirmation"
	TestTypeReliability     TestType = "reliability"
	TestTypeDestructive     TestType = "destructive"
)

var testTypeLabels = map[TestType]string{
	TestTypeMaxSearch:       "Max search",
	TestTypeMaxConfirmation: "Max confirmation",
	TestTypeReliability:     "Reliability",
	TestTypeDestructive:     "Destructive",
}

// TestTypes returns every known test type in display order.
func TestTypes() []TestType {
	return []TestType{
		TestTypeMaxSearch,
		TestTypeMaxConfirmation,
		TestTypeReliability,
		TestTypeDestructive,
	}
}

// IsValid reports whether t is a known test type.
func (t TestType) IsValid() bool {
	_, ok := testTypeLabels[t]

	return ok
}

// Label returns a human-readable name, or the raw value when unknown.
func (t TestType) Label() string {
	if l, ok := testTypeLabels[t]; ok {
		return l
	}

	return string(t)
}

// Test statuses reported by the server. The client never writes them.
const (
	TestStatusPending   = "pending"
	TestStatusAnalyzing = "analyzing"
	TestStatusCompleted = "completed"
	TestStatusDone      = "done"
	TestStatusFailed    = "failed"
)

// Test is one load-test run belonging to a project.
type Test struct {
	ID           int64      `json:"id" yaml:"id"`
	ProjectID    int64      `json:"project_id" yaml:"project_id"`
	TestType     TestType   `json:"test_type" yaml:"test_type"`
	StartedAt    *Timestamp `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	EndedAt      *Timestamp `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	SystemPrompt *string    `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Status       string     `json:"status" yaml:"status"`
	ErrorMessage *string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	CreatedAt    Timestamp  `json:"created_at" yaml:"created_at"`
}

// Identity returns the test id.
func (t Test) Identity() int64 { return t.ID }

// TestCreate is the payload for creating a test.
type TestCreate struct {
	ProjectID    int64      `json:"project_id"`
	TestType     TestType   `json:"test_type"`
	StartedAt    *Timestamp `json:"started_at,omitempty"`
	EndedAt      *Timestamp `json:"ended_at,omitempty"`
	SystemPrompt *string    `json:"system_prompt,omitempty"`
}

// ArtifactKind tags an artifact. Unknown kinds are preserved as-is.
type ArtifactKind string

const (
	ArtifactCustomJavaLog    ArtifactKind = "custom_java_log"
	ArtifactCustomGC         ArtifactKind = "custom_gc"
	ArtifactCustomThreadDump ArtifactKind = "custom_thread_dump"
	ArtifactCustomHeapDump   ArtifactKind = "custom_heap_dump"
	ArtifactCustomJVMOpts    ArtifactKind = "custom_jvm_opts"
	ArtifactCustomJFR        ArtifactKind = "custom_jfr"
	ArtifactCustomOther      ArtifactKind = "custom_other"
	ArtifactGrafanaSlice     ArtifactKind = "grafana_slice"
	ArtifactK8sPods          ArtifactKind = "k8s_pods"
	ArtifactK8sLogs          ArtifactKind = "k8s_logs"
)

var artifactKindLabels = map[ArtifactKind]string{
	ArtifactCustomJavaLog:    "Java log",
	ArtifactCustomGC:         "GC log",
	ArtifactCustomThreadDump: "Thread dump",
	ArtifactCustomHeapDump:   "Heap dump",
	ArtifactCustomJVMOpts:    "JVM opts",
	ArtifactCustomJFR:        "JFR",
	ArtifactCustomOther:      "Other",
	ArtifactGrafanaSlice:     "Grafana",
	ArtifactK8sPods:          "K8s pods",
	ArtifactK8sLogs:          "K8s logs",
}

// IsKnown reports whether k is one of the predefined kinds.
func (k ArtifactKind) IsKnown() bool {
	_, ok := artifactKindLabels[k]

	return ok
}

// IsCustom reports whether k is an engineer-uploaded kind.
func (k ArtifactKind) IsCustom() bool {
	return strings.HasPrefix(string(k), "custom_")
}

// Label returns a human-readable name, or the raw value when unknown.
func (k ArtifactKind) Label() string {
	if l, ok := artifactKindLabels[k]; ok {
		return l
	}

	return string(k)
}

// Artifact is a stored file (or collected snapshot) attached to a test.
type Artifact struct {
	ID          int64          `json:"id" yaml:"id"`
	TestID      int64          `json:"test_id" yaml:"test_id"`
	Kind        ArtifactKind   `json:"kind" yaml:"kind"`
	DisplayName *string        `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	FilePath    *string        `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt   Timestamp      `json:"created_at" yaml:"created_at"`
}

// Identity returns the artifact id.
func (a Artifact) Identity() int64 { return a.ID }

// Name returns the display name, falling back to the kind label.
func (a Artifact) Name() string {
	if a.DisplayName != nil && *a.DisplayName != "" {
		return *a.DisplayName
	}

	return a.Kind.Label()
}

// DecodeMetadata decodes the free-form metadata into out, which must be a
// pointer to a struct such as UploadMetadata.
func (a Artifact) DecodeMetadata(out any) error {
	if a.Metadata == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("creating metadata decoder: %w", err)
	}

	if err := dec.Decode(a.Metadata); err != nil {
		return fmt.Errorf("decoding artifact %d metadata: %w", a.ID, err)
	}

	return nil
}

// UploadMetadata is attached to engineer-uploaded artifacts.
type UploadMetadata struct {
	OriginalFilename string `mapstructure:"original_filename" json:"original_filename"`
	OriginalName     string `mapstructure:"original_name" json:"original_name,omitempty"`
	Kind             string `mapstructure:"kind" json:"kind,omitempty"`
	Size             int64  `mapstructure:"size" json:"size,omitempty"`
}

// GrafanaSliceMetadata is attached to grafana_slice artifacts.
type GrafanaSliceMetadata struct {
	MetaPath     string `mapstructure:"meta_path" json:"meta_path,omitempty"`
	PanelID      int    `mapstructure:"panel_id" json:"panel_id,omitempty"`
	DashboardUID string `mapstructure:"dashboard_uid" json:"dashboard_uid,omitempty"`
	From         string `mapstructure:"from_ts" json:"from_ts,omitempty"`
	To           string `mapstructure:"to_ts" json:"to_ts,omitempty"`
}

// K8sPodsMetadata is attached to k8s_pods artifacts.
type K8sPodsMetadata struct {
	PodsCount int    `mapstructure:"pods_count" json:"pods_count"`
	Namespace string `mapstructure:"namespace" json:"namespace,omitempty"`
}

// K8sLogMetadata is attached to k8s_logs artifacts.
type K8sLogMetadata struct {
	Pod       string `mapstructure:"pod" json:"pod"`
	Container string `mapstructure:"container" json:"container"`
	Namespace string `mapstructure:"namespace" json:"namespace,omitempty"`
	LogFile   string `mapstructure:"log_file" json:"log_file"`
}

// Upload describes a file to attach to a test.
type Upload struct {
	Kind ArtifactKind
	// DisplayName defaults to FileName when empty.
	DisplayName string
	FileName    string
	Content     io.Reader
}

// ArtifactRef is the artifact summary captured when a report is produced.
type ArtifactRef struct {
	ID          int64        `json:"id" yaml:"id"`
	Kind        ArtifactKind `json:"kind" yaml:"kind"`
	DisplayName *string      `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	FilePath    *string      `json:"file_path,omitempty" yaml:"file_path,omitempty"`
}

// Report is the analysis output of a test. At most one exists per test.
type Report struct {
	ID                    int64         `json:"id" yaml:"id"`
	TestID                int64         `json:"test_id" yaml:"test_id"`
	ReportText            string        `json:"report_text" yaml:"report_text"`
	PDFPath               *string       `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
	ArtifactsUsedSnapshot []ArtifactRef `json:"artifacts_used_snapshot,omitempty" yaml:"artifacts_used_snapshot,omitempty"`
	CreatedAt             Timestamp     `json:"created_at" yaml:"created_at"`
}

// Identity returns the report id.
func (r Report) Identity() int64 { return r.ID }

// AnalysisResult is the acknowledgement of an analysis trigger.
type AnalysisResult struct {
	Status        string        `json:"status" yaml:"status"`
	ReportID      int64         `json:"report_id" yaml:"report_id"`
	ArtifactsUsed []ArtifactRef `json:"artifacts_used" yaml:"artifacts_used"`
}

// GrafanaCollectParams selects a dashboard and time window to slice.
type GrafanaCollectParams struct {
	From         time.Time
	To           time.Time
	DashboardUID string
	// SourceIndex indexes the project's grafana sources.
	SourceIndex int
}

// K8sCollectParams selects a time window and optional namespace.
type K8sCollectParams struct {
	From      time.Time
	To        time.Time
	Namespace string
}

// GrafanaCollectResult acknowledges a Grafana collection.
type GrafanaCollectResult struct {
	Collected int              `json:"collected" yaml:"collected"`
	Artifacts []map[string]any `json:"artifacts" yaml:"artifacts"`
}

// K8sCollectResult acknowledges a Kubernetes collection.
type K8sCollectResult struct {
	PodsFile  string `json:"pods_file" yaml:"pods_file"`
	LogsCount int    `json:"logs_count" yaml:"logs_count"`
}

// Health is the service health indicator.
type Health struct {
	Status string `json:"status" yaml:"status"`
}
