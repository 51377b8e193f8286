package db

import (
	"time"

	"github.com/ethpandaops/ntview/pkg/api"
)

// Project is a monitored system with its data source connections.
type Project struct {
	ID             int64               `gorm:"primaryKey"`
	Name           string              `gorm:"not null"`
	Description    *string
	GrafanaSources []api.GrafanaSource `gorm:"serializer:json"`
	K8sConfig      *api.K8sConfig      `gorm:"serializer:json"`
	LLMType        string              `gorm:"not null"`
	LLMModel       string              `gorm:"not null"`
	LLMAPIKey      *string
	CreatedAt      time.Time
}

// Test is a single load-test execution belonging to a project.
type Test struct {
	ID           int64  `gorm:"primaryKey"`
	ProjectID    int64  `gorm:"not null;index"`
	TestType     string `gorm:"not null"`
	StartedAt    *time.Time
	EndedAt      *time.Time
	SystemPrompt *string `gorm:"type:text"`
	Status       string  `gorm:"not null;index"`
	ErrorMessage *string `gorm:"type:text"`
	CreatedAt    time.Time
}

// Artifact is a file or data item attached to a test.
type Artifact struct {
	ID          int64  `gorm:"primaryKey"`
	TestID      int64  `gorm:"not null;index"`
	Kind        string `gorm:"not null"`
	DisplayName *string
	FilePath    *string
	Metadata    map[string]any `gorm:"serializer:json"`
	CreatedAt   time.Time
}

// Report is the analysis output of a test. There is at most one per test.
type Report struct {
	ID                    int64             `gorm:"primaryKey"`
	TestID                int64             `gorm:"not null;uniqueIndex"`
	ReportText            string            `gorm:"type:text"`
	PDFPath               *string
	ArtifactsUsedSnapshot []api.ArtifactRef `gorm:"serializer:json"`
	CreatedAt             time.Time
}
