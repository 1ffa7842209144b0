package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TestRunRecord is the durable form of a single test execution,
// retained per build for flaky-test analysis.
type TestRunRecord struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	TestName    string            `gorm:"type:text;index;not null" json:"test_name"`
	Status      string            `gorm:"type:text;index;not null" json:"status"`
	DurationMS  float64           `gorm:"not null" json:"duration_ms"`
	BuildNumber int64             `gorm:"index;not null" json:"build_number"`
	Timestamp   time.Time         `gorm:"not null" json:"timestamp"`
	Error       string            `json:"error,omitempty"`
	RetryCount  int               `gorm:"not null;default:0" json:"retry_count"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
}

// SuiteRecord is the durable per-build suite summary the reliability
// window operates on.
type SuiteRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SuiteName   string    `gorm:"type:text;index;not null" json:"suite_name"`
	BuildNumber int64     `gorm:"index;not null" json:"build_number"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
	TotalTests  int       `gorm:"not null" json:"total_tests"`
	Passed      int       `gorm:"not null" json:"passed"`
	Failed      int       `gorm:"not null" json:"failed"`
	Skipped     int       `gorm:"not null" json:"skipped"`
	DurationMS  float64   `gorm:"not null" json:"duration_ms"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}
