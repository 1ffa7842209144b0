package reliability

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lithium-ci/lithium/internal/models"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store persists run and suite history so reliability windows survive
// process restarts.
type Store struct {
	db *gorm.DB
}

// NewStore returns a store over the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveRun appends a test run record.
func (s *Store) SaveRun(run TestRun) error {
	record := models.TestRunRecord{
		ID:          uuid.New(),
		TestName:    run.Name,
		Status:      string(run.Status),
		DurationMS:  float64(run.Duration) / float64(time.Millisecond),
		BuildNumber: run.BuildNumber,
		Timestamp:   run.Timestamp,
		Error:       run.Error,
		RetryCount:  run.RetryCount,
	}
	if len(run.Metadata) > 0 {
		record.Metadata = datatypes.JSONMap(run.Metadata)
	}

	return errors.Wrap(s.db.Create(&record).Error, "failed to save test run")
}

// SaveSuite appends a per-build suite record.
func (s *Store) SaveSuite(record SuiteRecord) error {
	row := models.SuiteRecord{
		ID:          uuid.New(),
		SuiteName:   record.Suite,
		BuildNumber: record.BuildNumber,
		Timestamp:   record.Timestamp,
		TotalTests:  record.TotalTests,
		Passed:      record.Passed,
		Failed:      record.Failed,
		Skipped:     record.Skipped,
		DurationMS:  float64(record.Duration) / float64(time.Millisecond),
	}

	return errors.Wrap(s.db.Create(&row).Error, "failed to save suite record")
}

// Load replays the persisted history into a tracker, oldest build
// first. The tracker applies its own 100-build retention.
func (s *Store) Load(t *Tracker) error {
	var suites []models.SuiteRecord
	if err := s.db.Order("build_number asc").Find(&suites).Error; err != nil {
		return errors.Wrap(err, "failed to load suite records")
	}

	for _, row := range suites {
		t.AddTestSuite(SuiteRecord{
			Suite:       row.SuiteName,
			BuildNumber: row.BuildNumber,
			Timestamp:   row.Timestamp,
			TotalTests:  row.TotalTests,
			Passed:      row.Passed,
			Failed:      row.Failed,
			Skipped:     row.Skipped,
			Duration:    time.Duration(row.DurationMS * float64(time.Millisecond)),
		})
	}

	var runs []models.TestRunRecord
	if err := s.db.Order("build_number asc").Find(&runs).Error; err != nil {
		return errors.Wrap(err, "failed to load test run records")
	}

	for _, row := range runs {
		run := TestRun{
			Name:        row.TestName,
			Status:      Status(row.Status),
			Duration:    time.Duration(row.DurationMS * float64(time.Millisecond)),
			BuildNumber: row.BuildNumber,
			Timestamp:   row.Timestamp,
			Error:       row.Error,
			RetryCount:  row.RetryCount,
		}
		if len(row.Metadata) > 0 {
			run.Metadata = map[string]interface{}(row.Metadata)
		}
		t.AddTestRun(run)
	}

	return nil
}

// Prune deletes records older than the keep most recent distinct
// builds.
func (s *Store) Prune(keep int) error {
	var suiteBuilds, runBuilds []int64
	if err := s.db.Model(&models.SuiteRecord{}).Distinct("build_number").Pluck("build_number", &suiteBuilds).Error; err != nil {
		return errors.Wrap(err, "failed to list suite builds")
	}
	if err := s.db.Model(&models.TestRunRecord{}).Distinct("build_number").Pluck("build_number", &runBuilds).Error; err != nil {
		return errors.Wrap(err, "failed to list run builds")
	}

	builds := map[int64]struct{}{}
	for _, build := range append(suiteBuilds, runBuilds...) {
		builds[build] = struct{}{}
	}
	if len(builds) <= keep {
		return nil
	}

	ordered := make([]int64, 0, len(builds))
	for build := range builds {
		ordered = append(ordered, build)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] > ordered[j] })
	cutoff := ordered[keep-1]

	if err := s.db.Where("build_number < ?", cutoff).Delete(&models.SuiteRecord{}).Error; err != nil {
		return errors.Wrap(err, "failed to prune suite records")
	}
	if err := s.db.Where("build_number < ?", cutoff).Delete(&models.TestRunRecord{}).Error; err != nil {
		return errors.Wrap(err, "failed to prune run records")
	}

	return nil
}
