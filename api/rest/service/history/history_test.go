package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lithium-ci/lithium/internal/models"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type HistoryTestSuite struct {
	suite.Suite
	db *gorm.DB
}

func TestHistoryTestSuite(t *testing.T) {
	suite.Run(t, new(HistoryTestSuite))
}

func (s *HistoryTestSuite) SetupTest() {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(models.All...))
	s.db = db
}

func (s *HistoryTestSuite) TearDownTest() {
	if s.db == nil {
		return
	}
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
}

func (s *HistoryTestSuite) seedRun(name, status string, durationMS float64, at time.Time) {
	s.Require().NoError(s.db.Create(&models.TestRunRecord{
		ID:          uuid.New(),
		TestName:    name,
		Status:      status,
		DurationMS:  durationMS,
		BuildNumber: 1,
		Timestamp:   at,
	}).Error)
}

func (s *HistoryTestSuite) TestGetAggregates() {
	now := time.Now().UTC()

	s.seedRun("renders header", "pass", 1000, now)
	s.seedRun("renders header", "pass", 5000, now)
	s.seedRun("checkout total", "fail", 2000, now)
	s.seedRun("checkout total", "fail", 2000, now.Add(-48*time.Hour))

	resp, err := New(context.Background(), s.db).Get()
	s.Require().NoError(err)

	s.Equal(int64(4), resp.Tests.TotalRuns)
	s.Equal(int64(3), resp.Tests.RecentRuns)
	s.InDelta(0.5, resp.Tests.PassRate, 0.0001)
	s.InDelta(2.5, resp.Tests.AvgDurationSeconds, 0.0001)

	s.Require().Len(resp.TopFailing, 1)
	s.Equal("checkout total", resp.TopFailing[0].Name)
	s.Equal(int64(2), resp.TopFailing[0].FailureCount)
	s.Require().NotNil(resp.TopFailing[0].LastFailure)

	s.Require().NotEmpty(resp.SlowestTests)
	s.Equal("renders header", resp.SlowestTests[0].Name)
	s.InDelta(3.0, resp.SlowestTests[0].AvgDurationSeconds, 0.0001)
}

func (s *HistoryTestSuite) TestGetEmptyHistory() {
	resp, err := New(context.Background(), s.db).Get()
	s.Require().NoError(err)

	s.Zero(resp.Tests.TotalRuns)
	s.Zero(resp.Tests.PassRate)
	s.Empty(resp.TopFailing)
	s.Empty(resp.SlowestTests)
}
