package bench

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const errStoreNil = "store is nil"

// Run is one persisted benchmark invocation.
type Run struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Source    string // config file the run was started from
	Threshold float64
	CreatedAt time.Time
}

// MetricValue is one cell of a persisted metrics table.
type MetricValue struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"type:varchar(36);index:idx_run"`
	Metric     string `gorm:"index:idx_metric_dataset,priority:1"`
	Dataset    string `gorm:"index:idx_metric_dataset,priority:2"`
	Checkpoint string
	Iteration  int
	Value      float64
	CreatedAt  time.Time
}

// Store persists metrics tables in SQLite.
type Store struct {
	DB *gorm.DB
	db *sql.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Run{}, &MetricValue{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{DB: db, db: sqlDB}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores every value of t under a new run id.
func (s *Store) SaveRun(source string, threshold float64, t Table) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New(errStoreNil)
	}

	run := Run{ID: uuid.NewString(), Source: source, Threshold: threshold}

	var values []MetricValue
	for _, metric := range t.Metrics() {
		for _, dataset := range t.Datasets(metric) {
			for _, p := range t.Series(metric, dataset) {
				values = append(values, MetricValue{
					RunID:      run.ID,
					Metric:     metric,
					Dataset:    dataset,
					Checkpoint: p.Checkpoint,
					Iteration:  p.Iteration,
					Value:      p.Value,
				})
			}
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("creating run: %w", err)
		}
		if len(values) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(values, 500).Error; err != nil {
			return fmt.Errorf("inserting metric values: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// Runs returns every stored run, newest first.
func (s *Store) Runs() ([]Run, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var runs []Run
	if err := s.DB.Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

// History returns every stored value of metric for dataset, ordered by
// iteration and then by when it was recorded.
func (s *Store) History(metric, dataset string) ([]MetricValue, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var rows []MetricValue
	err := s.DB.Where("metric = ? AND dataset = ?", metric, dataset).
		Order("iteration ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return rows, nil
}

// Table rebuilds the metrics table of one run.
func (s *Store) Table(runID string) (Table, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var rows []MetricValue
	if err := s.DB.Where("run_id = ?", runID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	if len(rows) == 0 {
		var n int64
		if err := s.DB.Model(&Run{}).Where("id = ?", runID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("querying run %s: %w", runID, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("run %s: %w", runID, gorm.ErrRecordNotFound)
		}
	}

	t := make(Table)
	for _, r := range rows {
		t.Set(r.Metric, r.Dataset, r.Checkpoint, r.Value)
	}
	return t, nil
}
