// Package db persists projects, tests, artifacts and reports of the
// reference API server.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/ntview/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Store provides persistence for API resources.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Project CRUD.
	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	CreateProject(ctx context.Context, p *Project) error
	SaveProject(ctx context.Context, p *Project) error
	// DeleteProject removes the project with its tests and returns the
	// removed test ids.
	DeleteProject(ctx context.Context, id int64) ([]int64, error)

	// Test CRUD.
	ListTests(ctx context.Context, projectID *int64) ([]Test, error)
	GetTest(ctx context.Context, id int64) (*Test, error)
	CreateTest(ctx context.Context, t *Test) error
	SetTestStatus(ctx context.Context, id int64, status string, errMsg *string) error
	DeleteTest(ctx context.Context, id int64) error

	// Artifacts.
	ListArtifacts(ctx context.Context, testID int64) ([]Artifact, error)
	CreateArtifacts(ctx context.Context, arts ...*Artifact) error
	DeleteArtifacts(ctx context.Context, testID int64) error

	// Reports.
	GetReport(ctx context.Context, testID int64) (*Report, error)
	// SaveReport stores r as the only report of its test, updating the
	// existing row in place.
	SaveReport(ctx context.Context, r *Report) error
}

// Ensure interface compliance.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "db"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Project{},
		&Test{},
		&Artifact{},
		&Report{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// notFound maps gorm's missing-row error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return err
}

// --- Projects ---

func (s *store) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	return projects, nil
}

func (s *store) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("getting project %d: %w", id, notFound(err))
	}

	return &p, nil
}

func (s *store) CreateProject(ctx context.Context, p *Project) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("creating project: %w", err)
	}

	return nil
}

func (s *store) SaveProject(ctx context.Context, p *Project) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("saving project %d: %w", p.ID, err)
	}

	return nil
}

func (s *store) DeleteProject(ctx context.Context, id int64) ([]int64, error) {
	var testIDs []int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Project{}, id)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Model(&Test{}).
			Where("project_id = ?", id).
			Pluck("id", &testIDs).Error; err != nil {
			return err
		}

		if len(testIDs) == 0 {
			return nil
		}

		return deleteTestRows(tx, testIDs...)
	})
	if err != nil {
		return nil, fmt.Errorf("deleting project %d: %w", id, err)
	}

	return testIDs, nil
}

// --- Tests ---

func (s *store) ListTests(ctx context.Context, projectID *int64) ([]Test, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}

	var tests []Test
	if err := q.Find(&tests).Error; err != nil {
		return nil, fmt.Errorf("listing tests: %w", err)
	}

	return tests, nil
}

func (s *store) GetTest(ctx context.Context, id int64) (*Test, error) {
	var t Test
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, fmt.Errorf("getting test %d: %w", id, notFound(err))
	}

	return &t, nil
}

func (s *store) CreateTest(ctx context.Context, t *Test) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("creating test: %w", err)
	}

	return nil
}

func (s *store) SetTestStatus(
	ctx context.Context,
	id int64,
	status string,
	errMsg *string,
) error {
	res := s.db.WithContext(ctx).
		Model(&Test{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"error_message": errMsg,
		})
	if res.Error != nil {
		return fmt.Errorf("updating test %d status: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("updating test %d status: %w", id, ErrNotFound)
	}

	return nil
}

func (s *store) DeleteTest(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Test{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			return ErrNotFound
		}

		return deleteTestRows(tx, id)
	})
	if err != nil {
		return fmt.Errorf("deleting test %d: %w", id, err)
	}

	return nil
}

// deleteTestRows removes tests together with their artifacts and reports.
func deleteTestRows(tx *gorm.DB, ids ...int64) error {
	if err := tx.Where("test_id IN ?", ids).Delete(&Artifact{}).Error; err != nil {
		return err
	}

	if err := tx.Where("test_id IN ?", ids).Delete(&Report{}).Error; err != nil {
		return err
	}

	return tx.Where("id IN ?", ids).Delete(&Test{}).Error
}

// --- Artifacts ---

func (s *store) ListArtifacts(ctx context.Context, testID int64) ([]Artifact, error) {
	var arts []Artifact
	if err := s.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("id ASC").
		Find(&arts).Error; err != nil {
		return nil, fmt.Errorf("listing artifacts of test %d: %w", testID, err)
	}

	return arts, nil
}

func (s *store) CreateArtifacts(ctx context.Context, arts ...*Artifact) error {
	if len(arts) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Create(arts).Error; err != nil {
		return fmt.Errorf("creating artifacts: %w", err)
	}

	return nil
}

func (s *store) DeleteArtifacts(ctx context.Context, testID int64) error {
	if err := s.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Delete(&Artifact{}).Error; err != nil {
		return fmt.Errorf("deleting artifacts of test %d: %w", testID, err)
	}

	return nil
}

// --- Reports ---

func (s *store) GetReport(ctx context.Context, testID int64) (*Report, error) {
	var r Report
	if err := s.db.WithContext(ctx).
		Where("test_id = ?", testID).
		First(&r).Error; err != nil {
		return nil, fmt.Errorf("getting report of test %d: %w", testID, notFound(err))
	}

	return &r, nil
}

func (s *store) SaveReport(ctx context.Context, r *Report) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Report

		err := tx.Where("test_id = ?", r.TestID).First(&existing).Error

		switch {
		case err == nil:
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt

			return tx.Save(r).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			r.ID = 0

			return tx.Create(r).Error
		default:
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("saving report of test %d: %w", r.TestID, err)
	}

	return nil
}
