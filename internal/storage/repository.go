package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/veridex/compliance-core/internal/compliance"
)

// ComplianceReportRow is the relational shape of a persisted compliance
// result. Checks and recommendations are stored JSON-encoded.
type ComplianceReportRow struct {
	ID              uuid.UUID `gorm:"primaryKey;type:uuid"`
	InvestorID      string    `gorm:"index;not null"`
	Jurisdiction    string    `gorm:"index;not null"`
	AssetType       string
	Amount          string
	IsCompliant     bool
	OverallScore    int
	Checks          []byte `gorm:"type:jsonb"`
	Recommendations []byte `gorm:"type:jsonb"`
	RequiredActions []byte `gorm:"type:jsonb"`
	ArtifactRef     string
	GeneratedAt     time.Time `gorm:"index;not null"`
	CreatedAt       time.Time
}

// TableName sets the gorm table for report rows
func (ComplianceReportRow) TableName() string { return "compliance_reports" }

// Repository persists investor profiles and compliance reports through gorm.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostgresDB opens a Postgres connection for the repository.
func NewPostgresDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// NewSQLiteDB opens a SQLite database, used for local development and tests.
func NewSQLiteDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return db, nil
}

// NewRepository wraps a gorm DB and migrates the owned tables.
func NewRepository(db *gorm.DB, logger *zap.Logger) (*Repository, error) {
	if err := db.AutoMigrate(&compliance.InvestorProfile{}, &ComplianceReportRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate compliance tables: %w", err)
	}
	return &Repository{db: db, logger: logger}, nil
}

// UpsertProfile inserts or updates the investor profile row.
func (r *Repository) UpsertProfile(ctx context.Context, profile *compliance.InvestorProfile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("upsert profile %s: %w", profile.InvestorID, err)
	}
	return nil
}

// InsertReport stores a compliance result with JSON-encoded checks and
// recommendations.
func (r *Repository) InsertReport(ctx context.Context, result *compliance.ComplianceResult) error {
	checks, err := json.Marshal(result.Checks)
	if err != nil {
		return fmt.Errorf("encode checks: %w", err)
	}
	recs, err := json.Marshal(result.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	actions, err := json.Marshal(result.RequiredActions)
	if err != nil {
		return fmt.Errorf("encode required actions: %w", err)
	}

	row := &ComplianceReportRow{
		ID:              uuid.New(),
		InvestorID:      result.InvestorID,
		Jurisdiction:    result.Jurisdiction,
		AssetType:       result.AssetType,
		Amount:          result.Amount.String(),
		IsCompliant:     result.IsCompliant,
		OverallScore:    result.OverallScore,
		Checks:          checks,
		Recommendations: recs,
		RequiredActions: actions,
		ArtifactRef:     result.ArtifactRef,
		GeneratedAt:     result.GeneratedAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert compliance report for %s: %w", result.InvestorID, err)
	}
	return nil
}

// ReportsForInvestor returns persisted reports, newest first.
func (r *Repository) ReportsForInvestor(ctx context.Context, investorID string, limit int) ([]ComplianceReportRow, error) {
	var rows []ComplianceReportRow
	q := r.db.WithContext(ctx).
		Where("investor_id = ?", investorID).
		Order("generated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query reports for %s: %w", investorID, err)
	}
	return rows, nil
}
