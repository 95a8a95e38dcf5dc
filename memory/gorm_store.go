package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/types"
)

// GormStore is a GORM-backed Store implementation. The dialect is selected by
// the database driver config; sqlite uses the pure-Go driver so the library
// stays cgo-free.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenGormStore opens the database, applies pool settings and migrates the
// memories table.
func OpenGormStore(cfg config.DatabaseConfig, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&types.MemoryRecord{}); err != nil {
		return nil, fmt.Errorf("migrate memories table: %w", err)
	}

	store := &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "memory_store_gorm")),
	}

	logger.Info("memory store opened",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return store, nil
}

// NewGormStore wraps an already-open gorm.DB; the caller owns migration.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "memory_store_gorm")),
	}
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetForOwner(ctx context.Context, ownerID string) ([]types.MemoryRecord, error) {
	var records []types.MemoryRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Find(&records).Error
	if err != nil {
		return nil, types.NewError(types.ErrStoreIO, "query memories").WithCause(err).WithRetryable(true)
	}
	return records, nil
}

func (s *GormStore) GetInRange(ctx context.Context, ownerID string, start, end time.Time) ([]types.MemoryRecord, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if !start.IsZero() {
		q = q.Where("timestamp >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("timestamp <= ?", end)
	}

	var records []types.MemoryRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, types.NewError(types.ErrStoreIO, "query memories in range").WithCause(err).WithRetryable(true)
	}
	return records, nil
}

func (s *GormStore) Insert(ctx context.Context, record *types.MemoryRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("record is nil")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", types.NewError(types.ErrStoreIO, "insert memory").WithCause(err).WithRetryable(true)
	}

	s.logger.Debug("memory inserted",
		zap.String("id", record.ID),
		zap.String("owner_id", record.OwnerID),
		zap.String("type", string(record.Type)))

	return record.ID, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Delete(&types.MemoryRecord{}, "id = ?", id).Error
	if err != nil {
		return types.NewError(types.ErrStoreIO, "delete memory").WithCause(err).WithRetryable(true)
	}
	return nil
}

func (s *GormStore) Count(ctx context.Context, ownerID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&types.MemoryRecord{}).
		Where("owner_id = ?", ownerID).
		Count(&n).Error
	if err != nil {
		return 0, types.NewError(types.ErrStoreIO, "count memories").WithCause(err).WithRetryable(true)
	}
	return int(n), nil
}
