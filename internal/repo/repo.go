package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_shop/internal/models"
)

const uniqueViolation = "23505"

type GormRepo struct {
	DB *gorm.DB

	// NewOrderNumber is swapped in tests to force collisions.
	NewOrderNumber func() string
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db, NewOrderNumber: DefaultOrderNumber}
}

// Transaction runs fn against a repo bound to a single database transaction.
// fn's error rolls everything back.
func (r *GormRepo) Transaction(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx, NewOrderNumber: r.NewOrderNumber})
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
