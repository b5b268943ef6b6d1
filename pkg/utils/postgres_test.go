package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type txProbe struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openProbeDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&txProbe{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openProbeDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Create(&txProbe{Name: "a"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int64
	db.Model(&txProbe{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := openProbeDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *gorm.DB) error {
		return tx.Create(&txProbe{Name: "a"}).Error
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var n int64
	db.Model(&txProbe{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openProbeDB(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *gorm.DB) error {
			tx.Create(&txProbe{Name: "a"})
			panic("boom")
		})
	}()

	var n int64
	db.Model(&txProbe{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}
