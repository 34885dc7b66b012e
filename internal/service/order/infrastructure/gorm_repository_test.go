package infrastructure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"orderdesk/internal/service/order/domain"
)

// newSQLiteRepo 用内存 SQLite 承载 orders 表，单连接保证所有查询看到同一个库
func newSQLiteRepo(t *testing.T) *GormOrderRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&OrderModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormOrderRepository(db)
}

func TestGormOrderRepository_CreateAndFind(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, pendingOrder("o-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.FindByID(ctx, "o-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != domain.StatusPending || got.Instrument != "TEST12345678" || got.Quantity != 10 {
		t.Errorf("unexpected order: %+v", got)
	}
	if !got.LimitPrice.Valid || got.LimitPrice.Decimal.StringFixed(2) != "12.30" {
		t.Errorf("limit price = %v", got.LimitPrice)
	}
	if got.ErrorMessage != "" {
		t.Errorf("pending order carries message %q", got.ErrorMessage)
	}

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("FindByID(missing) err = %v, want ErrOrderNotFound", err)
	}
}

func TestGormOrderRepository_UpdateStatus(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	if err := repo.Create(ctx, pendingOrder("o-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.UpdateStatus(ctx, "o-1", domain.StatusFailed, "insufficient liquidity"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := repo.FindByID(ctx, "o-1")
	if got.Status != domain.StatusFailed || got.ErrorMessage != "insufficient liquidity" {
		t.Fatalf("got %s/%q, want failed/insufficient liquidity", got.Status, got.ErrorMessage)
	}

	// 已是终态：条件更新不命中，且行存在，应区分为非法流转
	err := repo.UpdateStatus(ctx, "o-1", domain.StatusCompleted, "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second UpdateStatus err = %v, want ErrInvalidTransition", err)
	}
	got, _ = repo.FindByID(ctx, "o-1")
	if got.Status != domain.StatusFailed || got.ErrorMessage != "insufficient liquidity" {
		t.Fatalf("terminal order mutated: %s/%q", got.Status, got.ErrorMessage)
	}

	// 行不存在：条件更新不命中，计数为 0
	if err := repo.UpdateStatus(ctx, "missing", domain.StatusCompleted, ""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("UpdateStatus(missing) err = %v, want ErrOrderNotFound", err)
	}
}

func TestGormOrderRepository_ConcurrentSettleWinsOnce(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	if err := repo.Create(ctx, pendingOrder("o-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	statuses := []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusError, domain.StatusCompleted}
	errs := make([]error, len(statuses))
	var wg sync.WaitGroup
	for i, st := range statuses {
		wg.Add(1)
		go func(i int, st domain.Status) {
			defer wg.Done()
			errs[i] = repo.UpdateStatus(ctx, "o-1", st, "")
		}(i, st)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrInvalidTransition):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d writers settled the order, want exactly 1", wins)
	}
}
