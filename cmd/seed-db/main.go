// Command seed-db provisions the schema and inserts demo coupons for local
// development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itsmycolor/commerce-core/internal/domain/coupon"
	"github.com/itsmycolor/commerce-core/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		userID      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&userID, "user-id", "demo-user", "user to own the seeded coupons")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, userID); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, userID string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool), userID); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository, userID string) error {
	slog.Info("seeding demo coupons", slog.String("user_id", userID))

	now := time.Now()
	coupons := []*coupon.Coupon{
		{
			ID:        uuid.New().String(),
			UserID:    userID,
			Type:      coupon.TypePercent,
			Value:     decimal.NewFromInt(10),
			MinPrice:  decimal.NewFromInt(30000),
			ExpiredAt: now.AddDate(0, 1, 0),
		},
		{
			ID:        uuid.New().String(),
			UserID:    userID,
			Type:      coupon.TypeFixed,
			Value:     decimal.NewFromInt(5000),
			MinPrice:  decimal.NewFromInt(50000),
			ExpiredAt: now.AddDate(0, 1, 0),
		},
		{
			ID:        uuid.New().String(),
			UserID:    userID,
			Type:      coupon.TypePercent,
			Value:     decimal.NewFromInt(18),
			MinPrice:  decimal.Zero,
			ExpiredAt: now.AddDate(0, 0, 7),
		},
	}

	for _, c := range coupons {
		if err := repo.Create(ctx, c); err != nil {
			return errors.Wrapf(err, "create coupon %s", c.ID)
		}

		slog.Info("created coupon",
			slog.String("id", c.ID),
			slog.String("type", string(c.Type)),
			slog.String("value", c.Value.String()),
		)
	}

	return nil
}
