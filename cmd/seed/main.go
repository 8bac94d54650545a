package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/config"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/db"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	log.Info().Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, log, 100); err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, log, 9000); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedStaff(context.Background(), pool, log, 10); err != nil {
		log.Fatal().Err(err).Msg("seed staff")
	}

	log.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, count int) error {
	log.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		first := gofakeit.FirstName()
		last := gofakeit.LastName()
		name := fmt.Sprintf("Dr. %s %s", first, last)
		email := uniqueEmail(first, last, i)
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
		feeCents := int64(gofakeit.Number(20, 150)) * 100

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, role, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, 'doctor', true, now(), now())
		`, id, name, email)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO doctor_profiles (doctor_id, specialty, fee_cents)
			VALUES ($1, $2, $3)
		`, id, specialty, feeCents)
		if err != nil {
			return err
		}

		// Weekday shifts start on the hour; about half the doctors also
		// take Saturday mornings.
		dayStart := []int{480, 540, 600}[gofakeit.Number(0, 2)]
		dayEnd := dayStart + 480
		for weekday := 1; weekday <= 5; weekday++ {
			_, err = tx.Exec(ctx, `
				INSERT INTO doctor_availability (doctor_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, id, weekday, dayStart, dayEnd)
			if err != nil {
				return err
			}
		}
		if gofakeit.Bool() {
			_, err = tx.Exec(ctx, `
				INSERT INTO doctor_availability (doctor_id, weekday, start_minute, end_minute)
				VALUES ($1, 6, 540, 780)
			`, id)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			first := gofakeit.FirstName()
			last := gofakeit.LastName()

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, role, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, 'patient', true, now(), now())
			`, uuid.New(), first+" "+last, uniqueEmail(first, last, i))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("seeded", end).Int("total", count).Msg("patients progress")
	}

	log.Info().Msg("patients seeded")
	return nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, count int) error {
	log.Info().Int("count", count).Msg("seeding staff")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		role := "staff"
		if i < 2 {
			role = "admin"
		}
		first := gofakeit.FirstName()
		last := gofakeit.LastName()

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, role, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, uuid.New(), first+" "+last, uniqueEmail(first, last, i), role)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Msg("staff seeded")
	return nil
}

// uniqueEmail keeps the UNIQUE constraint on users.email happy across a
// large generated population.
func uniqueEmail(first, last string, n int) string {
	return strings.ToLower(fmt.Sprintf("%s.%s.%d.%d@urbancare.dev", first, last, n, gofakeit.Number(1000, 9999)))
}
