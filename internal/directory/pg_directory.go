package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/booking"
)

// PgDirectory resolves the booking engine's party references from Postgres.
// Implements booking.Directory.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) GetUser(ctx context.Context, id uuid.UUID) (*booking.User, error) {
	var u booking.User
	var email *string

	err := d.pool.QueryRow(ctx, `
		SELECT id, name, email, role, is_active
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &email, &u.Role, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	u.Email = email
	return &u, nil
}

// GetDoctor loads the doctor's profile and weekly availability template.
// A user without the doctor role resolves to ErrDoctorNotFound, same as an
// unknown ID.
func (d *PgDirectory) GetDoctor(ctx context.Context, id uuid.UUID) (*booking.Doctor, error) {
	var doc booking.Doctor
	var specialty *string

	err := d.pool.QueryRow(ctx, `
		SELECT u.id, u.name, u.is_active, p.specialty, p.fee_cents
		FROM users u
		JOIN doctor_profiles p ON p.doctor_id = u.id
		WHERE u.id = $1 AND u.role = 'doctor'
	`, id).Scan(&doc.ID, &doc.Name, &doc.IsActive, &specialty, &doc.FeeCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrDoctorNotFound
		}
		return nil, fmt.Errorf("query doctor: %w", err)
	}
	doc.Specialty = specialty

	rows, err := d.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM doctor_availability
		WHERE doctor_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query doctor availability: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var weekday, start, end int
		if err := rows.Scan(&weekday, &start, &end); err != nil {
			return nil, err
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		doc.Weekly[weekday] = booking.Window{
			Enabled: true,
			Start:   booking.TimeOfDay(start),
			End:     booking.TimeOfDay(end),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &doc, nil
}
