package postgres

import (
	"context"
	"errors"
	"fmt"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, name, email, password_hash, role, avatar, phone, vehicle_type, plate_number, is_available, created_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.UserAccount) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Avatar,
		u.Phone, u.VehicleType, u.PlateNumber, u.IsAvailable, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ports.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepo) Update(ctx context.Context, u *domain.UserAccount) error {
	query := `UPDATE users
		SET name = $2, avatar = $3, phone = $4, vehicle_type = $5, plate_number = $6, is_available = $7
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		u.ID, u.Name, u.Avatar, u.Phone, u.VehicleType, u.PlateNumber, u.IsAvailable,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", u.ID, ports.ErrUserNotFound)
	}
	return nil
}

// ListRiders returns riders ordered by signup time.
func (r *UserRepo) ListRiders(ctx context.Context) ([]*domain.UserAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at, id`, string(domain.RoleRider))
	if err != nil {
		return nil, fmt.Errorf("list riders: %w", err)
	}
	defer rows.Close()

	var riders []*domain.UserAccount
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rider: %w", err)
		}
		riders = append(riders, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate riders: %w", err)
	}
	return riders, nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg string) (*domain.UserAccount, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.UserAccount, error) {
	u := &domain.UserAccount{}
	var role string
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Avatar,
		&u.Phone, &u.VehicleType, &u.PlateNumber, &u.IsAvailable, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return u, nil
}
