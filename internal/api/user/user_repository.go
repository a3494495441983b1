package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-identity-service/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

const uniqueViolation = "23505"

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for user data persistence.
type UserRepo interface {
	// Create inserts a new record. Returns types.ErrConflict if the email is taken.
	Create(ctx context.Context, params types.NewUserParams) (*types.User, error)
	// FindByEmail looks a user up by normalized email. Returns types.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*types.User, error)
	// FindByID returns types.ErrNotFound if the user doesn't exist.
	FindByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	// Update applies only the non-nil fields of patch and returns the stored record.
	Update(ctx context.Context, userID uuid.UUID, patch types.UserPatch) (*types.User, error)
	// MarkEmailVerified sets is_verified. Calling it again is a no-op.
	MarkEmailVerified(ctx context.Context, userID uuid.UUID) (*types.User, error)
	// Delete removes the record permanently. A second call returns types.ErrNotFound.
	Delete(ctx context.Context, userID uuid.UUID) error
	ListAll(ctx context.Context) ([]types.User, error)
}

// DBTX is the subset of pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool DBTX
}

func NewPostgresUserRepo(pgpool DBTX, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, name, email, password_hash, role, is_verified, photo_url, photo_ref, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.IsVerified,
		&u.PhotoURL, &u.PhotoRef, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = types.Role(role)
	return &u, nil
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "users"),
	)
	return otel.Tracer("UserRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresUserRepo) emailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)",
		email, except).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("database error checking email: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, params types.NewUserParams) (*types.User, error) {
	ctx, span := startSpan(ctx, "Create", "INSERT")
	defer span.End()
	l := r.logger.With(slog.String("method", "Create"))
	start := time.Now()

	email := types.NormalizeEmail(params.Email)
	role := params.Role
	if role == "" {
		role = types.RoleUser
	}
	if !role.IsValid() {
		return nil, types.NewValidationError(fmt.Errorf("role %q is not valid", role))
	}

	taken, err := r.emailTaken(ctx, email, uuid.Nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "email check failed")
		return nil, err
	}
	if taken {
		span.SetStatus(codes.Error, "email exists")
		return nil, fmt.Errorf("email %s: %w", email, types.ErrConflict)
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, role, is_verified, photo_url, photo_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $8)
		RETURNING ` + userColumns

	now := time.Now().UTC()
	u, err := scanUser(r.pgpool.QueryRow(ctx, query,
		uuid.New(), params.Name, email, params.PasswordHash, string(role), params.PhotoURL, params.PhotoRef, now))
	metrics.Get().ObserveQuery(ctx, "INSERT", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s: %w", email, types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	span.SetAttributes(attribute.String("db.user.id", u.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	l.InfoContext(ctx, "User created", slog.String("userID", u.ID.String()))
	return u, nil
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := startSpan(ctx, "FindByEmail", "SELECT")
	defer span.End()
	start := time.Now()

	u, err := scanUser(r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", types.NormalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.Get().ObserveQuery(ctx, "SELECT", start, nil)
		span.SetStatus(codes.Ok, "not found")
		return nil, types.ErrNotFound
	}
	metrics.Get().ObserveQuery(ctx, "SELECT", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := startSpan(ctx, "FindByID", "SELECT", attribute.String("db.user.id", userID.String()))
	defer span.End()
	start := time.Now()

	u, err := scanUser(r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", userID))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.Get().ObserveQuery(ctx, "SELECT", start, nil)
		span.SetStatus(codes.Ok, "not found")
		return nil, types.ErrNotFound
	}
	metrics.Get().ObserveQuery(ctx, "SELECT", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) Update(ctx context.Context, userID uuid.UUID, patch types.UserPatch) (*types.User, error) {
	ctx, span := startSpan(ctx, "Update", "UPDATE", attribute.String("db.user.id", userID.String()))
	defer span.End()
	l := r.logger.With(slog.String("method", "Update"), slog.String("userID", userID.String()))

	if patch.IsEmpty() {
		l.DebugContext(ctx, "Update called with no fields to update")
		return r.FindByID(ctx, userID)
	}

	var setClauses []string
	var args []interface{}
	argID := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
		span.SetAttributes(attribute.Bool("update."+column, true))
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Email != nil {
		email := types.NormalizeEmail(*patch.Email)
		taken, err := r.emailTaken(ctx, email, userID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if taken {
			span.SetStatus(codes.Error, "email exists")
			return nil, fmt.Errorf("email %s: %w", email, types.ErrConflict)
		}
		set("email", email)
	}
	if patch.PasswordHash != nil {
		set("password_hash", *patch.PasswordHash)
	}
	if patch.Role != nil {
		if !patch.Role.IsValid() {
			return nil, types.NewValidationError(fmt.Errorf("role %q is not valid", *patch.Role))
		}
		set("role", string(*patch.Role))
	}
	if patch.PhotoURL != nil {
		set("photo_url", *patch.PhotoURL)
	}
	if patch.PhotoRef != nil {
		set("photo_ref", *patch.PhotoRef)
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argID))
	args = append(args, time.Now().UTC())
	argID++
	args = append(args, userID)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, userColumns)

	l.DebugContext(ctx, "Executing dynamic update query", slog.String("query", query), slog.Int("arg_count", len(args)))

	start := time.Now()
	u, err := scanUser(r.pgpool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.Get().ObserveQuery(ctx, "UPDATE", start, nil)
		span.SetStatus(codes.Error, "User not found")
		return nil, fmt.Errorf("user not found for update: %w", types.ErrNotFound)
	}
	metrics.Get().ObserveQuery(ctx, "UPDATE", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email: %w", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to execute update query", slog.Any("error", err))
		return nil, fmt.Errorf("database error updating user: %w", err)
	}

	span.SetStatus(codes.Ok, "User updated")
	return u, nil
}

func (r *PostgresUserRepo) MarkEmailVerified(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := startSpan(ctx, "MarkEmailVerified", "UPDATE", attribute.String("db.user.id", userID.String()))
	defer span.End()
	start := time.Now()

	u, err := scanUser(r.pgpool.QueryRow(ctx, `
		UPDATE users
		SET is_verified = TRUE,
		    updated_at = CASE WHEN is_verified THEN updated_at ELSE $2 END
		WHERE id = $1
		RETURNING `+userColumns, userID, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.Get().ObserveQuery(ctx, "UPDATE", start, nil)
		span.SetStatus(codes.Error, "User not found")
		return nil, types.ErrNotFound
	}
	metrics.Get().ObserveQuery(ctx, "UPDATE", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error verifying email: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	ctx, span := startSpan(ctx, "Delete", "DELETE", attribute.String("db.user.id", userID.String()))
	defer span.End()
	start := time.Now()

	tag, err := r.pgpool.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	metrics.Get().ObserveQuery(ctx, "DELETE", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return fmt.Errorf("user not found for delete: %w", types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "User deleted")
	return nil
}

func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]types.User, error) {
	ctx, span := startSpan(ctx, "ListAll", "SELECT")
	defer span.End()
	start := time.Now()

	rows, err := r.pgpool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, email")
	if err != nil {
		metrics.Get().ObserveQuery(ctx, "SELECT", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	err = rows.Err()
	metrics.Get().ObserveQuery(ctx, "SELECT", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB rows iteration failed")
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows_returned", len(users)))
	return users, nil
}
