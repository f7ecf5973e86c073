package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/supatable-api/internal/models"
)

// UserRepository provides read access to the users table.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns the page of users selected by filter together with the number of matching users.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	filter = filter.Normalize()

	baseQuery := `FROM users`
	var conditions []string
	var args []interface{}

	if filter.HasRole() {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, string(filter.Role))
	}
	if filter.HasSearch() {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(`(email ILIKE $%d ESCAPE '\' OR full_name ILIKE $%d ESCAPE '\' OR role ILIKE $%d ESCAPE '\')`, n, n, n))
		args = append(args, "%"+likeEscaper.Replace(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	listQuery := fmt.Sprintf("SELECT id, email, full_name, role, created_at %s ORDER BY created_at DESC, id ASC OFFSET $%d LIMIT $%d", baseQuery, len(args)+1, len(args)+2)
	listArgs := append(append([]interface{}{}, args...), filter.Offset, filter.Limit)

	users := make([]models.User, 0, filter.Limit)
	if err := r.db.SelectContext(ctx, &users, listQuery, listArgs...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return &models.UserPage{Items: users, TotalCount: total}, nil
}

// Ping checks that the database answers.
func (r *UserRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping users store: %w", err)
	}
	return nil
}
