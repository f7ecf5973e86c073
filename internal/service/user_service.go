package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supatable-api/internal/models"
	appErrors "github.com/noah-isme/supatable-api/pkg/errors"
)

// UserProvider is a queryable set of users. The PostgreSQL repository serves production traffic and
// the in-memory repository serves tests and database-less runs.
type UserProvider interface {
	List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
	Ping(ctx context.Context) error
}

// ListUsersQuery carries list input exactly as a transport received it.
type ListUsersQuery struct {
	Search string
	Role   string
	Offset int
	Limit  int
}

// Filter normalizes the raw query.
func (q ListUsersQuery) Filter() models.UserFilter {
	return models.NormalizeUserFilter(q.Search, q.Role, q.Offset, q.Limit)
}

// UserService answers the users read query.
type UserService struct {
	provider UserProvider
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(provider UserProvider, metrics *MetricsService, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{provider: provider, metrics: metrics, logger: logger, now: time.Now}
}

// List returns the requested page of users and its pagination metadata.
// Provider failures are returned as appErrors.ErrProvider, never as an empty page.
func (s *UserService) List(ctx context.Context, query ListUsersQuery) (*models.UserPage, *models.Pagination, error) {
	filter := query.Filter()

	start := s.now()
	page, err := s.provider.List(ctx, filter)
	duration := s.now().Sub(start)

	s.metrics.ObserveDBQuery("users_list", duration)
	s.metrics.ObserveUsersQuery(duration, err != nil)

	if err != nil {
		s.logger.Error("users query failed",
			zap.String("search", filter.Search),
			zap.String("role", string(filter.Role)),
			zap.Int("offset", filter.Offset),
			zap.Int("limit", filter.Limit),
			zap.Error(err),
		)
		return nil, nil, appErrors.WrapProvider(err, "failed to load users")
	}
	if page.Items == nil {
		page.Items = []models.User{}
	}

	s.logger.Debug("users query served",
		zap.Int("items", len(page.Items)),
		zap.Int("total_count", page.TotalCount),
		zap.Duration("duration", duration),
	)

	pagination := &models.Pagination{
		Offset:     filter.Offset,
		Limit:      filter.Limit,
		TotalCount: page.TotalCount,
	}

	return page, pagination, nil
}

// Ready reports whether the provider can serve queries.
func (s *UserService) Ready(ctx context.Context) error {
	if err := s.provider.Ping(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "user store unreachable")
	}
	return nil
}
