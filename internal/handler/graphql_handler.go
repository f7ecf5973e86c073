package handler

import (
	"context"
	"math"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"go.uber.org/zap"

	"github.com/noah-isme/supatable-api/internal/models"
	"github.com/noah-isme/supatable-api/internal/service"
	appErrors "github.com/noah-isme/supatable-api/pkg/errors"
)

// Schema is the GraphQL contract served by GraphQLHandler.
const Schema = `
schema {
	query: Query
}

type Query {
	ping: String!
	users(input: UsersInput!): UsersResult!
}

input UsersInput {
	search: String
	role: String = "All"
	offset: Int = 0
	limit: Int = 50
}

type UsersResult {
	items: [UserRow!]!
	totalCount: Int!
}

type UserRow {
	id: ID!
	email: String!
	fullName: String!
	role: String!
	createdAt: String!
}
`

// GraphQLHandler serves the users query over GraphQL.
type GraphQLHandler struct {
	schema *graphql.Schema
	relay  *relay.Handler
}

// NewGraphQLHandler parses the schema and binds it to the users service.
func NewGraphQLHandler(svc userLister, logger *zap.Logger) (*GraphQLHandler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := graphql.ParseSchema(Schema, &queryResolver{service: svc, logger: logger})
	if err != nil {
		return nil, err
	}
	return &GraphQLHandler{schema: schema, relay: &relay.Handler{Schema: schema}}, nil
}

// ServeHTTP accepts POSTed {query, operationName, variables} documents.
func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	h.relay.ServeHTTP(w, r)
}

type queryResolver struct {
	service userLister
	logger  *zap.Logger
}

// usersInput binds UsersInput. Fields with schema defaults are always present and must not be pointers.
type usersInput struct {
	Search *string
	Role   string
	Offset int32
	Limit  int32
}

func (r *queryResolver) Ping() string {
	return "pong"
}

func (r *queryResolver) Users(ctx context.Context, args struct{ Input usersInput }) (*usersResultResolver, error) {
	query := service.ListUsersQuery{
		Role:   args.Input.Role,
		Offset: int(args.Input.Offset),
		Limit:  int(args.Input.Limit),
	}
	if args.Input.Search != nil {
		query.Search = *args.Input.Search
	}

	page, _, err := r.service.List(ctx, query)
	if err != nil {
		r.logger.Error("error while executing users query",
			zap.String("search", query.Search),
			zap.String("role", query.Role),
			zap.Int("offset", query.Offset),
			zap.Int("limit", query.Limit),
			zap.Error(err),
		)
		return nil, resolverError{appErrors.FromError(err)}
	}
	return &usersResultResolver{page: page}, nil
}

type usersResultResolver struct {
	page *models.UserPage
}

func (r *usersResultResolver) Items() []*userRowResolver {
	rows := make([]*userRowResolver, 0, len(r.page.Items))
	for i := range r.page.Items {
		rows = append(rows, &userRowResolver{user: r.page.Items[i]})
	}
	return rows
}

// TotalCount saturates at the largest GraphQL Int.
func (r *usersResultResolver) TotalCount() int32 {
	if r.page.TotalCount > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(r.page.TotalCount)
}

type userRowResolver struct {
	user models.User
}

func (r *userRowResolver) ID() graphql.ID {
	return graphql.ID(r.user.ID)
}

func (r *userRowResolver) Email() string {
	return r.user.Email
}

func (r *userRowResolver) FullName() string {
	return r.user.FullName
}

func (r *userRowResolver) Role() string {
	return string(r.user.Role)
}

func (r *userRowResolver) CreatedAt() string {
	return r.user.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// resolverError exposes only the public message of a typed error, with its code as an extension.
type resolverError struct {
	err *appErrors.Error
}

func (e resolverError) Error() string {
	return e.err.Message
}

func (e resolverError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.err.Code}
}
