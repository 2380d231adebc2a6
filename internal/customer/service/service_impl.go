package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/mealora/mealora/internal/customer/domain"
	pkgdb "github.com/mealora/mealora/pkg/db"
	"github.com/mealora/mealora/pkg/db/option"
	"github.com/mealora/mealora/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository[customerdomain.Customer]
}

func NewService(p Params) customerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[customerdomain.Customer](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateRequest) (*customerdomain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, customerdomain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, customerdomain.ErrInvalidEmail
	}

	role := req.Role
	if role == "" {
		role = customerdomain.RoleUser
	}

	customer := &customerdomain.Customer{
		ID:      s.genID.Generate(),
		Name:    name,
		Email:   email,
		Phone:   strings.TrimSpace(req.Phone),
		Role:    role,
		Address: strings.TrimSpace(req.Address),
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, customerdomain.ErrEmailTaken
		}
		return nil, err
	}
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*customerdomain.Customer, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, customerdomain.ErrNotFound
	}

	item, err := s.repo.FindOne(ctx, &customerdomain.Customer{ID: parsed})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, customerdomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context) ([]*customerdomain.Customer, error) {
	return s.repo.Find(ctx, &customerdomain.Customer{}, option.WithSortBy("created_at desc"))
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := snowflake.ParseString(id); err != nil {
		return customerdomain.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}
