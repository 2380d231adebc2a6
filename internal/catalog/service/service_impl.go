package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/mealora/mealora/internal/catalog/domain"
	"github.com/gosimple/slug"
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

	products    repository.Repository[catalogdomain.Product]
	programs    repository.Repository[catalogdomain.Program]
	restaurants repository.Repository[catalogdomain.Restaurant]
	menuItems   repository.Repository[catalogdomain.MenuItem]
}

func NewService(p Params) catalogdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("catalog.service"),
		genID:       p.GenID,
		products:    repository.ProvideStore[catalogdomain.Product](p.DB),
		programs:    repository.ProvideStore[catalogdomain.Program](p.DB),
		restaurants: repository.ProvideStore[catalogdomain.Restaurant](p.DB),
		menuItems:   repository.ProvideStore[catalogdomain.MenuItem](p.DB),
	}
}

func (s *Service) CreateProduct(ctx context.Context, req catalogdomain.CreateProductRequest) (*catalogdomain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	if req.Price <= 0 {
		return nil, catalogdomain.ErrInvalidPrice
	}

	product := &catalogdomain.Product{
		ID:          s.genID.Generate(),
		Slug:        slug.Make(name),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		CostPrice:   req.CostPrice,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Active:      true,
	}
	if req.RestaurantID != "" {
		restaurantID, err := snowflake.ParseString(req.RestaurantID)
		if err != nil {
			return nil, catalogdomain.ErrRestaurantNotFound
		}
		product.RestaurantID = restaurantID
	}

	if err := s.products.Create(ctx, product); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrSlugTaken
		}
		return nil, err
	}
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, catalogdomain.ErrProductNotFound
	}
	item, err := s.products.FindOne(ctx, &catalogdomain.Product{ID: parsed})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, catalogdomain.ErrProductNotFound
	}
	return item, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]*catalogdomain.Product, error) {
	return s.products.Find(ctx, &catalogdomain.Product{Active: true}, option.WithSortBy("created_at desc"))
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := snowflake.ParseString(id); err != nil {
		return catalogdomain.ErrProductNotFound
	}
	return s.products.Delete(ctx, id)
}

func (s *Service) CreateProgram(ctx context.Context, req catalogdomain.CreateProgramRequest) (*catalogdomain.Program, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	if req.DurationDays <= 0 || req.MealsPerDay <= 0 {
		return nil, catalogdomain.ErrInvalidDuration
	}
	if req.Price <= 0 {
		return nil, catalogdomain.ErrInvalidPrice
	}

	billingCycle := strings.TrimSpace(req.BillingCycle)
	if billingCycle == "" {
		billingCycle = "one_time"
	}

	program := &catalogdomain.Program{
		ID:           s.genID.Generate(),
		Slug:         slug.Make(name),
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		DurationDays: req.DurationDays,
		MealsPerDay:  req.MealsPerDay,
		Price:        req.Price,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		BillingCycle: billingCycle,
		Active:       true,
	}
	if err := s.programs.Create(ctx, program); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrSlugTaken
		}
		return nil, err
	}
	return program, nil
}

func (s *Service) GetProgram(ctx context.Context, id string) (*catalogdomain.Program, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, catalogdomain.ErrProgramNotFound
	}
	item, err := s.programs.FindOne(ctx, &catalogdomain.Program{ID: parsed})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, catalogdomain.ErrProgramNotFound
	}
	return item, nil
}

func (s *Service) ListPrograms(ctx context.Context) ([]*catalogdomain.Program, error) {
	return s.programs.Find(ctx, &catalogdomain.Program{Active: true}, option.WithSortBy("created_at desc"))
}

func (s *Service) CreateRestaurant(ctx context.Context, name, address string) (*catalogdomain.Restaurant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	restaurant := &catalogdomain.Restaurant{
		ID:      s.genID.Generate(),
		Name:    name,
		Address: strings.TrimSpace(address),
		Active:  true,
	}
	if err := s.restaurants.Create(ctx, restaurant); err != nil {
		return nil, err
	}
	return restaurant, nil
}

func (s *Service) GetRestaurant(ctx context.Context, id string) (*catalogdomain.Restaurant, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, catalogdomain.ErrRestaurantNotFound
	}
	item, err := s.restaurants.FindOne(ctx, &catalogdomain.Restaurant{ID: parsed})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, catalogdomain.ErrRestaurantNotFound
	}
	return item, nil
}

func (s *Service) ListRestaurants(ctx context.Context) ([]*catalogdomain.Restaurant, error) {
	return s.restaurants.Find(ctx, &catalogdomain.Restaurant{Active: true}, option.WithSortBy("created_at desc"))
}

func (s *Service) AddMenuItem(ctx context.Context, restaurantID, productID, slot string) (*catalogdomain.MenuItem, error) {
	restaurant, err := s.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	item := &catalogdomain.MenuItem{
		ID:           s.genID.Generate(),
		RestaurantID: restaurant.ID,
		ProductID:    product.ID,
		Slot:         strings.TrimSpace(slot),
		Available:    true,
	}
	if err := s.menuItems.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) ListMenu(ctx context.Context, restaurantID string) ([]*catalogdomain.MenuItem, error) {
	restaurant, err := s.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return s.menuItems.Find(ctx, &catalogdomain.MenuItem{RestaurantID: restaurant.ID})
}
