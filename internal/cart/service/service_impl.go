package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mealora/mealora/internal/cart/domain"
	catalogdomain "github.com/mealora/mealora/internal/catalog/domain"
	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/pkg/repository"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Catalog catalogdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog catalogdomain.Service

	carts repository.Repository[domain.Cart]
	items repository.Repository[domain.CartItem]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("cart.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,
		carts:   repository.ProvideStore[domain.Cart](p.DB),
		items:   repository.ProvideStore[domain.CartItem](p.DB),
	}
}

func (s *Service) Get(ctx context.Context, customerID snowflake.ID) (*domain.View, error) {
	cart, err := s.ensureCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *Service) AddItem(ctx context.Context, customerID snowflake.ID, req domain.AddItemRequest) (*domain.View, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	cart, err := s.ensureCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	// Adding a product already in the cart bumps the quantity instead of
	// creating a second line.
	existing, err := s.items.FindOne(ctx, &domain.CartItem{CartID: cart.ID, ProductID: product.ID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Quantity += req.Quantity
		existing.UpdatedAt = s.clock.Now()
		if err := s.items.Update(ctx, existing.ID.String(), existing); err != nil {
			return nil, err
		}
		return s.view(ctx, cart)
	}

	item := &domain.CartItem{
		ID:        s.genID.Generate(),
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  req.Quantity,
		Price:     product.Price,
		CreatedAt: s.clock.Now(),
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *Service) UpdateItem(ctx context.Context, customerID snowflake.ID, itemID string, quantity int) (*domain.View, error) {
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	cart, item, err := s.ownedItem(ctx, customerID, itemID)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		if err := s.items.Delete(ctx, item.ID.String()); err != nil {
			return nil, err
		}
		return s.view(ctx, cart)
	}

	item.Quantity = quantity
	item.UpdatedAt = s.clock.Now()
	if err := s.items.Update(ctx, item.ID.String(), item); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *Service) RemoveItem(ctx context.Context, customerID snowflake.ID, itemID string) (*domain.View, error) {
	cart, item, err := s.ownedItem(ctx, customerID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.items.Delete(ctx, item.ID.String()); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *Service) Clear(ctx context.Context, customerID snowflake.ID) error {
	cart, err := s.ensureCart(ctx, customerID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Delete(&domain.CartItem{}).Error
}

func (s *Service) ensureCart(ctx context.Context, customerID snowflake.ID) (*domain.Cart, error) {
	cart, err := s.carts.FindOne(ctx, &domain.Cart{CustomerID: customerID})
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}
	cart = &domain.Cart{
		ID:         s.genID.Generate(),
		CustomerID: customerID,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) ownedItem(ctx context.Context, customerID snowflake.ID, itemID string) (*domain.Cart, *domain.CartItem, error) {
	cart, err := s.ensureCart(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	id, err := snowflake.ParseString(itemID)
	if err != nil {
		return nil, nil, domain.ErrItemNotFound
	}
	item, err := s.items.FindOne(ctx, &domain.CartItem{ID: id, CartID: cart.ID})
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, domain.ErrItemNotFound
	}
	return cart, item, nil
}

func (s *Service) view(ctx context.Context, cart *domain.Cart) (*domain.View, error) {
	items, err := s.items.Find(ctx, &domain.CartItem{CartID: cart.ID})
	if err != nil {
		return nil, err
	}

	view := &domain.View{Cart: cart, Items: make([]domain.CartItem, 0, len(items))}
	for _, item := range items {
		view.Items = append(view.Items, *item)
		view.Total += item.Price * int64(item.Quantity)
	}
	return view, nil
}
