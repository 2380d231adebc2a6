package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/delivery/domain"
)

func setup(t *testing.T) (*Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Partner{}, &domain.Delivery{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	svc := &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	return svc, node
}

func makePartner(t *testing.T, svc *Service, node *snowflake.Node, name string) *domain.Partner {
	t.Helper()
	partner, err := svc.CreatePartner(context.Background(), domain.CreatePartnerRequest{
		CustomerID: node.Generate().String(),
		Name:       name,
	})
	require.NoError(t, err)
	return partner
}

func TestAssignConflictsWhenPartnerBusy(t *testing.T) {
	svc, node := setup(t)
	ctx := context.Background()

	partner := makePartner(t, svc, node, "Ravi")
	first, err := svc.CreateDelivery(ctx, node.Generate(), node.Generate())
	require.NoError(t, err)
	second, err := svc.CreateDelivery(ctx, node.Generate(), node.Generate())
	require.NoError(t, err)

	assigned, err := svc.Assign(ctx, first.ID.String(), partner.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryAssigned, assigned.Status)
	assert.NotNil(t, assigned.AssignedAt)

	got, err := svc.GetPartner(ctx, partner.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerBusy, got.CurrentStatus)

	_, err = svc.Assign(ctx, second.ID.String(), partner.ID.String())
	require.ErrorIs(t, err, domain.ErrPartnerBusy)
}

func TestAutoAssignPicksFirstAvailable(t *testing.T) {
	svc, node := setup(t)
	ctx := context.Background()

	busy := makePartner(t, svc, node, "Asha")
	free := makePartner(t, svc, node, "Vikram")

	blocker, err := svc.CreateDelivery(ctx, node.Generate(), node.Generate())
	require.NoError(t, err)
	_, err = svc.Assign(ctx, blocker.ID.String(), busy.ID.String())
	require.NoError(t, err)

	delivery, err := svc.CreateDelivery(ctx, node.Generate(), node.Generate())
	require.NoError(t, err)
	assigned, err := svc.AutoAssign(ctx, delivery.ID.String())
	require.NoError(t, err)
	assert.Equal(t, free.ID, assigned.PartnerID)
}

func TestAutoAssignFailsWhenNobodyFree(t *testing.T) {
	svc, node := setup(t)
	ctx := context.Background()

	delivery, err := svc.CreateDelivery(ctx, node.Generate(), node.Generate())
	require.NoError(t, err)
	_, err = svc.AutoAssign(ctx, delivery.ID.String())
	require.ErrorIs(t, err, domain.ErrNoPartnerFree)
}

func TestDeliveredFreesPartnerAndRecounts(t *testing.T) {
	svc, node := setup(t)
	ctx := context.Background()

	partner := makePartner(t, svc, node, "Ravi")
	delivery, err := svc.CreateDelivery(ctx, node.Generate(), node.Generate())
	require.NoError(t, err)
	_, err = svc.Assign(ctx, delivery.ID.String(), partner.ID.String())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, delivery.ID.String(), domain.DeliveryPickedUp)
	require.NoError(t, err)
	got, err := svc.GetPartner(ctx, partner.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerBusy, got.CurrentStatus)

	updated, err := svc.UpdateStatus(ctx, delivery.ID.String(), domain.DeliveryDelivered)
	require.NoError(t, err)
	assert.NotNil(t, updated.DeliveredAt)

	got, err = svc.GetPartner(ctx, partner.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerAvailable, got.CurrentStatus)
	assert.Equal(t, 1, got.TotalDeliveries)
	assert.Equal(t, 1, got.CompletedDeliveries)

	// Replaying the terminal transition must not change anything.
	_, err = svc.UpdateStatus(ctx, delivery.ID.String(), domain.DeliveryDelivered)
	require.NoError(t, err)
	got, err = svc.GetPartner(ctx, partner.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, got.CompletedDeliveries)
}
