// Package gateway holds the card processor client. The sandbox implementation
// approves every charge; a real processor replaces it behind the same interface.
package gateway

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/mealora/mealora/internal/payment/domain"
)

type Sandbox struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewSandbox(log *zap.Logger, genID *snowflake.Node) domain.Gateway {
	return &Sandbox{log: log.Named("payment.gateway"), genID: genID}
}

func (g *Sandbox) Name() string { return "sandbox" }

func (g *Sandbox) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	txn := "sbx_" + g.genID.Generate().String()
	g.log.Info("sandbox charge approved",
		zap.String("customer_id", req.CustomerID.String()),
		zap.Int64("amount", req.Amount),
		zap.String("transaction_id", txn),
	)
	return &domain.ChargeResult{TransactionID: txn, Succeeded: true}, nil
}
