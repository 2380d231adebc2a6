package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	dailyorderdomain "github.com/mealora/mealora/internal/dailyorder/domain"
)

func (s *Server) GetOrder(c *gin.Context) {
	order, meals, err := s.orderSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actor := currentActor(c)
	if !actor.Admin && order.CustomerID != actor.CustomerID {
		AbortWithError(c, ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"order": order, "meals": meals}})
}

func (s *Server) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	actor := currentActor(c)

	if actor.Admin {
		if raw := strings.TrimSpace(c.Query("subscription_id")); raw != "" {
			id, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, newValidationError("subscription_id", "invalid_subscription_id", "invalid subscription_id"))
				return
			}
			resp, err := s.orderSvc.ListBySubscription(ctx, id)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": resp})
			return
		}
		if raw := strings.TrimSpace(c.Query("date")); raw != "" {
			date, err := parseDate(raw)
			if err != nil {
				AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
				return
			}
			resp, err := s.orderSvc.ListByDate(ctx, date)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": resp})
			return
		}
	}

	resp, err := s.orderSvc.ListByCustomer(ctx, actor.CustomerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteOrder(c *gin.Context) {
	if err := s.orderSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateMealStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.UpdateMealStatus(c.Request.Context(), strings.TrimSpace(c.Param("id")), dailyorderdomain.MealStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BulkUpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.BulkUpdateStatus(c.Request.Context(), strings.TrimSpace(c.Param("id")), dailyorderdomain.MealStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
