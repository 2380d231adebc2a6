package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	resp, err := s.paymentSvc.HandleWebhook(c.Request.Context(), strings.TrimSpace(c.Param("provider")), body, signature)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	actor := currentActor(c)
	customerID := actor.CustomerID
	if actor.Admin {
		if raw := strings.TrimSpace(c.Query("customer_id")); raw != "" {
			id, err := parseSnowflake(raw)
			if err != nil {
				AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
				return
			}
			customerID = id
		}
	}

	resp, err := s.paymentSvc.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayment(c *gin.Context) {
	resp, err := s.paymentSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
