package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListRewards(c *gin.Context) {
	resp, err := s.rewardSvc.ListByCustomer(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RewardBalance(c *gin.Context) {
	balance, err := s.rewardSvc.Balance(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"balance": balance}})
}

func (s *Server) RedeemRewards(c *gin.Context) {
	credited, err := s.rewardSvc.Redeem(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"credited": credited}})
}
