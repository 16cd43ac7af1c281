package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	leaderboardService "github.com/vmquan2200/edufinai/internal/modules/leaderboard/service"
	"github.com/vmquan2200/edufinai/pkg/response"
)

type LeaderboardHandler struct {
	service leaderboardService.LeaderboardService
}

func NewLeaderboardHandler(service leaderboardService.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

func (h *LeaderboardHandler) GetTop(c *gin.Context) {
	scope := c.DefaultQuery("scope", leaderboardService.ScopeAllTime)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	entries, err := h.service.GetTop(c.Request.Context(), scope, limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "scope": scope})
}

func (h *LeaderboardHandler) GetMyRank(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	scope := c.DefaultQuery("scope", leaderboardService.ScopeAllTime)

	rank, err := h.service.GetMyRank(c.Request.Context(), scope, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rank})
}
