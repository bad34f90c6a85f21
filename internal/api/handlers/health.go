package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"looprec/backend/internal/recorder"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"status":    "healthy",
			"sessions":  len(recorder.Manager.IDs()),
			"timestamp": time.Now().Unix(),
		},
	})
}
