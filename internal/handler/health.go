package handler

import (
	"dapp-core/internal/handler/response"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports that the process is up. It does not touch the wallet.
func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"version": "1.0.0",
		"service": "dapp-server",
	})
}
