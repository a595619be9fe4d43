package handlers

import (
	"github.com/gin-gonic/gin"

	"lbserver/middlewares"
	"lbserver/models"
)

func sessionClaims(c *gin.Context) *models.SessionClaims {
	return middlewares.SessionFromContext(c)
}
