package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/service"
)

// GetCustomer returns the authenticated caller, or nil for guests.
func GetCustomer(c *gin.Context) *service.Customer {
	id := c.GetInt(ctxUserID)
	if id == 0 {
		return nil
	}
	return &service.Customer{
		UserID: id,
		Email:  c.GetString(ctxEmail),
		Admin:  c.GetString(ctxRole) == string(models.RoleAdmin),
	}
}
