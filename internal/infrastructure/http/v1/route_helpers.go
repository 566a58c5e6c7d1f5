package v1

import (
	"github.com/gin-gonic/gin"

	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/infrastructure/http/v1/middleware"
)

// Role guards. Administrators pass all of them.
var (
	adminOnly    = middleware.RequireRole(appctx.RoleAdmin)
	approverOnly = middleware.RequireRole(appctx.RoleApprover)
	anyRole      = middleware.RequireRole(appctx.RoleWorker, appctx.RoleApprover)
)

// readRoutes registers GET handlers open to every authenticated role.
func readRoutes(group *gin.RouterGroup, routes map[string]gin.HandlerFunc) {
	for path, h := range routes {
		group.GET(path, anyRole, h)
	}
}
