package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/checklist-gin/internal/auth"
	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/service"
)

// RoleController 角色权限控制器
type RoleController struct {
	roleService    service.RoleService
	controlService service.ControlService
}

// NewRoleController 创建角色权限控制器
func NewRoleController(roleService service.RoleService, controlService service.ControlService) *RoleController {
	return &RoleController{
		roleService:    roleService,
		controlService: controlService,
	}
}

// ReplaceAuthoritiesRequest 替换复核权限边请求
type ReplaceAuthoritiesRequest struct {
	Authorities []authority.Authority `json:"authorities"`
}

// Resolve 当前用户在某类权限下可复核的角色
// GET /api/v1/roles/resolve?kind=view|score|approve
func (c *RoleController) Resolve(ctx *gin.Context) {
	kind, err := authority.ParseKind(ctx.DefaultQuery("kind", string(authority.KindView)))
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid kind", err.Error())
		return
	}

	resolved, err := c.controlService.ResolveRoles(ctx.Request.Context(), auth.UserID(ctx), kind)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, resolved)
}

// ReplaceAuthorities 替换角色的复核权限边
// PUT /api/v1/roles/:id/authorities
func (c *RoleController) ReplaceAuthorities(ctx *gin.Context) {
	var req ReplaceAuthoritiesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	roleID, ok := pathID(ctx)
	if !ok {
		return
	}
	if err := c.roleService.ReplaceAuthorities(ctx.Request.Context(), auth.UserID(ctx), roleID, req.Authorities); err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, gin.H{"role_id": roleID, "authorities": req.Authorities})
}
