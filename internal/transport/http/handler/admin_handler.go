package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyverse/internal/domain"
	"storyverse/internal/service"
	httpez "storyverse/internal/transport/http/ez"
)

// AdminHandler /admin/v1 下的管理接口；分组已走鉴权，管理员身份由 service 查库确认
type AdminHandler struct {
	svc *service.ModerationService
	log *zap.Logger
}

func NewAdminHandler(svc *service.ModerationService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: l}
}

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	ez := httpez.New(admin, h.log)

	httpez.RegisterAction(ez, httpez.Action[struct{}, []domain.User]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.User, error) {
			return h.svc.ListUsers(c.Request.Context(), httpez.UserID(c))
		},
	})

	h.userAction(ez, http.MethodDelete, "/users/:id", "User deleted successfully.", h.svc.DeleteUser)
	h.userAction(ez, http.MethodPut, "/users/:id/promote", "User promoted to admin successfully.", h.svc.Promote)
	h.userAction(ez, http.MethodPut, "/users/:id/demote", "Admin privileges removed successfully.", h.svc.Demote)
	h.userAction(ez, http.MethodPut, "/users/:id/ban", "User has been banned successfully.", h.svc.Ban)
	h.userAction(ez, http.MethodPut, "/users/:id/unban", "User has been unbanned successfully.", h.svc.Unban)

	httpez.RegisterAction(ez, httpez.Action[struct{}, []domain.Story]{
		Method: http.MethodGet,
		Path:   "/stories",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Story, error) {
			return h.svc.ListStories(c.Request.Context(), httpez.UserID(c))
		},
	})

	h.userAction(ez, http.MethodDelete, "/stories/:id", "Story deleted successfully.", h.svc.DeleteStory)
}

type moderationOp func(ctx context.Context, requesterID, targetID string) error

// userAction 形如 op(ctx, requester, :id) 的管理动作，成功返回 {message}
func (h *AdminHandler) userAction(ez httpez.EZ, method, path, msg string, op moderationOp) {
	httpez.RegisterAction(ez, httpez.Action[struct{}, messageOut]{
		Method: method,
		Path:   path,
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (messageOut, error) {
			if err := op(c.Request.Context(), httpez.UserID(c), c.Param("id")); err != nil {
				return messageOut{}, err
			}
			return messageOut{Message: msg}, nil
		},
	})
}
