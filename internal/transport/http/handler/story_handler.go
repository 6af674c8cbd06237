package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyverse/internal/domain"
	"storyverse/internal/service"
	httpez "storyverse/internal/transport/http/ez"
	"storyverse/pkg/pagination"
)

type StoryHandler struct {
	svc      *service.StoryService
	auth     gin.HandlerFunc
	log      *zap.Logger
	defLimit int
	maxLimit int
}

// NewStoryHandler authMW 为鉴权中间件（middleware.Auth）
func NewStoryHandler(svc *service.StoryService, authMW gin.HandlerFunc, l *zap.Logger, defLimit, maxLimit int) *StoryHandler {
	return &StoryHandler{svc: svc, auth: authMW, log: l, defLimit: defLimit, maxLimit: maxLimit}
}

type storyIn struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type patchIn struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type contentIn struct {
	Content string `json:"content"`
}

type pageQ struct {
	Page  string `form:"page"`
	Limit string `form:"limit"`
}

type listOut struct {
	Stories    []domain.Story      `json:"stories"`
	Pagination pagination.PageInfo `json:"pagination"`
}

type messageOut struct {
	Message string `json:"message"`
}

func (h *StoryHandler) MountAPI(api *gin.RouterGroup) {
	pub := httpez.New(api, h.log)
	authed := httpez.New(api.Group("", h.auth), h.log)

	httpez.RegisterAction(pub, httpez.Action[pageQ, listOut]{
		Method: http.MethodGet,
		Path:   "/stories",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, in *pageQ) (listOut, error) {
			page, limit := pagination.Parse(in.Page, in.Limit, h.defLimit, h.maxLimit)
			stories, info, err := h.svc.ListPublic(c.Request.Context(), page, limit)
			return listOut{Stories: stories, Pagination: info}, err
		},
	})

	httpez.RegisterAction(pub, httpez.Action[struct{}, *domain.Story]{
		Method: http.MethodGet,
		Path:   "/stories/:id",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Story, error) {
			return h.svc.Get(c.Request.Context(), c.Param("id"))
		},
	})

	httpez.RegisterAction(authed, httpez.Action[pageQ, listOut]{
		Method: http.MethodGet,
		Path:   "/stories/user/mystories",
		Binder: httpez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *pageQ) (listOut, error) {
			page, limit := pagination.Parse(in.Page, in.Limit, h.defLimit, h.maxLimit)
			stories, info, err := h.svc.ListByAuthor(c.Request.Context(), httpez.UserID(c), page, limit)
			return listOut{Stories: stories, Pagination: info}, err
		},
	})

	httpez.RegisterAction(authed, httpez.Action[storyIn, *domain.Story]{
		Method: http.MethodPost,
		Path:   "/stories",
		Binder: httpez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *storyIn) (*domain.Story, error) {
			return h.svc.Create(c.Request.Context(), httpez.UserID(c), in.Title, in.Content)
		},
	})

	httpez.RegisterAction(authed, httpez.Action[patchIn, *domain.Story]{
		Method: http.MethodPut,
		Path:   "/stories/:id",
		Binder: httpez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *patchIn) (*domain.Story, error) {
			return h.svc.Update(c.Request.Context(), c.Param("id"), httpez.UserID(c),
				domain.StoryPatch{Title: in.Title, Content: in.Content})
		},
	})

	httpez.RegisterAction(authed, httpez.Action[struct{}, messageOut]{
		Method: http.MethodDelete,
		Path:   "/stories/:id",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (messageOut, error) {
			if err := h.svc.Delete(c.Request.Context(), c.Param("id"), httpez.UserID(c)); err != nil {
				return messageOut{}, err
			}
			return messageOut{Message: "Story removed"}, nil
		},
	})

	httpez.RegisterAction(authed, httpez.Action[contentIn, *domain.Story]{
		Method: http.MethodPost,
		Path:   "/stories/:id/contribute",
		Binder: httpez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *contentIn) (*domain.Story, error) {
			return h.svc.Contribute(c.Request.Context(), c.Param("id"), httpez.UserID(c), in.Content)
		},
	})

	httpez.RegisterAction(authed, httpez.Action[struct{}, *domain.Story]{
		Method: http.MethodDelete,
		Path:   "/stories/:id/contributions/:cid",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Story, error) {
			return h.svc.RemoveContribution(c.Request.Context(), c.Param("id"), c.Param("cid"), httpez.UserID(c))
		},
	})

	httpez.RegisterAction(authed, httpez.Action[struct{}, *domain.Story]{
		Method: http.MethodPost,
		Path:   "/stories/:id/like",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Story, error) {
			return h.svc.ToggleLike(c.Request.Context(), c.Param("id"), httpez.UserID(c))
		},
	})

	httpez.RegisterAction(authed, httpez.Action[struct{}, *domain.Story]{
		Method: http.MethodPost,
		Path:   "/stories/:id/contributions/:cid/like",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Story, error) {
			return h.svc.ToggleContributionLike(c.Request.Context(), c.Param("id"), c.Param("cid"), httpez.UserID(c))
		},
	})

	httpez.RegisterAction(authed, httpez.Action[contentIn, *domain.Story]{
		Method: http.MethodPost,
		Path:   "/stories/:id/comments",
		Binder: httpez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *contentIn) (*domain.Story, error) {
			return h.svc.Comment(c.Request.Context(), c.Param("id"), httpez.UserID(c), in.Content)
		},
	})

	httpez.RegisterAction(authed, httpez.Action[struct{}, *domain.Story]{
		Method: http.MethodDelete,
		Path:   "/stories/:id/comments/:cid",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Story, error) {
			return h.svc.DeleteComment(c.Request.Context(), c.Param("id"), c.Param("cid"), httpez.UserID(c))
		},
	})
}
