package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-site-api/internal/service"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/response"
)

// SiteHandler wires the board roster and site settings endpoints.
type SiteHandler struct {
	service *service.SiteService
}

// NewSiteHandler creates a new handler.
func NewSiteHandler(svc *service.SiteService) *SiteHandler {
	return &SiteHandler{service: svc}
}

// ListBoard returns school board members ordered for display.
func (h *SiteHandler) ListBoard(c *gin.Context) {
	members, err := h.service.ListBoard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// CreateBoardMember adds a board member.
func (h *SiteHandler) CreateBoardMember(c *gin.Context) {
	var req service.BoardMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid board member payload"))
		return
	}

	member, err := h.service.CreateBoardMember(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// UpdateBoardMember rewrites a board member.
func (h *SiteHandler) UpdateBoardMember(c *gin.Context) {
	var req service.BoardMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid board member payload"))
		return
	}

	member, err := h.service.UpdateBoardMember(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// DeleteBoardMember removes a board member.
func (h *SiteHandler) DeleteBoardMember(c *gin.Context) {
	if err := h.service.DeleteBoardMember(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Settings returns all site settings.
func (h *SiteHandler) Settings(c *gin.Context) {
	settings, err := h.service.Settings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Setting returns one setting by key.
func (h *SiteHandler) Setting(c *gin.Context) {
	setting, err := h.service.Setting(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// PutSetting creates or replaces one setting.
func (h *SiteHandler) PutSetting(c *gin.Context) {
	var req service.SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid setting payload"))
		return
	}

	setting, err := h.service.PutSetting(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// DeleteSetting removes one setting by key.
func (h *SiteHandler) DeleteSetting(c *gin.Context) {
	if err := h.service.DeleteSetting(c.Request.Context(), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
