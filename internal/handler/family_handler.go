package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-site-api/internal/service"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/response"
)

// FamilyHandler wires parent and student record endpoints.
type FamilyHandler struct {
	service *service.FamilyService
}

// NewFamilyHandler creates a new handler.
func NewFamilyHandler(svc *service.FamilyService) *FamilyHandler {
	return &FamilyHandler{service: svc}
}

// ListParents returns all parent records.
func (h *FamilyHandler) ListParents(c *gin.Context) {
	parents, err := h.service.ListParents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parents, nil)
}

// GetParent returns one parent record.
func (h *FamilyHandler) GetParent(c *gin.Context) {
	parent, err := h.service.GetParent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parent, nil)
}

// CreateParent registers a parent contact.
func (h *FamilyHandler) CreateParent(c *gin.Context) {
	var req service.ParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid parent payload"))
		return
	}

	parent, err := h.service.CreateParent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, parent)
}

// UpdateParent rewrites a parent record.
func (h *FamilyHandler) UpdateParent(c *gin.Context) {
	var req service.ParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid parent payload"))
		return
	}

	parent, err := h.service.UpdateParent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parent, nil)
}

// DeleteParent removes a parent and their linked students.
func (h *FamilyHandler) DeleteParent(c *gin.Context) {
	if err := h.service.DeleteParent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Students lists the students linked to one parent.
func (h *FamilyHandler) Students(c *gin.Context) {
	students, err := h.service.Students(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// AddStudent links a student to a parent.
func (h *FamilyHandler) AddStudent(c *gin.Context) {
	var req service.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}

	student, err := h.service.AddStudent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// UpdateStudent rewrites a student linked to the parent in the path.
func (h *FamilyHandler) UpdateStudent(c *gin.Context) {
	var req service.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}

	student, err := h.service.UpdateStudent(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// RemoveStudent unlinks and deletes a student record.
func (h *FamilyHandler) RemoveStudent(c *gin.Context) {
	if err := h.service.RemoveStudent(c.Request.Context(), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
