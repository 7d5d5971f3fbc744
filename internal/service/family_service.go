package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
)

type familyRepository interface {
	ListParents(ctx context.Context) ([]models.Parent, error)
	FindParentByID(ctx context.Context, id string) (*models.Parent, error)
	CreateParent(ctx context.Context, p *models.Parent) error
	UpdateParent(ctx context.Context, p *models.Parent) error
	DeleteParent(ctx context.Context, id string) error
	ListStudentsByParent(ctx context.Context, parentID string) ([]models.Student, error)
	CreateStudent(ctx context.Context, s *models.Student) error
	UpdateStudent(ctx context.Context, s *models.Student) error
	DeleteStudent(ctx context.Context, id string) error
}

// ParentRequest is the admin payload for newsletter recipients.
type ParentRequest struct {
	FullName string  `json:"full_name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone"`
	Active   *bool   `json:"active"`
}

// StudentRequest links a student (and its grade level) to a parent.
type StudentRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	GradeLevel string `json:"grade_level" validate:"required"`
	Active     *bool  `json:"active"`
}

// FamilyService manages the parent/student records behind newsletter
// audience targeting.
type FamilyService struct {
	repo      familyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFamilyService constructs a FamilyService.
func NewFamilyService(repo familyRepository, validate *validator.Validate, logger *zap.Logger) *FamilyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyService{repo: repo, validator: validate, logger: logger}
}

// ListParents returns all parents.
func (s *FamilyService) ListParents(ctx context.Context) ([]models.Parent, error) {
	parents, err := s.repo.ListParents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parents")
	}
	if parents == nil {
		parents = []models.Parent{}
	}
	return parents, nil
}

// GetParent returns one parent.
func (s *FamilyService) GetParent(ctx context.Context, id string) (*models.Parent, error) {
	parent, err := s.repo.FindParentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	return parent, nil
}

// CreateParent adds a parent record.
func (s *FamilyService) CreateParent(ctx context.Context, req ParentRequest) (*models.Parent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	parent := &models.Parent{
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    req.Phone,
		Active:   active,
	}
	if err := s.repo.CreateParent(ctx, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create parent")
	}
	return parent, nil
}

// UpdateParent rewrites a parent record.
func (s *FamilyService) UpdateParent(ctx context.Context, id string, req ParentRequest) (*models.Parent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}

	parent, err := s.GetParent(ctx, id)
	if err != nil {
		return nil, err
	}

	parent.FullName = strings.TrimSpace(req.FullName)
	parent.Email = strings.ToLower(strings.TrimSpace(req.Email))
	parent.Phone = req.Phone
	if req.Active != nil {
		parent.Active = *req.Active
	}

	if err := s.repo.UpdateParent(ctx, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update parent")
	}
	return parent, nil
}

// DeleteParent removes a parent and its students.
func (s *FamilyService) DeleteParent(ctx context.Context, id string) error {
	if err := s.repo.DeleteParent(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete parent")
	}
	return nil
}

// Students returns a parent's students.
func (s *FamilyService) Students(ctx context.Context, parentID string) ([]models.Student, error) {
	if _, err := s.GetParent(ctx, parentID); err != nil {
		return nil, err
	}
	students, err := s.repo.ListStudentsByParent(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, nil
}

// AddStudent links a student to a parent.
func (s *FamilyService) AddStudent(ctx context.Context, parentID string, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.GetParent(ctx, parentID); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	student := &models.Student{
		ParentID:   parentID,
		FullName:   strings.TrimSpace(req.FullName),
		GradeLevel: strings.TrimSpace(req.GradeLevel),
		Active:     active,
	}
	if err := s.repo.CreateStudent(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// UpdateStudent rewrites a student record.
func (s *FamilyService) UpdateStudent(ctx context.Context, parentID, studentID string, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	students, err := s.Students(ctx, parentID)
	if err != nil {
		return nil, err
	}

	var student *models.Student
	for i := range students {
		if students[i].ID == studentID {
			student = &students[i]
			break
		}
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	student.FullName = strings.TrimSpace(req.FullName)
	student.GradeLevel = strings.TrimSpace(req.GradeLevel)
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.UpdateStudent(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// RemoveStudent unlinks a student.
func (s *FamilyService) RemoveStudent(ctx context.Context, studentID string) error {
	if err := s.repo.DeleteStudent(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}
