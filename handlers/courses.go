package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kevinaaaquil/devcamper/apperror"
	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/query"
	"github.com/kevinaaaquil/devcamper/service"
	"github.com/kevinaaaquil/devcamper/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CourseStore interface {
	query.Source
	BootcampByID(ctx context.Context, id primitive.ObjectID) (*models.Bootcamp, error)
	CreateCourse(ctx context.Context, c *models.Course) error
	CourseByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error)
	CourseDetail(ctx context.Context, id primitive.ObjectID) (bson.M, error)
	CoursesByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) ([]models.Course, error)
	UpdateCourse(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Course, error)
	DeleteCourse(ctx context.Context, id primitive.ObjectID) error
	UpdateAverageCost(ctx context.Context, bootcampID primitive.ObjectID) error
}

type CoursesHandler struct {
	DB CourseStore
}

type createCourseRequest struct {
	Title                string   `json:"title" validate:"required"`
	Description          string   `json:"description" validate:"required"`
	Weeks                string   `json:"weeks" validate:"required"`
	Tuition              *float64 `json:"tuition" validate:"required,gte=0"`
	MinimumSkill         string   `json:"minimumSkill" validate:"required,oneof=beginner intermediate advanced"`
	ScholarshipAvailable bool     `json:"scholarshipAvailable"`
}

type updateCourseRequest struct {
	Title                *string  `json:"title" validate:"omitempty,min=1"`
	Description          *string  `json:"description" validate:"omitempty,min=1"`
	Weeks                *string  `json:"weeks" validate:"omitempty,min=1"`
	Tuition              *float64 `json:"tuition" validate:"omitempty,gte=0"`
	MinimumSkill         *string  `json:"minimumSkill" validate:"omitempty,oneof=beginner intermediate advanced"`
	ScholarshipAvailable *bool    `json:"scholarshipAvailable"`
}

func (req *updateCourseRequest) fields() bson.M {
	set := bson.M{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Weeks != nil {
		set["weeks"] = *req.Weeks
	}
	if req.Tuition != nil {
		set["tuition"] = *req.Tuition
	}
	if req.MinimumSkill != nil {
		set["minimumSkill"] = *req.MinimumSkill
	}
	if req.ScholarshipAvailable != nil {
		set["scholarshipAvailable"] = *req.ScholarshipAvailable
	}
	return set
}

func courseNotFound(id primitive.ObjectID) error {
	return apperror.NotFound("No course with the id of " + id.Hex())
}

func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	env, err := query.Run(r.Context(), h.DB, store.CourseResource, r.URL.Query())
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *CoursesHandler) ListForBootcamp(w http.ResponseWriter, r *http.Request) {
	bootcampID, err := objectID(r, "bootcampId")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	courses, err := h.DB.CoursesByBootcamp(r.Context(), bootcampID)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeList(w, courses)
}

func (h *CoursesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r, "id")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	course, err := h.DB.CourseDetail(r.Context(), id)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if course == nil {
		apperror.Write(w, r, courseNotFound(id))
		return
	}
	writeData(w, http.StatusOK, course)
}

// Create adds a course to a bootcamp the caller owns.
func (h *CoursesHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	bootcampID, err := objectID(r, "bootcampId")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	var req createCourseRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	bootcamp, err := h.DB.BootcampByID(r.Context(), bootcampID)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if bootcamp == nil {
		apperror.Write(w, r, apperror.NotFound("No bootcamp with the id of "+bootcampID.Hex()))
		return
	}
	if err := service.CanModify(user, bootcamp.User); err != nil {
		apperror.Write(w, r, err)
		return
	}
	course := &models.Course{
		Title:                req.Title,
		Description:          req.Description,
		Weeks:                req.Weeks,
		Tuition:              *req.Tuition,
		MinimumSkill:         req.MinimumSkill,
		ScholarshipAvailable: req.ScholarshipAvailable,
		Bootcamp:             bootcamp.ID,
		User:                 user.ID,
	}
	if err := h.DB.CreateCourse(r.Context(), course); err != nil {
		apperror.Write(w, r, err)
		return
	}
	h.recompute(r.Context(), bootcamp.ID)
	writeData(w, http.StatusCreated, course)
}

func (h *CoursesHandler) loadOwned(r *http.Request) (*models.Course, error) {
	id, err := objectID(r, "id")
	if err != nil {
		return nil, err
	}
	course, err := h.DB.CourseByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, courseNotFound(id)
	}
	if err := service.CanModify(currentUser(r), course.User); err != nil {
		return nil, err
	}
	return course, nil
}

func (h *CoursesHandler) Update(w http.ResponseWriter, r *http.Request) {
	course, err := h.loadOwned(r)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	var req updateCourseRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	updated, err := h.DB.UpdateCourse(r.Context(), course.ID, req.fields())
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if updated == nil {
		apperror.Write(w, r, courseNotFound(course.ID))
		return
	}
	h.recompute(r.Context(), course.Bootcamp)
	writeData(w, http.StatusOK, updated)
}

func (h *CoursesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	course, err := h.loadOwned(r)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if err := h.DB.DeleteCourse(r.Context(), course.ID); err != nil {
		apperror.Write(w, r, err)
		return
	}
	h.recompute(r.Context(), course.Bootcamp)
	writeData(w, http.StatusOK, struct{}{})
}

// recompute refreshes the bootcamp's averageCost. The course write already succeeded, so failures are logged.
func (h *CoursesHandler) recompute(ctx context.Context, bootcampID primitive.ObjectID) {
	if err := h.DB.UpdateAverageCost(ctx, bootcampID); err != nil {
		slog.ErrorContext(ctx, "average cost update failed", "bootcamp", bootcampID.Hex(), "err", err)
	}
}
