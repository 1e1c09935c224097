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

type ReviewStore interface {
	query.Source
	BootcampByID(ctx context.Context, id primitive.ObjectID) (*models.Bootcamp, error)
	CreateReview(ctx context.Context, rv *models.Review) error
	ReviewByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	ReviewDetail(ctx context.Context, id primitive.ObjectID) (bson.M, error)
	ReviewsByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) ([]models.Review, error)
	UpdateReview(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Review, error)
	DeleteReview(ctx context.Context, id primitive.ObjectID) error
	UpdateAverageRating(ctx context.Context, bootcampID primitive.ObjectID) error
}

type ReviewsHandler struct {
	DB ReviewStore
}

type createReviewRequest struct {
	Title  string `json:"title" validate:"required,max=100"`
	Text   string `json:"text" validate:"required"`
	Rating int    `json:"rating" validate:"required,min=1,max=10"`
}

type updateReviewRequest struct {
	Title  *string `json:"title" validate:"omitempty,min=1,max=100"`
	Text   *string `json:"text" validate:"omitempty,min=1"`
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=10"`
}

func (req *updateReviewRequest) fields() bson.M {
	set := bson.M{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Text != nil {
		set["text"] = *req.Text
	}
	if req.Rating != nil {
		set["rating"] = *req.Rating
	}
	return set
}

func reviewNotFound(id primitive.ObjectID) error {
	return apperror.NotFound("No review found with the id of " + id.Hex())
}

func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	env, err := query.Run(r.Context(), h.DB, store.ReviewResource, r.URL.Query())
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *ReviewsHandler) ListForBootcamp(w http.ResponseWriter, r *http.Request) {
	bootcampID, err := objectID(r, "bootcampId")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	reviews, err := h.DB.ReviewsByBootcamp(r.Context(), bootcampID)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeList(w, reviews)
}

func (h *ReviewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r, "id")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	review, err := h.DB.ReviewDetail(r.Context(), id)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if review == nil {
		apperror.Write(w, r, reviewNotFound(id))
		return
	}
	writeData(w, http.StatusOK, review)
}

// Create records the caller's review of a bootcamp. A second review by the same user is a conflict.
func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	bootcampID, err := objectID(r, "bootcampId")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	var req createReviewRequest
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
	review := &models.Review{
		Title:    req.Title,
		Text:     req.Text,
		Rating:   req.Rating,
		Bootcamp: bootcamp.ID,
		User:     user.ID,
	}
	if err := h.DB.CreateReview(r.Context(), review); err != nil {
		apperror.Write(w, r, err)
		return
	}
	h.recompute(r.Context(), bootcamp.ID)
	writeData(w, http.StatusCreated, review)
}

func (h *ReviewsHandler) loadOwned(r *http.Request) (*models.Review, error) {
	id, err := objectID(r, "id")
	if err != nil {
		return nil, err
	}
	review, err := h.DB.ReviewByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, reviewNotFound(id)
	}
	if err := service.CanModify(currentUser(r), review.User); err != nil {
		return nil, err
	}
	return review, nil
}

func (h *ReviewsHandler) Update(w http.ResponseWriter, r *http.Request) {
	review, err := h.loadOwned(r)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	var req updateReviewRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	updated, err := h.DB.UpdateReview(r.Context(), review.ID, req.fields())
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if updated == nil {
		apperror.Write(w, r, reviewNotFound(review.ID))
		return
	}
	h.recompute(r.Context(), review.Bootcamp)
	writeData(w, http.StatusOK, updated)
}

func (h *ReviewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	review, err := h.loadOwned(r)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if err := h.DB.DeleteReview(r.Context(), review.ID); err != nil {
		apperror.Write(w, r, err)
		return
	}
	h.recompute(r.Context(), review.Bootcamp)
	writeData(w, http.StatusOK, struct{}{})
}

func (h *ReviewsHandler) recompute(ctx context.Context, bootcampID primitive.ObjectID) {
	if err := h.DB.UpdateAverageRating(ctx, bootcampID); err != nil {
		slog.ErrorContext(ctx, "average rating update failed", "bootcamp", bootcampID.Hex(), "err", err)
	}
}
