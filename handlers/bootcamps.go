package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kevinaaaquil/devcamper/apperror"
	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/query"
	"github.com/kevinaaaquil/devcamper/service"
	"github.com/kevinaaaquil/devcamper/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const photoURLExpiry = 15 * time.Minute

type BootcampStore interface {
	query.Source
	CreateBootcamp(ctx context.Context, b *models.Bootcamp) error
	BootcampByID(ctx context.Context, id primitive.ObjectID) (*models.Bootcamp, error)
	CountBootcampsByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error)
	UpdateBootcamp(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Bootcamp, error)
	SetBootcampPhoto(ctx context.Context, id primitive.ObjectID, key string) error
	BootcampsWithinRadius(ctx context.Context, lng, lat, miles float64) ([]models.Bootcamp, error)
	DeleteBootcamp(ctx context.Context, id primitive.ObjectID) (*models.Bootcamp, error)
}

// PhotoStore is satisfied by *service.S3Service.
type PhotoStore interface {
	Upload(ctx context.Context, prefix, originalFilename string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type BootcampsHandler struct {
	DB       BootcampStore
	Photos   PhotoStore // nil disables photo endpoints
	MaxBytes int64
}

type locationInput struct {
	Coordinates      []float64 `json:"coordinates" validate:"len=2"`
	FormattedAddress string    `json:"formattedAddress"`
	Street           string    `json:"street"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Zipcode          string    `json:"zipcode"`
	Country          string    `json:"country"`
}

func (l *locationInput) model() (*models.Location, error) {
	if l == nil {
		return nil, nil
	}
	lng, lat := l.Coordinates[0], l.Coordinates[1]
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return nil, apperror.BadRequest("location coordinates must be [longitude, latitude]")
	}
	return &models.Location{
		Type:             "Point",
		Coordinates:      []float64{lng, lat},
		FormattedAddress: l.FormattedAddress,
		Street:           l.Street,
		City:             l.City,
		State:            l.State,
		Zipcode:          l.Zipcode,
		Country:          l.Country,
	}, nil
}

type createBootcampRequest struct {
	Name          string         `json:"name" validate:"required,max=50"`
	Description   string         `json:"description" validate:"required,max=500"`
	Website       string         `json:"website" validate:"omitempty,url"`
	Phone         string         `json:"phone" validate:"omitempty,max=20"`
	Email         string         `json:"email" validate:"omitempty,email"`
	Address       string         `json:"address"`
	Location      *locationInput `json:"location" validate:"omitempty"`
	Careers       []string       `json:"careers" validate:"required,min=1,dive,career"`
	Housing       bool           `json:"housing"`
	JobAssistance bool           `json:"jobAssistance"`
	JobGuarantee  bool           `json:"jobGuarantee"`
	AcceptGi      bool           `json:"acceptGi"`
}

type updateBootcampRequest struct {
	Name          *string        `json:"name" validate:"omitempty,min=1,max=50"`
	Description   *string        `json:"description" validate:"omitempty,min=1,max=500"`
	Website       *string        `json:"website" validate:"omitempty,url"`
	Phone         *string        `json:"phone" validate:"omitempty,max=20"`
	Email         *string        `json:"email" validate:"omitempty,email"`
	Address       *string        `json:"address"`
	Location      *locationInput `json:"location" validate:"omitempty"`
	Careers       []string       `json:"careers" validate:"omitempty,min=1,dive,career"`
	Housing       *bool          `json:"housing"`
	JobAssistance *bool          `json:"jobAssistance"`
	JobGuarantee  *bool          `json:"jobGuarantee"`
	AcceptGi      *bool          `json:"acceptGi"`
}

func (req *updateBootcampRequest) fields() (bson.M, error) {
	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Website != nil {
		set["website"] = *req.Website
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Address != nil {
		set["address"] = *req.Address
	}
	if req.Location != nil {
		loc, err := req.Location.model()
		if err != nil {
			return nil, err
		}
		set["location"] = loc
	}
	if req.Careers != nil {
		set["careers"] = req.Careers
	}
	if req.Housing != nil {
		set["housing"] = *req.Housing
	}
	if req.JobAssistance != nil {
		set["jobAssistance"] = *req.JobAssistance
	}
	if req.JobGuarantee != nil {
		set["jobGuarantee"] = *req.JobGuarantee
	}
	if req.AcceptGi != nil {
		set["acceptGi"] = *req.AcceptGi
	}
	return set, nil
}

func bootcampNotFound(id primitive.ObjectID) error {
	return apperror.NotFound("Bootcamp not found with id of " + id.Hex())
}

// load fetches the bootcamp named by the id path parameter.
func (h *BootcampsHandler) load(r *http.Request, param string) (*models.Bootcamp, error) {
	id, err := objectID(r, param)
	if err != nil {
		return nil, err
	}
	b, err := h.DB.BootcampByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, bootcampNotFound(id)
	}
	return b, nil
}

// loadOwned is load plus the owner-or-admin check.
func (h *BootcampsHandler) loadOwned(r *http.Request) (*models.Bootcamp, error) {
	b, err := h.load(r, "id")
	if err != nil {
		return nil, err
	}
	if err := service.CanModify(currentUser(r), b.User); err != nil {
		return nil, err
	}
	return b, nil
}

func (h *BootcampsHandler) List(w http.ResponseWriter, r *http.Request) {
	env, err := query.Run(r.Context(), h.DB, store.BootcampResource, r.URL.Query())
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *BootcampsHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.load(r, "id")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, b)
}

// WithinRadius serves ?lat=&lng=&distance= with distance in miles.
func (h *BootcampsHandler) WithinRadius(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	dist, errDist := strconv.ParseFloat(q.Get("distance"), 64)
	if errLat != nil || errLng != nil || errDist != nil {
		apperror.Write(w, r, apperror.BadRequest("Please provide numeric lat, lng and distance"))
		return
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || dist < 0 {
		apperror.Write(w, r, apperror.BadRequest("lat, lng or distance out of range"))
		return
	}
	bootcamps, err := h.DB.BootcampsWithinRadius(r.Context(), lng, lat, dist)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeList(w, bootcamps)
}

func (h *BootcampsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req createBootcampRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	if user.Role != models.RoleAdmin {
		n, err := h.DB.CountBootcampsByOwner(r.Context(), user.ID)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		if n > 0 {
			apperror.Write(w, r, apperror.BadRequest(fmt.Sprintf("The user with ID %s has already published a bootcamp", user.ID.Hex())))
			return
		}
	}
	loc, err := req.Location.model()
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	b := &models.Bootcamp{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Website:       req.Website,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		Location:      loc,
		Careers:       req.Careers,
		Housing:       req.Housing,
		JobAssistance: req.JobAssistance,
		JobGuarantee:  req.JobGuarantee,
		AcceptGi:      req.AcceptGi,
		User:          user.ID,
	}
	if err := h.DB.CreateBootcamp(r.Context(), b); err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, b)
}

func (h *BootcampsHandler) Update(w http.ResponseWriter, r *http.Request) {
	b, err := h.loadOwned(r)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	var req updateBootcampRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	updated, err := h.DB.UpdateBootcamp(r.Context(), b.ID, fields)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if updated == nil {
		apperror.Write(w, r, bootcampNotFound(b.ID))
		return
	}
	writeData(w, http.StatusOK, updated)
}

// Delete removes the bootcamp, its courses and reviews, and its stored photo.
func (h *BootcampsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	b, err := h.loadOwned(r)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	deleted, err := h.DB.DeleteBootcamp(r.Context(), b.ID)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if deleted == nil {
		apperror.Write(w, r, bootcampNotFound(b.ID))
		return
	}
	h.dropPhoto(r.Context(), deleted.Photo)
	writeData(w, http.StatusOK, struct{}{})
}

func (h *BootcampsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	b, err := h.loadOwned(r)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if h.Photos == nil {
		apperror.Write(w, r, apperror.ServerError("Photo uploads are not configured", nil))
		return
	}
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes+(1<<16))
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		apperror.Write(w, r, apperror.BadRequest(fmt.Sprintf("Please upload an image less than %d bytes", h.MaxBytes)))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apperror.Write(w, r, apperror.BadRequest("Please upload a file"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		apperror.Write(w, r, apperror.BadRequest("Please upload an image file"))
		return
	}
	if h.MaxBytes > 0 && header.Size > h.MaxBytes {
		apperror.Write(w, r, apperror.BadRequest(fmt.Sprintf("Please upload an image less than %d bytes", h.MaxBytes)))
		return
	}

	key, err := h.Photos.Upload(r.Context(), "bootcamps/"+b.ID.Hex(), header.Filename, file, contentType)
	if err != nil {
		apperror.Write(w, r, apperror.ServerError("Problem with file upload", err))
		return
	}
	if err := h.DB.SetBootcampPhoto(r.Context(), b.ID, key); err != nil {
		h.dropPhoto(r.Context(), key)
		apperror.Write(w, r, err)
		return
	}
	h.dropPhoto(r.Context(), b.Photo)
	writeData(w, http.StatusOK, key)
}

type photoURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

func (h *BootcampsHandler) PhotoURL(w http.ResponseWriter, r *http.Request) {
	b, err := h.load(r, "id")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if b.Photo == "" || b.Photo == models.DefaultPhoto {
		apperror.Write(w, r, apperror.NotFound("Bootcamp has no photo"))
		return
	}
	if h.Photos == nil {
		apperror.Write(w, r, apperror.ServerError("Photo storage is not configured", nil))
		return
	}
	url, err := h.Photos.PresignedGetURL(r.Context(), b.Photo, photoURLExpiry)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, photoURL{URL: url, ExpiresIn: int(photoURLExpiry.Seconds())})
}

// dropPhoto removes a stored photo. Failures leave an orphaned object and are only logged.
func (h *BootcampsHandler) dropPhoto(ctx context.Context, key string) {
	if h.Photos == nil || key == "" || key == models.DefaultPhoto {
		return
	}
	if err := h.Photos.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "photo delete failed", "key", key, "err", err)
	}
}
