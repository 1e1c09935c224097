package handlers

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kevinaaaquil/devcamper/apperror"
	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// memStore is an in-memory Store and service.UserStore for handler tests.
type memStore struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*models.User
	bootcamps map[primitive.ObjectID]*models.Bootcamp
	courses   map[primitive.ObjectID]*models.Course
	reviews   map[primitive.ObjectID]*models.Review

	costUpdates   []primitive.ObjectID
	ratingUpdates []primitive.ObjectID
	pipelines     map[string]mongo.Pipeline
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[primitive.ObjectID]*models.User{},
		bootcamps: map[primitive.ObjectID]*models.Bootcamp{},
		courses:   map[primitive.ObjectID]*models.Course{},
		reviews:   map[primitive.ObjectID]*models.Review{},
		pipelines: map[string]mongo.Pipeline{},
	}
}

func toM(v any) bson.M {
	raw, err := bson.Marshal(v)
	if err != nil {
		panic(err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		panic(err)
	}
	return m
}

func (s *memStore) CountAll(_ context.Context, collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch collection {
	case store.UsersCollection:
		return int64(len(s.users)), nil
	case store.BootcampsCollection:
		return int64(len(s.bootcamps)), nil
	case store.CoursesCollection:
		return int64(len(s.courses)), nil
	case store.ReviewsCollection:
		return int64(len(s.reviews)), nil
	}
	return 0, nil
}

// Aggregate ignores the pipeline apart from recording it.
func (s *memStore) Aggregate(_ context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines[collection] = pipeline
	var out []bson.M
	switch collection {
	case store.UsersCollection:
		for _, u := range s.users {
			m := toM(u)
			for _, f := range models.UserHiddenFields {
				delete(m, f)
			}
			out = append(out, m)
		}
	case store.BootcampsCollection:
		for _, b := range s.bootcamps {
			out = append(out, toM(b))
		}
	case store.CoursesCollection:
		for _, c := range s.courses {
			out = append(out, toM(c))
		}
	case store.ReviewsCollection:
		for _, rv := range s.reviews {
			out = append(out, toM(rv))
		}
	}
	return out, nil
}

func (s *memStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) UserByResetToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ResetPasswordToken == hash && u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = primitive.NewObjectID()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memStore) UpdateUser(_ context.Context, id primitive.ObjectID, upd store.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = strings.ToLower(*upd.Email)
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) SaveCredentials(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[user.ID]; ok {
		u.Password = user.Password
		u.ResetPasswordToken = user.ResetPasswordToken
		u.ResetPasswordExpire = user.ResetPasswordExpire
	}
	return nil
}

func (s *memStore) DeleteUser(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	delete(s.users, id)
	return ok, nil
}

func (s *memStore) CreateBootcamp(_ context.Context, b *models.Bootcamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.bootcamps {
		if other.Name == b.Name {
			return &apperror.Error{Kind: apperror.KindConflict, Message: "Duplicate field value entered"}
		}
	}
	b.ID = primitive.NewObjectID()
	b.Slug = models.Slugify(b.Name)
	if b.Photo == "" {
		b.Photo = models.DefaultPhoto
	}
	cp := *b
	s.bootcamps[b.ID] = &cp
	return nil
}

func (s *memStore) BootcampByID(_ context.Context, id primitive.ObjectID) (*models.Bootcamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bootcamps[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) CountBootcampsByOwner(_ context.Context, owner primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.bootcamps {
		if b.User == owner {
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpdateBootcamp(_ context.Context, id primitive.ObjectID, fields bson.M) (*models.Bootcamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bootcamps[id]
	if !ok {
		return nil, nil
	}
	if name, ok := fields["name"].(string); ok {
		b.Name = name
		b.Slug = models.Slugify(name)
	}
	if desc, ok := fields["description"].(string); ok {
		b.Description = desc
	}
	if housing, ok := fields["housing"].(bool); ok {
		b.Housing = housing
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) SetBootcampPhoto(_ context.Context, id primitive.ObjectID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bootcamps[id]; ok {
		b.Photo = key
	}
	return nil
}

func (s *memStore) BootcampsWithinRadius(context.Context, float64, float64, float64) ([]models.Bootcamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Bootcamp{}
	for _, b := range s.bootcamps {
		out = append(out, *b)
	}
	return out, nil
}

func (s *memStore) DeleteBootcamp(_ context.Context, id primitive.ObjectID) (*models.Bootcamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bootcamps[id]
	if !ok {
		return nil, nil
	}
	delete(s.bootcamps, id)
	for cid, c := range s.courses {
		if c.Bootcamp == id {
			delete(s.courses, cid)
		}
	}
	for rid, rv := range s.reviews {
		if rv.Bootcamp == id {
			delete(s.reviews, rid)
		}
	}
	return b, nil
}

func (s *memStore) CreateCourse(_ context.Context, c *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = primitive.NewObjectID()
	cp := *c
	s.courses[c.ID] = &cp
	return nil
}

func (s *memStore) CourseByID(_ context.Context, id primitive.ObjectID) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) CourseDetail(_ context.Context, id primitive.ObjectID) (bson.M, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, nil
	}
	m := toM(c)
	if b, ok := s.bootcamps[c.Bootcamp]; ok {
		m["bootcamp"] = bson.M{"_id": b.ID, "name": b.Name, "description": b.Description}
	}
	return m, nil
}

func (s *memStore) CoursesByBootcamp(_ context.Context, bootcampID primitive.ObjectID) ([]models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Course{}
	for _, c := range s.courses {
		if c.Bootcamp == bootcampID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memStore) UpdateCourse(_ context.Context, id primitive.ObjectID, fields bson.M) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, nil
	}
	if v, ok := fields["tuition"].(float64); ok {
		c.Tuition = v
	}
	if v, ok := fields["title"].(string); ok {
		c.Title = v
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) DeleteCourse(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.courses, id)
	return nil
}

func (s *memStore) UpdateAverageCost(_ context.Context, bootcampID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costUpdates = append(s.costUpdates, bootcampID)
	var sum float64
	var n int
	for _, c := range s.courses {
		if c.Bootcamp == bootcampID {
			sum += c.Tuition
			n++
		}
	}
	if b, ok := s.bootcamps[bootcampID]; ok {
		b.AverageCost = nil
		if n > 0 {
			avg := store.RoundCost(sum / float64(n))
			b.AverageCost = &avg
		}
	}
	return nil
}

func (s *memStore) CreateReview(_ context.Context, rv *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.reviews {
		if other.Bootcamp == rv.Bootcamp && other.User == rv.User {
			return &apperror.Error{Kind: apperror.KindConflict, Message: "Duplicate field value entered"}
		}
	}
	rv.ID = primitive.NewObjectID()
	cp := *rv
	s.reviews[rv.ID] = &cp
	return nil
}

func (s *memStore) ReviewByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rv, ok := s.reviews[id]; ok {
		cp := *rv
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) ReviewDetail(_ context.Context, id primitive.ObjectID) (bson.M, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, nil
	}
	return toM(rv), nil
}

func (s *memStore) ReviewsByBootcamp(_ context.Context, bootcampID primitive.ObjectID) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Review{}
	for _, rv := range s.reviews {
		if rv.Bootcamp == bootcampID {
			out = append(out, *rv)
		}
	}
	return out, nil
}

func (s *memStore) UpdateReview(_ context.Context, id primitive.ObjectID, fields bson.M) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, nil
	}
	if v, ok := fields["rating"].(int); ok {
		rv.Rating = v
	}
	cp := *rv
	return &cp, nil
}

func (s *memStore) DeleteReview(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reviews, id)
	return nil
}

func (s *memStore) UpdateAverageRating(_ context.Context, bootcampID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratingUpdates = append(s.ratingUpdates, bootcampID)
	return nil
}

// memPhotos records uploads and deletes.
type memPhotos struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
}

func newMemPhotos() *memPhotos {
	return &memPhotos{uploaded: map[string][]byte{}}
}

func (p *memPhotos) Upload(_ context.Context, prefix, filename string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := prefix + "/" + primitive.NewObjectID().Hex() + filename[strings.LastIndex(filename, "."):]
	p.uploaded[key] = data
	return key, nil
}

func (p *memPhotos) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, key)
	delete(p.uploaded, key)
	return nil
}

func (p *memPhotos) PresignedGetURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://bucket.s3.amazonaws.com/" + key + "?X-Amz-Expires=" + expiry.String(), nil
}
