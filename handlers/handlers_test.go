package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type outbox struct {
	mu   sync.Mutex
	sent []service.Message
}

func (o *outbox) Send(_ context.Context, m service.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

type testEnv struct {
	router http.Handler
	db     *memStore
	photos *memPhotos
	auth   *service.AuthService
	mail   *outbox
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newMemStore()
	photos := newMemPhotos()
	mail := &outbox{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := service.NewAuthService(db, mail, service.TokenConfig{
		Secret: []byte("handler-test-secret"),
		Expire: time.Hour,
	}, bcrypt.MinCost, logger)
	router := NewRouter(Deps{
		Auth:         auth,
		DB:           db,
		Photos:       photos,
		MaxUpload:    1024,
		CookieExpire: 24 * time.Hour,
	})
	return &testEnv{router: router, db: db, photos: photos, auth: auth, mail: mail}
}

// signup creates an account with any role and returns a bearer token for it.
func (e *testEnv) signup(t *testing.T, name, role string) (*models.User, string) {
	t.Helper()
	user, err := e.auth.CreateUser(context.Background(), service.RegisterInput{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "123456",
		Role:     role,
	})
	require.NoError(t, err)
	token, err := e.auth.IssueToken(user)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) createBootcamp(t *testing.T, token, name string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/bootcamps", token, map[string]any{
		"name":        name,
		"description": "A full stack bootcamp",
		"careers":     []string{"Web Development", "UI/UX"},
		"location":    map[string]any{"coordinates": []float64{-71.104, 42.350}, "city": "Boston"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	return data["_id"].(string)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestRegisterLoginAndMe(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name": "John", "email": "John@Example.com", "password": "123456", "role": "publisher",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	token := body["token"].(string)
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "john@example.com", "password": "123456",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token = decode(t, rec)["token"].(string)

	rec = e.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	me := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "john@example.com", me["email"])
	assert.Equal(t, "publisher", me["role"])
}

func TestRegisterRejections(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "Taken", models.RoleUser)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		msg    string
	}{
		{"missing name", map[string]any{"email": "a@b.co", "password": "123456"}, 400, "Please add name"},
		{"bad email", map[string]any{"name": "A", "email": "nope", "password": "123456"}, 400, "valid email"},
		{"short password", map[string]any{"name": "A", "email": "a@b.co", "password": "123"}, 400, "password"},
		{"admin role", map[string]any{"name": "A", "email": "a@b.co", "password": "123456", "role": "admin"}, 400, "admin"},
		{"duplicate", map[string]any{"name": "A", "email": "taken@example.com", "password": "123456"}, 409, "already"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["message"], tt.msg)
		})
	}
}

func TestLoginFailuresShareMessage(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "Jane", models.RoleUser)

	wrongPass := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "jane@example.com", "password": "nope12"})
	unknown := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "ghost@example.com", "password": "nope12"})
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, decode(t, wrongPass)["message"], decode(t, unknown)["message"])

	empty := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "none", cookies[0].Value)
	assert.WithinDuration(t, time.Now().Add(10*time.Second), cookies[0].Expires, 2*time.Second)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/v1/auth/me", "/api/v1/users"} {
		rec := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := e.do(t, http.MethodGet, "/api/v1/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateDetailsAndPassword(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.signup(t, "Mary", models.RoleUser)

	rec := e.do(t, http.MethodPut, "/api/v1/auth/updatedetails", token, map[string]any{"name": "Mary Ann"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Mary Ann", decode(t, rec)["data"].(map[string]any)["name"])

	rec = e.do(t, http.MethodPut, "/api/v1/auth/updatepassword", token, map[string]any{
		"currentPassword": "wrong1", "newPassword": "654321",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/v1/auth/updatepassword", token, map[string]any{
		"currentPassword": "123456", "newPassword": "654321",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["token"])

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "mary@example.com", "password": "654321"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "Rita", models.RoleUser)

	rec := e.do(t, http.MethodPost, "/api/v1/auth/forgotpassword", "", map[string]any{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/forgotpassword", "", map[string]any{"email": "rita@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Email sent", decode(t, rec)["data"])

	require.Len(t, e.mail.sent, 1)
	body := e.mail.sent[0].Body
	marker := "/api/v1/auth/resetpassword/"
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, body)
	assert.Contains(t, body[:i], "http://example.com")
	token := strings.Fields(body[i+len(marker):])[0]

	rec = e.do(t, http.MethodPut, "/api/v1/auth/resetpassword/"+token, "", map[string]any{"password": "abcdef"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["token"])

	rec = e.do(t, http.MethodPut, "/api/v1/auth/resetpassword/"+token, "", map[string]any{"password": "ghijkl"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "rita@example.com", "password": "abcdef"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsersAdminOnly(t *testing.T) {
	e := newTestEnv(t)
	_, userToken := e.signup(t, "Plain", models.RoleUser)
	_, adminToken := e.signup(t, "Boss", models.RoleAdmin)

	rec := e.do(t, http.MethodGet, "/api/v1/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "User role user is not authorized")

	rec = e.do(t, http.MethodGet, "/api/v1/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestUsersCRUD(t *testing.T) {
	e := newTestEnv(t)
	_, adminToken := e.signup(t, "Boss", models.RoleAdmin)

	rec := e.do(t, http.MethodPost, "/api/v1/users", adminToken, map[string]any{
		"name": "Made", "email": "made@example.com", "password": "123456", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["data"].(map[string]any)["_id"].(string)

	rec = e.do(t, http.MethodPut, "/api/v1/users/"+id, adminToken, map[string]any{"role": "publisher"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "publisher", decode(t, rec)["data"].(map[string]any)["role"])

	rec = e.do(t, http.MethodDelete, "/api/v1/users/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	oid, _ := primitive.ObjectIDFromHex(id)
	_, stillThere := e.db.users[oid]
	assert.False(t, stillThere)

	rec = e.do(t, http.MethodGet, "/api/v1/users/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/v1/users/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidIDReadsAsNotFound(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/v1/bootcamps/abc", "/api/v1/courses/abc", "/api/v1/reviews/abc"} {
		rec := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "Resource not found with id of abc", decode(t, rec)["message"])
	}
	rec := e.do(t, http.MethodGet, "/api/v1/bootcamps/"+primitive.NewObjectID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBootcampCreateRules(t *testing.T) {
	e := newTestEnv(t)
	_, userToken := e.signup(t, "Reader", models.RoleUser)
	_, pubToken := e.signup(t, "Pub", models.RolePublisher)
	_, adminToken := e.signup(t, "Boss", models.RoleAdmin)

	body := map[string]any{"name": "Devworks", "description": "d", "careers": []string{"Business"}}
	rec := e.do(t, http.MethodPost, "/api/v1/bootcamps", userToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps", pubToken, map[string]any{"name": "Bad", "description": "d", "careers": []string{"Cooking"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := e.createBootcamp(t, pubToken, "Devworks Bootcamp")
	b := e.db.bootcamps[mustID(t, id)]
	assert.Equal(t, "devworks-bootcamp", b.Slug)
	assert.Equal(t, models.DefaultPhoto, b.Photo)
	assert.Equal(t, "Point", b.Location.Type)

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps", pubToken, map[string]any{"name": "Second", "description": "d", "careers": []string{"Business"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "has already published a bootcamp")

	e.createBootcamp(t, adminToken, "Admin One")
	e.createBootcamp(t, adminToken, "Admin Two")

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps", adminToken, map[string]any{"name": "Admin One", "description": "d", "careers": []string{"Business"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/bootcamps?select=name", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.EqualValues(t, 3, list["count"])
	assert.NotEmpty(t, e.db.pipelines["bootcamps"])
}

func TestBootcampOwnership(t *testing.T) {
	e := newTestEnv(t)
	_, ownerToken := e.signup(t, "Owner", models.RolePublisher)
	_, otherToken := e.signup(t, "Other", models.RolePublisher)
	_, adminToken := e.signup(t, "Boss", models.RoleAdmin)
	id := e.createBootcamp(t, ownerToken, "Owned Camp")

	rec := e.do(t, http.MethodPut, "/api/v1/bootcamps/"+id, otherToken, map[string]any{"name": "Stolen"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/v1/bootcamps/"+id, ownerToken, map[string]any{"name": "Renamed Camp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "renamed-camp", decode(t, rec)["data"].(map[string]any)["slug"])

	rec = e.do(t, http.MethodPut, "/api/v1/bootcamps/"+id, adminToken, map[string]any{"housing": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["data"].(map[string]any)["housing"])

	rec = e.do(t, http.MethodDelete, "/api/v1/bootcamps/"+id, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/v1/bootcamps/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, e.db.bootcamps)
}

func TestBootcampDeleteCascades(t *testing.T) {
	e := newTestEnv(t)
	_, pubToken := e.signup(t, "Pub", models.RolePublisher)
	_, userToken := e.signup(t, "Reader", models.RoleUser)
	id := e.createBootcamp(t, pubToken, "Cascade Camp")

	rec := e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/courses", pubToken, courseBody(8000))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/reviews", userToken, reviewBody(7))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodDelete, "/api/v1/bootcamps/"+id, pubToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, e.db.courses)
	assert.Empty(t, e.db.reviews)
}

func TestWithinRadius(t *testing.T) {
	e := newTestEnv(t)
	_, pubToken := e.signup(t, "Pub", models.RolePublisher)
	e.createBootcamp(t, pubToken, "Near Camp")

	rec := e.do(t, http.MethodGet, "/api/v1/bootcamps/radius?lat=42.35&lng=-71.1&distance=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	for _, q := range []string{"lat=x&lng=1&distance=1", "lng=1&distance=1", "lat=95&lng=1&distance=1", "lat=1&lng=1&distance=-2"} {
		rec := e.do(t, http.MethodGet, "/api/v1/bootcamps/radius?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func courseBody(tuition float64) map[string]any {
	return map[string]any{
		"title": "Front End", "description": "HTML and CSS", "weeks": "8",
		"tuition": tuition, "minimumSkill": "beginner",
	}
}

func reviewBody(rating int) map[string]any {
	return map[string]any{"title": "Great", "text": "Learned a lot", "rating": rating}
}

func mustID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}

func TestCoursesRecomputeAverageCost(t *testing.T) {
	e := newTestEnv(t)
	_, ownerToken := e.signup(t, "Owner", models.RolePublisher)
	_, otherToken := e.signup(t, "Other", models.RolePublisher)
	id := e.createBootcamp(t, ownerToken, "Cost Camp")
	bid := mustID(t, id)

	rec := e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/courses", otherToken, courseBody(1000))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/courses", ownerToken, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/courses", ownerToken, courseBody(10000))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	courseID := decode(t, rec)["data"].(map[string]any)["_id"].(string)
	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/courses", ownerToken, courseBody(12001))
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, e.db.bootcamps[bid].AverageCost)
	assert.Equal(t, 11010.0, *e.db.bootcamps[bid].AverageCost)

	rec = e.do(t, http.MethodGet, "/api/v1/bootcamps/"+id+"/courses", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = e.do(t, http.MethodGet, "/api/v1/courses/"+courseID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	populated := decode(t, rec)["data"].(map[string]any)["bootcamp"].(map[string]any)
	assert.Equal(t, "Cost Camp", populated["name"])

	rec = e.do(t, http.MethodPut, "/api/v1/courses/"+courseID, otherToken, map[string]any{"tuition": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/v1/courses/"+courseID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12010.0, *e.db.bootcamps[bid].AverageCost)
	assert.Len(t, e.db.costUpdates, 3)
}

func TestReviews(t *testing.T) {
	e := newTestEnv(t)
	_, pubToken := e.signup(t, "Pub", models.RolePublisher)
	_, userToken := e.signup(t, "Reader", models.RoleUser)
	_, otherToken := e.signup(t, "Another", models.RoleUser)
	id := e.createBootcamp(t, pubToken, "Review Camp")

	rec := e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/reviews", pubToken, reviewBody(8))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/reviews", userToken, reviewBody(11))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/reviews", userToken, reviewBody(8))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reviewID := decode(t, rec)["data"].(map[string]any)["_id"].(string)

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps/"+id+"/reviews", userToken, reviewBody(9))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Duplicate field value entered", decode(t, rec)["message"])

	rec = e.do(t, http.MethodPost, "/api/v1/bootcamps/"+primitive.NewObjectID().Hex()+"/reviews", otherToken, reviewBody(5))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/v1/reviews/"+reviewID, otherToken, map[string]any{"rating": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/v1/reviews/"+reviewID, userToken, map[string]any{"rating": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, decode(t, rec)["data"].(map[string]any)["rating"])

	rec = e.do(t, http.MethodGet, "/api/v1/bootcamps/"+id+"/reviews", "", nil)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = e.do(t, http.MethodDelete, "/api/v1/reviews/"+reviewID, userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, e.db.ratingUpdates, 3)
}

func photoRequest(t *testing.T, path, token, filename, contentType string, size int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestPhotoUpload(t *testing.T) {
	e := newTestEnv(t)
	_, pubToken := e.signup(t, "Pub", models.RolePublisher)
	id := e.createBootcamp(t, pubToken, "Photo Camp")
	path := "/api/v1/bootcamps/" + id + "/photo"

	rec := e.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	rec = serve(photoRequest(t, path, pubToken, "notes.txt", "text/plain", 10))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please upload an image file", decode(t, rec)["message"])

	rec = serve(photoRequest(t, path, pubToken, "huge.jpg", "image/jpeg", 4096))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "less than")

	rec = serve(photoRequest(t, path, pubToken, "camp.JPG", "image/jpeg", 100))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode(t, rec)["data"].(string)
	assert.True(t, strings.HasPrefix(first, "bootcamps/"+id+"/"), first)
	assert.Equal(t, first, e.db.bootcamps[mustID(t, id)].Photo)

	rec = serve(photoRequest(t, path, pubToken, "camp2.png", "image/png", 100))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{first}, e.photos.deleted)

	rec = e.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Contains(t, data["url"], "bootcamps/"+id)
	assert.EqualValues(t, 900, data["expiresIn"])
}

func TestPhotoUploadWithoutStorage(t *testing.T) {
	e := newTestEnv(t)
	_, pubToken := e.signup(t, "Pub", models.RolePublisher)
	id := e.createBootcamp(t, pubToken, "Bare Camp")
	e.router = NewRouter(Deps{Auth: e.auth, DB: e.db, MaxUpload: 1024})

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, photoRequest(t, "/api/v1/bootcamps/"+id+"/photo", pubToken, "a.jpg", "image/jpeg", 10))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

func TestAuthRateLimit(t *testing.T) {
	e := newTestEnv(t)
	e.router = NewRouter(Deps{Auth: e.auth, DB: e.db, AuthLimiter: denyAll{}})

	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "a@b.co", "password": "123456"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{"name": "A", "email": "a@b.co", "password": "123456"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
