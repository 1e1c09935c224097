package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kevinaaaquil/devcamper/middleware"
	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/service"
)

// Store is the full persistence surface. *store.DB satisfies it.
type Store interface {
	UserStore
	BootcampStore
	CourseStore
	ReviewStore
}

// Deps wires the router.
type Deps struct {
	Auth         *service.AuthService
	DB           Store
	Photos       PhotoStore
	MaxUpload    int64
	CookieExpire time.Duration
	SecureCookie bool
	AuthLimiter  middleware.Limiter // nil disables rate limiting
	CORSOrigins  []string
}

func NewRouter(d Deps) http.Handler {
	authH := &AuthHandler{Auth: d.Auth, CookieExpire: d.CookieExpire, SecureCookie: d.SecureCookie}
	usersH := &UsersHandler{DB: d.DB, Auth: d.Auth}
	bootcampsH := &BootcampsHandler{DB: d.DB, Photos: d.Photos, MaxBytes: d.MaxUpload}
	coursesH := &CoursesHandler{DB: d.DB}
	reviewsH := &ReviewsHandler{DB: d.DB}

	protect := middleware.Protect(d.Auth)
	limit := func(next http.Handler) http.Handler { return next }
	if d.AuthLimiter != nil {
		limit = middleware.RateLimit(d.AuthLimiter)
	}
	publisher := middleware.Authorize(models.RolePublisher, models.RoleAdmin)
	reviewer := middleware.Authorize(models.RoleUser, models.RoleAdmin)

	r := chi.NewRouter()
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.With(limit).Post("/login", authH.Login)
			r.Get("/logout", authH.Logout)
			r.With(limit).Post("/forgotpassword", authH.ForgotPassword)
			r.Put("/resetpassword/{resettoken}", authH.ResetPassword)
			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Get("/me", authH.Me)
				r.Put("/updatedetails", authH.UpdateDetails)
				r.Put("/updatepassword", authH.UpdatePassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(protect, middleware.Authorize(models.RoleAdmin))
			r.Get("/", usersH.List)
			r.Post("/", usersH.Create)
			r.Get("/{id}", usersH.Get)
			r.Put("/{id}", usersH.Update)
			r.Delete("/{id}", usersH.Delete)
		})

		r.Route("/bootcamps", func(r chi.Router) {
			r.Get("/", bootcampsH.List)
			r.Get("/radius", bootcampsH.WithinRadius)
			r.Get("/{id}", bootcampsH.Get)
			r.Get("/{id}/photo", bootcampsH.PhotoURL)
			r.Get("/{bootcampId}/courses", coursesH.ListForBootcamp)
			r.Get("/{bootcampId}/reviews", reviewsH.ListForBootcamp)
			r.Group(func(r chi.Router) {
				r.Use(protect, publisher)
				r.Post("/", bootcampsH.Create)
				r.Put("/{id}", bootcampsH.Update)
				r.Delete("/{id}", bootcampsH.Delete)
				r.Put("/{id}/photo", bootcampsH.UploadPhoto)
				r.Post("/{bootcampId}/courses", coursesH.Create)
			})
			r.With(protect, reviewer).Post("/{bootcampId}/reviews", reviewsH.Create)
		})

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", coursesH.List)
			r.Get("/{id}", coursesH.Get)
			r.Group(func(r chi.Router) {
				r.Use(protect, publisher)
				r.Put("/{id}", coursesH.Update)
				r.Delete("/{id}", coursesH.Delete)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", reviewsH.List)
			r.Get("/{id}", reviewsH.Get)
			r.Group(func(r chi.Router) {
				r.Use(protect, reviewer)
				r.Put("/{id}", reviewsH.Update)
				r.Delete("/{id}", reviewsH.Delete)
			})
		})
	})
	return r
}
