package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterOptions struct {
	// AuthMiddleware guards every route but /healthz; nil leaves the bridge open.
	AuthMiddleware func(http.Handler) http.Handler
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

// NewRouter constructs the bridge HTTP router without auth or metrics.
func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log.With(zap.String("module", "bridge"))))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}
		if opts.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", opts.Metrics)
		}

		r.Post("/observe", s.observe)
		r.Post("/navigate", s.navigate)
		r.Get("/events", s.events)

		r.Post("/votes", s.vote)
		r.Get("/votes/{contentType}", s.voteStates)
		r.Get("/resolve", s.resolve)

		r.Post("/posts/{postId}/comments", s.idempotent(s.createComment))
		r.Post("/posts/{postId}/comments/vote", s.voteComment)
		r.Post("/submolts", s.idempotent(s.createSubmolt))
		r.Post("/submolts/{name}/posts", s.idempotent(s.createPost))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.signUp)
			r.Post("/login", s.logIn)
			r.Post("/logout", s.logOut)
			r.Get("/me", s.me)
			r.Get("/status", s.status)
			r.Post("/verify-tweet", s.verifyTweet)
		})

		r.Get("/me/posts", s.myPosts)
		r.Get("/me/comments", s.myComments)
	})
	return r
}
