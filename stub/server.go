// Package stub is an in-memory development backend implementing the REST
// contract the mobile client consumes: login, mark-attendance, history and
// schedule. It replaces the hosted backend for local development and tests;
// tokens are single-use QR capabilities and the geofence is enforced
// server-side, mirroring production behaviour.
package stub

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/spotin-app/spotin-go/api"
	"github.com/spotin-app/spotin-go/geo"
	"github.com/spotin-app/spotin-go/session"
)

const (
	defaultTokenTTL   = time.Hour
	defaultQRTokenTTL = 90 * time.Second
)

// Server is the stub backend. Wrap it in http.Server or httptest.Server.
type Server struct {
	router     *mux.Router
	users      *userStore
	attendance *attendanceStore
	qrTokens   *qrTokenStore
	secret     []byte
	target     geo.GeofenceTarget
	tokenTTL   time.Duration
	nowTime    func() time.Time
	log        zerolog.Logger
}

// Option modifies a Server instance.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) { s.nowTime = nowFunc }
}

// WithTokenTTL sets the bearer token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// New initialises a stub backend enforcing the given geofence.
func New(secret []byte, target geo.GeofenceTarget, options ...Option) (*Server, error) {
	if len(secret) == 0 {
		return nil, errors.New("[stub.New] signing secret is required")
	}
	if target.RadiusMeters <= 0 {
		return nil, errors.New("[stub.New] target radius must be positive")
	}

	s := &Server{
		users:      newUserStore(),
		attendance: newAttendanceStore(),
		secret:     secret,
		target:     target,
		tokenTTL:   defaultTokenTTL,
		nowTime:    time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.qrTokens = newQRTokenStore(defaultQRTokenTTL, s.nowTime)
	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(api.RouteLogin, s.handleLogin).Methods(http.MethodPost)
	r.Handle(api.RouteMarkAttendance, s.requireAuth(s.handleMark)).Methods(http.MethodPost)
	r.Handle(api.RouteMyAttendance, s.requireAuth(s.handleMine)).Methods(http.MethodGet)
	r.Handle(api.RouteMySchedule, s.requireAuth(s.handleSchedule)).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/qr/new", s.handleIssueQR).Methods(http.MethodPost)
	s.router = r
}

// SeedUser registers a user with a bcrypt-hashed password and a default
// 08:00 attendance window, and returns the user ID.
func (s *Server) SeedUser(name, email, password string, role session.Role) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "[Server.SeedUser] hashing password")
	}
	user := &stubUser{
		Name:             name,
		Email:            email,
		Role:             role,
		PasswordHash:     hash,
		ScheduleStart:    "08:00",
		ScheduleEnd:      "17:00",
		LateAfterMinutes: 15,
	}
	s.users.Upsert(user)
	return user.ID, nil
}

// IssueQRToken mints a fresh single-use QR token, as the classroom display
// would.
func (s *Server) IssueQRToken() string {
	return s.qrTokens.Issue()
}
