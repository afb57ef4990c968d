package stub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/spotin-app/spotin-go/api"
	"github.com/spotin-app/spotin-go/geo"
	"github.com/spotin-app/spotin-go/session"
)

type contextKey string

const userContextKey contextKey = "stub.user"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, ok := s.users.GetByEmail(body.Email)
	if !ok || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := mintToken(s.secret, user.ID, s.tokenTTL, s.nowTime())
	if err != nil {
		s.log.Error().Err(err).Msg("minting token failed")
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": session.UserRecord{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	})
}

func (s *Server) requireAuth(next func(http.ResponseWriter, *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := parseToken(s.secret, raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		user, ok := s.users.GetByID(userID)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(userContextKey).(*stubUser)

	var body struct {
		QRToken string  `json:"qrToken"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.QRToken == "" {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if !s.qrTokens.Consume(body.QRToken) {
		writeError(w, http.StatusGone, "QR token invalid or already used")
		return
	}

	within, distance := s.target.Contains(geo.Coordinate{Lat: body.Lat, Lng: body.Lng})
	if !within {
		writeError(w, http.StatusUnprocessableEntity, "outside the allowed attendance area")
		return
	}

	now := s.nowTime()
	record := api.AttendanceRecord{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		DateKey:        now.Format("2006-01-02"),
		MarkedAt:       now,
		DistanceMeters: distance,
		Result:         s.punctuality(user, now),
		Status:         api.StatusPending,
	}

	if !s.attendance.Add(record) {
		writeError(w, http.StatusConflict, "attendance already marked today")
		return
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("result", string(record.Result)).
		Float64("distance_m", distance).
		Msg("attendance marked")
	writeJSON(w, http.StatusCreated, map[string]any{"attendance": record})
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(userContextKey).(*stubUser)
	items := s.attendance.ListByUser(user.ID)
	if items == nil {
		items = []api.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(userContextKey).(*stubUser)
	now := s.nowTime()

	// Weekends have no schedule, matching the "schedule": null contract.
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		writeJSON(w, http.StatusOK, map[string]any{"schedule": nil})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"schedule": api.Schedule{
		ID:               "sched-" + user.ID,
		UserID:           user.ID,
		DayOfWeek:        int(now.Weekday()),
		StartTime:        user.ScheduleStart,
		EndTime:          user.ScheduleEnd,
		LateAfterMinutes: user.LateAfterMinutes,
		IsActive:         true,
	}})
}

func (s *Server) handleIssueQR(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"qrToken": s.qrTokens.Issue()})
}

// punctuality applies the user's schedule cutoff to the mark time.
func (s *Server) punctuality(user *stubUser, markedAt time.Time) api.Result {
	start, err := time.Parse("15:04", user.ScheduleStart)
	if err != nil {
		return api.ResultOnTime
	}
	cutoff := time.Date(
		markedAt.Year(), markedAt.Month(), markedAt.Day(),
		start.Hour(), start.Minute(), 0, 0, markedAt.Location(),
	).Add(time.Duration(user.LateAfterMinutes) * time.Minute)

	if markedAt.After(cutoff) {
		return api.ResultLate
	}
	return api.ResultOnTime
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
