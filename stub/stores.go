package stub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spotin-app/spotin-go/api"
	"github.com/spotin-app/spotin-go/session"
)

type stubUser struct {
	ID           string
	Name         string
	Email        string
	Role         session.Role
	PasswordHash []byte

	// Daily attendance window, applied to every weekday.
	ScheduleStart    string // "HH:MM"
	ScheduleEnd      string // "HH:MM"
	LateAfterMinutes int
}

type userStore struct {
	lock    sync.RWMutex
	byID    map[string]*stubUser
	byEmail map[string]string
}

func newUserStore() *userStore {
	return &userStore{
		byID:    make(map[string]*stubUser),
		byEmail: make(map[string]string),
	}
}

func (s *userStore) Upsert(user *stubUser) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
}

func (s *userStore) GetByEmail(email string) (*stubUser, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, false
	}
	user, ok := s.byID[id]
	return user, ok
}

func (s *userStore) GetByID(id string) (*stubUser, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	user, ok := s.byID[id]
	return user, ok
}

// qrTokenStore tracks issued QR tokens. Tokens are single-use and expire.
type qrTokenStore struct {
	lock    sync.Mutex
	issued  map[string]time.Time
	ttl     time.Duration
	nowTime func() time.Time
}

func newQRTokenStore(ttl time.Duration, nowTime func() time.Time) *qrTokenStore {
	return &qrTokenStore{
		issued:  make(map[string]time.Time),
		ttl:     ttl,
		nowTime: nowTime,
	}
}

func (s *qrTokenStore) Issue() string {
	s.lock.Lock()
	defer s.lock.Unlock()

	token := uuid.New().String()
	s.issued[token] = s.nowTime()
	return token
}

// Consume burns the token. It reports false for unknown, expired, or already
// consumed tokens; a consumed token never validates twice.
func (s *qrTokenStore) Consume(token string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	issuedAt, ok := s.issued[token]
	if !ok {
		return false
	}
	delete(s.issued, token)
	return s.nowTime().Sub(issuedAt) <= s.ttl
}

type attendanceStore struct {
	lock      sync.RWMutex
	records   []api.AttendanceRecord
	perDay    map[string]bool // userID + "/" + dateKey
}

func newAttendanceStore() *attendanceStore {
	return &attendanceStore{perDay: make(map[string]bool)}
}

// Add appends the record unless the user already marked that day.
func (s *attendanceStore) Add(record api.AttendanceRecord) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := record.UserID + "/" + record.DateKey
	if s.perDay[key] {
		return false
	}
	s.perDay[key] = true
	s.records = append(s.records, record)
	return true
}

// ListByUser returns the user's records newest first.
func (s *attendanceStore) ListByUser(userID string) []api.AttendanceRecord {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var out []api.AttendanceRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID {
			out = append(out, s.records[i])
		}
	}
	return out
}
