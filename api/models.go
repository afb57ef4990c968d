package api

import (
	"time"

	"github.com/spotin-app/spotin-go/session"
)

// Result is the backend's punctuality verdict for a mark.
type Result string

const (
	ResultOnTime Result = "ON_TIME"
	ResultLate   Result = "LATE"
)

// Status is the review state of an attendance record.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
)

// AttendanceRecord is a backend-owned attendance mark. The client never
// mutates these; it only aggregates and filters them for display.
type AttendanceRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	DateKey        string    `json:"dateKey"` // "YYYY-MM-DD"
	MarkedAt       time.Time `json:"markedAt"`
	DistanceMeters float64   `json:"distanceMeters"`
	Result         Result    `json:"result"`
	Status         Status    `json:"status"`
}

// Schedule is the user's expected attendance window for one weekday.
type Schedule struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	DayOfWeek        int    `json:"dayOfWeek"` // 0 (Sunday) .. 6 (Saturday)
	StartTime        string `json:"startTime"` // "HH:MM"
	EndTime          string `json:"endTime"`   // "HH:MM"
	LateAfterMinutes int    `json:"lateAfterMinutes"`
	IsActive         bool   `json:"isActive"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string             `json:"token"`
	User  session.UserRecord `json:"user"`
}

type markAttendanceRequest struct {
	QRToken string  `json:"qrToken"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type markAttendanceResponse struct {
	Attendance AttendanceRecord `json:"attendance"`
}

type attendanceListResponse struct {
	Items []AttendanceRecord `json:"items"`
}

type scheduleResponse struct {
	Schedule *Schedule `json:"schedule"`
}

type errorResponse struct {
	Message string `json:"message"`
}
