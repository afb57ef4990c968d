package api

// Backend routes consumed by the client.
const (
	RouteLogin          = "/api/auth/login"
	RouteMarkAttendance = "/api/mobile/attendance/mark"
	RouteMyAttendance   = "/api/mobile/attendance/mine"
	RouteMySchedule     = "/api/mobile/me/schedule"
)
