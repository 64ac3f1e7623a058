package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	ctxSubjectID = "subject_id"
	ctxRole      = "role"
	ctxRequestID = "request_id"
)

// SubjectID returns the authenticated customer or restaurant ID.
func SubjectID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxSubjectID).(uint64)
	return id, ok && id > 0
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// RequestID returns the ID assigned by RequestLogger.
func RequestID(c echo.Context) string {
	id, _ := c.Get(ctxRequestID).(string)
	return id
}

// callerKey identifies the caller for rate limiting: role and subject for
// authenticated requests, "anon" otherwise.
func callerKey(c echo.Context) string {
	id, ok := SubjectID(c)
	if !ok {
		return "anon"
	}
	return Role(c) + "-" + strconv.FormatUint(id, 10)
}
