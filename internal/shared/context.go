package shared

import "context"

type contextKey string

const staffContextKey contextKey = "staff_id"

// ContextWithStaff stores the authenticated staff id supplied by the upstream gateway.
func ContextWithStaff(ctx context.Context, staffID int64) context.Context {
	return context.WithValue(ctx, staffContextKey, staffID)
}

// StaffFromContext returns the staff id attributed to the request, zero when absent.
func StaffFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(staffContextKey).(int64)
	return id
}
