package contexthelpers

type contextKey string

const UserIDContextKey = contextKey("userID")
const TraceIDContextKey = contextKey("traceID")
