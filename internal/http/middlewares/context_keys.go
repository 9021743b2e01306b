package middlewares

// Gin context keys shared between middlewares and handlers.
const (
	CtxRequestID = "request_id"
	ctxUserKey   = "auth.user"
	ctxTokenKey  = "auth.token"
)
