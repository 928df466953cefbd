package middlewares

const (
	CtxRequestID = "request_id"

	ctxUserIDKey = "identity.userID"
	ctxEmailKey  = "identity.email"
	ctxRoleKey   = "identity.role"
)
