package auth

const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeAutoflowRead  = "autoflow:read"
	ScopeAutoflowWrite = "autoflow:write"
)

// AllScopes defines the full set of scopes used by the Swagger UI / Frontend
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeAutoflowRead,
	ScopeAutoflowWrite,
}
