package server

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthHandler is a chain handler that gates requests behind a Bearer
// token. Requests with a valid token pass through to the next handler with
// the parsed claims attached; anything else is answered with 401 and the
// chain stops there.
type JWTAuthHandler struct {
	// Keyfunc resolves the verification key for a parsed token. Required.
	Keyfunc jwt.Keyfunc

	// Methods restricts the accepted signing algorithms, e.g. {"HS256"} or
	// {"RS256"}. Required; an empty list rejects every token.
	Methods []string

	// Protect selects which requests require a token. Nil protects all.
	Protect func(req *Request) bool
}

func (h *JWTAuthHandler) Handle(req *Request, res *Response) error {
	if h.Protect != nil && !h.Protect(req) {
		return nil
	}

	auth := req.Header("authorization")
	if auth == "" {
		return writeAuthError(res, "missing Authorization header")
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return writeAuthError(res, "Authorization header must be Bearer token")
	}

	// jwt skips the algorithm check for a nil list, so reject it here.
	if len(h.Methods) == 0 {
		return writeAuthError(res, "invalid or expired token")
	}
	parsed, err := jwt.Parse(token, h.Keyfunc, jwt.WithValidMethods(h.Methods))
	if err != nil || !parsed.Valid {
		return writeAuthError(res, "invalid or expired token")
	}

	req.authValue = parsed.Claims
	return nil
}

// AuthClaims returns the JWT claims a JWTAuthHandler attached to the
// request, or nil on unauthenticated requests.
func AuthClaims(req *Request) jwt.Claims {
	c, _ := req.authValue.(jwt.Claims)
	return c
}

// writeAuthError commits a 401 response with a JSON error body.
func writeAuthError(res *Response, message string) error {
	body, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return err
	}
	res.Status(401).
		ContentType("application/json").
		SetHeader("www-authenticate", "Bearer")
	return res.WriteString(string(body))
}
