package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testJWTKey = []byte("unit-test-signing-key")

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestAuthHandler() *JWTAuthHandler {
	return &JWTAuthHandler{
		Keyfunc: func(*jwt.Token) (any, error) { return testJWTKey, nil },
		Methods: []string{"HS256"},
	}
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	t.Parallel()

	client := dialTestServer(t, newTestAuthHandler(), helloChain())
	writeAll(t, client, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
	buf := make([]byte, 512)
	n, _ := client.Read(buf)
	resp := string(buf[:n])
	if !strings.HasPrefix(resp, "HTTP/1.1 401 ") {
		t.Fatalf("response = %q", resp)
	}
	if !strings.Contains(resp, "www-authenticate: Bearer\r\n") {
		t.Errorf("missing www-authenticate header: %q", resp)
	}
}

func TestJWTAuthRejectsBadToken(t *testing.T) {
	t.Parallel()

	client := dialTestServer(t, newTestAuthHandler(), helloChain())
	writeAll(t, client, "GET / HTTP/1.1\r\nHost: a\r\nAuthorization: Bearer not.a.token\r\n\r\n")
	buf := make([]byte, 512)
	n, _ := client.Read(buf)
	if !strings.HasPrefix(string(buf[:n]), "HTTP/1.1 401 ") {
		t.Fatalf("response = %q", buf[:n])
	}
}

func TestJWTAuthPassesValidToken(t *testing.T) {
	t.Parallel()

	var subject string
	chain := HandlerFunc(func(req *Request, res *Response) error {
		if claims := AuthClaims(req); claims != nil {
			subject, _ = claims.GetSubject()
		}
		return res.WriteString("Hello World!")
	})
	token := signTestToken(t, jwt.MapClaims{
		"sub": "dev-tools",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	client := dialTestServer(t, newTestAuthHandler(), chain)
	writeAll(t, client, "GET / HTTP/1.1\r\nHost: a\r\nAuthorization: Bearer "+token+"\r\n\r\n")
	readExactly(t, client, "HTTP/1.1 200 \r\ncontent-length: 12\r\nconnection: keep-alive\r\n\r\nHello World!")
	if subject != "dev-tools" {
		t.Errorf("claims subject = %q", subject)
	}
}

func TestJWTAuthProtectSelector(t *testing.T) {
	t.Parallel()

	auth := newTestAuthHandler()
	auth.Protect = func(req *Request) bool { return strings.HasPrefix(req.Target, "/api/") }

	client := dialTestServer(t, auth, helloChain())
	writeAll(t, client, "GET /public HTTP/1.1\r\nHost: a\r\n\r\n")
	readExactly(t, client, "HTTP/1.1 200 \r\ncontent-length: 12\r\nconnection: keep-alive\r\n\r\nHello World!")
}
