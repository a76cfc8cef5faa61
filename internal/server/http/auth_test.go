package httpserver

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/onepass-app/onepass-server/internal/model"
)

func makeJWT(t *testing.T, sub, role string, key []byte, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(iat),
			NotBefore: jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
		},
		Role: role,
	}
	s, err := jwt.NewWithClaims(method, cl).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func Test_bearerToken(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	got, err := bearerToken(r)
	if err != nil || got != "abc.def.ghi" {
		t.Fatalf("ok: got=%q err=%v", got, err)
	}

	r.Header.Set("Authorization", "Basic foo")
	if _, err := bearerToken(r); err == nil {
		t.Fatalf("want error on non-bearer")
	}

	r.Header.Set("Authorization", "Bearer   ")
	if _, err := bearerToken(r); err == nil {
		t.Fatalf("want error on empty token")
	}

	r.Header.Del("Authorization")
	if _, err := bearerToken(r); err == nil {
		t.Fatalf("want error on missing header")
	}
}

func Test_callerFromToken_Valid(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	tok := makeJWT(t, "staff-1", "STAFF", key, jwt.SigningMethodHS256, time.Now().Add(-time.Minute), 10*time.Minute)

	cl, err := callerFromToken(tok, key)
	if err != nil {
		t.Fatalf("callerFromToken: %v", err)
	}
	if cl.UID != "staff-1" || cl.Role != model.RoleStaff {
		t.Fatalf("caller: %+v", cl)
	}
}

func Test_callerFromToken_Leeway(t *testing.T) {
	t.Parallel()

	// Expired 10s ago: inside the 30s leeway, must still parse.
	key := []byte("secret")
	tok := makeJWT(t, "u1", "USER", key, jwt.SigningMethodHS256, time.Now().Add(-time.Minute), 50*time.Second)

	cl, err := callerFromToken(tok, key)
	if err != nil {
		t.Fatalf("callerFromToken: %v", err)
	}
	if cl.UID != "u1" {
		t.Fatalf("caller: %+v", cl)
	}
}

func Test_callerFromToken_Rejections(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	now := time.Now()

	expired := makeJWT(t, "u1", "USER", key, jwt.SigningMethodHS256, now.Add(-2*time.Hour), time.Hour)
	if _, err := callerFromToken(expired, key); err == nil {
		t.Fatalf("want error on expired token")
	}

	wrongKey := makeJWT(t, "u1", "USER", []byte("other"), jwt.SigningMethodHS256, now, time.Hour)
	if _, err := callerFromToken(wrongKey, key); err == nil {
		t.Fatalf("want error on wrong key")
	}

	badRole := makeJWT(t, "u1", "WIZARD", key, jwt.SigningMethodHS256, now, time.Hour)
	if _, err := callerFromToken(badRole, key); err == nil {
		t.Fatalf("want error on unknown role")
	}

	noSub := makeJWT(t, "", "USER", key, jwt.SigningMethodHS256, now, time.Hour)
	if _, err := callerFromToken(noSub, key); err == nil {
		t.Fatalf("want error on missing subject")
	}
}
