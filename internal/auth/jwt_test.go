package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/server/internal/model"
)

func TestJWTService_roundTrip(t *testing.T) {
	svc := NewJWTService("test-secret-at-least-32-characters!!")
	usr := model.User{
		ID:    uuid.New(),
		Email: "alice@x.edu",
		Name:  "Alice",
		Role:  model.RoleStudent,
	}

	token, err := svc.Sign(usr)
	require.NoError(t, err)

	claims, ok := svc.Decode(token)
	require.True(t, ok, "freshly signed token should decode")
	assert.Equal(t, usr.ID, claims.UserID)
	assert.Equal(t, usr.Email, claims.Email)
	assert.Equal(t, usr.Name, claims.Name)
	assert.Equal(t, model.RoleStudent, claims.Role)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTService_decodeFailuresReportNoSession(t *testing.T) {
	svc := NewJWTService("test-secret-at-least-32-characters!!")
	usr := model.User{ID: uuid.New(), Email: "alice@x.edu", Role: model.RoleStudent}

	token, err := svc.Sign(usr)
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		claims, ok := svc.Decode(token + "x")
		assert.False(t, ok)
		assert.Nil(t, claims)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewJWTService("a-completely-different-secret-key!!!")
		claims, ok := other.Decode(token)
		assert.False(t, ok)
		assert.Nil(t, claims)
	})

	t.Run("malformed", func(t *testing.T) {
		claims, ok := svc.Decode("not.a.token")
		assert.False(t, ok)
		assert.Nil(t, claims)
	})

	t.Run("empty", func(t *testing.T) {
		claims, ok := svc.Decode("")
		assert.False(t, ok)
		assert.Nil(t, claims)
	})

	t.Run("expired", func(t *testing.T) {
		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaims{
			UserID: usr.ID,
			Role:   usr.Role,
			Email:  usr.Email,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-8 * 24 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-24 * time.Hour)),
			},
		})
		signed, err := expired.SignedString([]byte("test-secret-at-least-32-characters!!"))
		require.NoError(t, err)

		claims, ok := svc.Decode(signed)
		assert.False(t, ok)
		assert.Nil(t, claims)
	})

	t.Run("non-HMAC algorithm rejected", func(t *testing.T) {
		none := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{UserID: usr.ID})
		signed, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		claims, ok := svc.Decode(signed)
		assert.False(t, ok)
		assert.Nil(t, claims)
	})
}
