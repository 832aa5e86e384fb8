package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret"

func TestGenerateAndVerifyJWT(t *testing.T) {
	tokenString, err := GenerateJWT("user@example.com", []string{"guild-1"}, []string{"role-a", "role-b"}, testSecret)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := VerifyJWT(tokenString, testSecret)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", claims.UserID)
	require.Equal(t, []string{"guild-1"}, claims.GuildIDs)
	require.Equal(t, []string{"role-a", "role-b"}, claims.RoleIDs)
	require.Equal(t, "cloud-server", claims.Issuer)
}

func TestVerifyJWTWrongSecret(t *testing.T) {
	tokenString, err := GenerateJWT("user@example.com", nil, nil, testSecret)
	require.NoError(t, err)

	_, err = VerifyJWT(tokenString, "other_secret")
	require.Error(t, err)
}

func TestVerifyJWTExpired(t *testing.T) {
	claims := &Claims{
		UserID: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = VerifyJWT(tokenString, testSecret)
	require.Error(t, err)
}

func TestIdentityGating(t *testing.T) {
	guildID := "guild-1"
	allowed := []string{"role-a", "role-b"}

	cases := []struct {
		name       string
		guilds     []string
		roles      []string
		authorized bool
	}{
		{"member with allowed role", []string{"guild-1"}, []string{"role-a"}, true},
		{"member without allowed role", []string{"guild-1"}, []string{"role-x"}, false},
		{"non-member with allowed role", []string{"guild-2"}, []string{"role-a"}, false},
		{"no guilds, no roles", nil, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims := &Claims{UserID: "u1", GuildIDs: tc.guilds, RoleIDs: tc.roles}
			id := claims.Identity(guildID, allowed)
			require.Equal(t, "u1", id.UserID)
			require.Equal(t, tc.authorized, id.Authorized)
		})
	}
}

func TestHasAnyRole(t *testing.T) {
	id := Identity{UserID: "u1", Roles: []string{"role-a"}}
	require.True(t, id.HasAnyRole([]string{"role-a", "admin"}))
	require.False(t, id.HasAnyRole([]string{"admin"}))
	require.False(t, id.HasAnyRole(nil))
}
