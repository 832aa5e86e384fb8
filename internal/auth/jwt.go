package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the OAuth callback service signs into the session
// token: the stable user identifier plus the community servers and
// roles it saw at login time.
type Claims struct {
	UserID   string   `json:"user_id"`
	GuildIDs []string `json:"guild_ids"`
	RoleIDs  []string `json:"role_ids"`
	jwt.RegisteredClaims
}

func GenerateJWT(userID string, guildIDs, roleIDs []string, secret string) (string, error) {
	expirationTime := time.Now().Add(1 * time.Hour)

	claims := &Claims{
		UserID:   userID,
		GuildIDs: guildIDs,
		RoleIDs:  roleIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "cloud-server",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func VerifyJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
