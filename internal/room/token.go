package room

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenGrant is the room-relevant slice of a connection token's claims.
type TokenGrant struct {
	Identity string
	Room     string
}

// InspectToken decodes a room connection token without verifying its
// signature. The client holds no signing secret; verification happens
// server-side. Used to cross-check that the issued token actually grants
// the room the session-start response named.
func InspectToken(token string) (TokenGrant, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenGrant{}, fmt.Errorf("failed to parse room token: %w", err)
	}

	grant := TokenGrant{}
	if sub, ok := claims["sub"].(string); ok {
		grant.Identity = sub
	}
	if video, ok := claims["video"].(map[string]any); ok {
		if room, ok := video["room"].(string); ok {
			grant.Room = room
		}
	}
	if grant.Room == "" {
		return grant, fmt.Errorf("room token carries no room grant")
	}
	return grant, nil
}
