package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"ShopChat/models"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the side-channel credential.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// IdentityResolver extracts the acting user from the credential's claims.
// The signature is not checked here: the server verifies the token on
// every request, the client only needs the user_id it carries.
type IdentityResolver struct {
	tokens TokenSource
	parser *jwt.Parser
}

func NewIdentityResolver(tokens TokenSource) *IdentityResolver {
	return &IdentityResolver{
		tokens: tokens,
		parser: jwt.NewParser(),
	}
}

func (r *IdentityResolver) Resolve(ctx context.Context) (models.Identity, error) {
	raw, err := r.tokens.Token(ctx)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", models.ErrIdentityUnavailable, err)
	}
	return IdentityFromToken(r.parser, raw)
}

// IdentityFromToken decodes the user_id (and username, when present) claim.
func IdentityFromToken(parser *jwt.Parser, raw string) (models.Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", models.ErrIdentityUnavailable, err)
	}

	var id models.Identity
	switch v := claims["user_id"].(type) {
	case string:
		id.UserID = v
	case float64:
		id.UserID = strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		id.UserID = v.String()
	}
	if id.UserID == "" {
		return models.Identity{}, fmt.Errorf("%w: token has no user_id claim", models.ErrIdentityUnavailable)
	}
	if name, ok := claims["username"].(string); ok {
		id.Username = name
	}
	return id, nil
}
