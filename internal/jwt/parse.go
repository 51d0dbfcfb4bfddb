package jwt

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
)

// leeway tolera desfasajes de reloj en nbf/iat.
const leeway = 30 * time.Second

var ErrInvalidToken = errs.New(errs.KindAuthentication, "invalid_token", "invalid access token")

// Validated es el resultado de Validate.
type Validated struct {
	Claims  *Claims
	Expired bool
}

// Validate verifica firma, algoritmo y claims obligatorias. exp en el pasado
// no es error: vuelve con Expired=true.
func (i *Issuer) Validate(token string) (*Validated, error) {
	var claims Claims
	tok, err := jwtv5.ParseWithClaims(token, &claims,
		func(t *jwtv5.Token) (any, error) { return i.secret, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken.WithCause(err)
	}

	if claims.UserID <= 0 || claims.SessionID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken.WithCause(fmt.Errorf("missing required claims"))
	}

	now := i.now()
	if claims.NotBefore != nil && claims.NotBefore.After(now.Add(leeway)) {
		return nil, ErrInvalidToken.WithCause(fmt.Errorf("not_before"))
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(now.Add(leeway)) {
		return nil, ErrInvalidToken.WithCause(fmt.Errorf("issued_in_future"))
	}

	return &Validated{
		Claims:  &claims,
		Expired: !now.Before(claims.ExpiresAt.Time),
	}, nil
}
