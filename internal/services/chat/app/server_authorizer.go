package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/taskdeck/taskdeck/internal/platform/errors"
	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
)

// joinGrant is the verified identity and project context behind one accepted
// WebSocket handshake.
type joinGrant struct {
	userID      string
	displayName string
	projectID   string
	projectName string
}

// wsAuthorizer validates a handshake token and the sender's membership in
// the requested project room.
type wsAuthorizer interface {
	Authorize(ctx context.Context, accessToken, projectID string) (joinGrant, error)
}

// identityDirectory is the directory surface handshake authorization needs.
type identityDirectory interface {
	ProjectByID(ctx context.Context, projectID string) (chatdomain.ProjectRef, error)
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)
	UserByID(ctx context.Context, userID string) (chatdomain.UserRef, error)
}

// identityClaims are the JWT claims chat trusts from the auth issuer.
type identityClaims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name,omitempty"`
}

// tokenVerifier checks HMAC-signed access tokens minted by the auth service.
type tokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func newTokenVerifier(secret []byte, issuer, audience string, now func() time.Time) *tokenVerifier {
	if now == nil {
		now = time.Now
	}
	return &tokenVerifier{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		now:      now,
	}
}

// verify parses and validates an access token. Claim validation is manual
// so expiry checks use the verifier clock.
func (v *tokenVerifier) verify(accessToken string) (identityClaims, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return identityClaims{}, apperrors.New(apperrors.CodeTokenMissing, "access token is required")
	}
	if v == nil || len(v.secret) == 0 || v.issuer == "" || v.audience == "" {
		return identityClaims{}, errors.New("token verifier is not configured")
	}

	var parsed identityClaims
	_, err := jwt.ParseWithClaims(accessToken, &parsed, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return identityClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != v.issuer {
		return identityClaims{}, apperrors.New(apperrors.CodeTokenInvalid, "token issuer mismatch")
	}
	if !audienceContains(parsed.Audience, v.audience) {
		return identityClaims{}, apperrors.New(apperrors.CodeTokenInvalid, "token audience mismatch")
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return identityClaims{}, apperrors.New(apperrors.CodeTokenInvalid, "token sub is required")
	}
	if parsed.ExpiresAt == nil {
		return identityClaims{}, apperrors.New(apperrors.CodeTokenInvalid, "token exp is required")
	}

	now := v.now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return identityClaims{}, apperrors.New(apperrors.CodeTokenExpired, "token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return identityClaims{}, apperrors.New(apperrors.CodeTokenInvalid, "token not active yet")
	}
	return parsed, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeTokenInvalid, "token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenInvalid, "token alg is invalid")
	}
	return apperrors.New(apperrors.CodeTokenInvalid, "token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

// directoryAuthorizer verifies tokens locally and checks room membership
// against the directory.
type directoryAuthorizer struct {
	verifier  *tokenVerifier
	directory identityDirectory
}

func newDirectoryAuthorizer(verifier *tokenVerifier, directory identityDirectory) wsAuthorizer {
	if verifier == nil || directory == nil {
		return nil
	}
	return &directoryAuthorizer{verifier: verifier, directory: directory}
}

func (a *directoryAuthorizer) Authorize(ctx context.Context, accessToken, projectID string) (joinGrant, error) {
	claims, err := a.verifier.verify(accessToken)
	if err != nil {
		return joinGrant{}, err
	}
	userID := strings.TrimSpace(claims.Subject)

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return joinGrant{}, apperrors.New(apperrors.CodeProjectNotFound, "project id is required")
	}
	project, err := a.directory.ProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, chatdomain.ErrNotFound) {
			return joinGrant{}, apperrors.New(apperrors.CodeProjectNotFound, "project is not known")
		}
		return joinGrant{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "resolve project", err)
	}

	member, err := a.directory.IsProjectMember(ctx, projectID, userID)
	if err != nil {
		return joinGrant{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "check project membership", err)
	}
	if !member {
		return joinGrant{}, apperrors.New(apperrors.CodeProjectMemberRequired, "user is not a project member")
	}

	displayName := strings.TrimSpace(claims.DisplayName)
	if displayName == "" {
		user, err := a.directory.UserByID(ctx, userID)
		switch {
		case err == nil:
			displayName = user.DisplayName
		case errors.Is(err, chatdomain.ErrNotFound):
			displayName = userID
		default:
			return joinGrant{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "resolve user", err)
		}
	}

	return joinGrant{
		userID:      userID,
		displayName: displayName,
		projectID:   project.ID,
		projectName: project.Name,
	}, nil
}
