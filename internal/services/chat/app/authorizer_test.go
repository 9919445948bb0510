package server

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/taskdeck/taskdeck/internal/platform/errors"
	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
)

const (
	testTokenSecret   = "test-secret-0123456789abcdef"
	testTokenIssuer   = "taskdeck-auth"
	testTokenAudience = "taskdeck-chat"
)

var testNow = time.Date(2026, 8, 20, 16, 0, 0, 0, time.UTC)

func testVerifier() *tokenVerifier {
	return newTokenVerifier([]byte(testTokenSecret), testTokenIssuer, testTokenAudience, func() time.Time { return testNow })
}

func testClaims(subject string) identityClaims {
	return identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    testTokenIssuer,
			Audience:  jwt.ClaimStrings{testTokenAudience},
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
		DisplayName: "Ava Torres",
	}
}

func mintToken(t *testing.T, secret string, claims identityClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	t.Parallel()

	claims, err := testVerifier().verify(mintToken(t, testTokenSecret, testClaims("user-a")))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-a" {
		t.Fatalf("subject = %q, want user-a", claims.Subject)
	}
	if claims.DisplayName != "Ava Torres" {
		t.Fatalf("display name = %q, want Ava Torres", claims.DisplayName)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()

	expired := testClaims("user-a")
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Minute))

	notYetValid := testClaims("user-a")
	notYetValid.NotBefore = jwt.NewNumericDate(testNow.Add(time.Minute))

	wrongIssuer := testClaims("user-a")
	wrongIssuer.Issuer = "someone-else"

	wrongAudience := testClaims("user-a")
	wrongAudience.Audience = jwt.ClaimStrings{"other-service"}

	noSubject := testClaims("")

	noExpiry := testClaims("user-a")
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name     string
		token    string
		wantCode apperrors.Code
	}{
		{"empty token", "", apperrors.CodeTokenMissing},
		{"garbage token", "not-a-jwt", apperrors.CodeTokenInvalid},
		{"wrong secret", mintToken(t, "other-secret", testClaims("user-a")), apperrors.CodeTokenInvalid},
		{"expired", mintToken(t, testTokenSecret, expired), apperrors.CodeTokenExpired},
		{"not yet valid", mintToken(t, testTokenSecret, notYetValid), apperrors.CodeTokenInvalid},
		{"wrong issuer", mintToken(t, testTokenSecret, wrongIssuer), apperrors.CodeTokenInvalid},
		{"wrong audience", mintToken(t, testTokenSecret, wrongAudience), apperrors.CodeTokenInvalid},
		{"missing subject", mintToken(t, testTokenSecret, noSubject), apperrors.CodeTokenInvalid},
		{"missing expiry", mintToken(t, testTokenSecret, noExpiry), apperrors.CodeTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testVerifier().verify(tt.token)
			if err == nil {
				t.Fatal("expected verification error")
			}
			if got := apperrors.CodeOf(err); got != tt.wantCode {
				t.Fatalf("error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	t.Parallel()

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, testClaims("user-a")).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("mint unsigned token: %v", err)
	}

	_, err = testVerifier().verify(unsigned)
	if err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
	if got := apperrors.CodeOf(err); got != apperrors.CodeTokenInvalid {
		t.Fatalf("error code = %q, want %q", got, apperrors.CodeTokenInvalid)
	}
}

func TestAuthorizeGrantsProjectMember(t *testing.T) {
	t.Parallel()

	directory := newFakeDirectory()
	directory.addUser(chatdomain.UserRef{ID: "user-a", Handle: "ava", DisplayName: "Ava Torres"})
	directory.addProject(chatdomain.ProjectRef{ID: "proj-1", Name: "Launch"}, "user-a")
	authorizer := newDirectoryAuthorizer(testVerifier(), directory)

	grant, err := authorizer.Authorize(context.Background(), mintToken(t, testTokenSecret, testClaims("user-a")), "proj-1")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if grant.userID != "user-a" || grant.displayName != "Ava Torres" {
		t.Fatalf("grant identity = (%q, %q)", grant.userID, grant.displayName)
	}
	if grant.projectID != "proj-1" || grant.projectName != "Launch" {
		t.Fatalf("grant project = (%q, %q)", grant.projectID, grant.projectName)
	}
}

func TestAuthorizeUnknownProject(t *testing.T) {
	t.Parallel()

	directory := newFakeDirectory()
	directory.addUser(chatdomain.UserRef{ID: "user-a", Handle: "ava", DisplayName: "Ava Torres"})
	authorizer := newDirectoryAuthorizer(testVerifier(), directory)

	_, err := authorizer.Authorize(context.Background(), mintToken(t, testTokenSecret, testClaims("user-a")), "proj-missing")
	if got := apperrors.CodeOf(err); got != apperrors.CodeProjectNotFound {
		t.Fatalf("error code = %q, want %q", got, apperrors.CodeProjectNotFound)
	}
}

func TestAuthorizeRequiresMembership(t *testing.T) {
	t.Parallel()

	directory := newFakeDirectory()
	directory.addUser(chatdomain.UserRef{ID: "user-a", Handle: "ava", DisplayName: "Ava Torres"})
	directory.addProject(chatdomain.ProjectRef{ID: "proj-1", Name: "Launch"}, "someone-else")
	authorizer := newDirectoryAuthorizer(testVerifier(), directory)

	_, err := authorizer.Authorize(context.Background(), mintToken(t, testTokenSecret, testClaims("user-a")), "proj-1")
	if got := apperrors.CodeOf(err); got != apperrors.CodeProjectMemberRequired {
		t.Fatalf("error code = %q, want %q", got, apperrors.CodeProjectMemberRequired)
	}
}

func TestAuthorizeResolvesDisplayNameFromDirectory(t *testing.T) {
	t.Parallel()

	directory := newFakeDirectory()
	directory.addUser(chatdomain.UserRef{ID: "user-a", Handle: "ava", DisplayName: "Ava Torres"})
	directory.addProject(chatdomain.ProjectRef{ID: "proj-1", Name: "Launch"}, "user-a")
	authorizer := newDirectoryAuthorizer(testVerifier(), directory)

	claims := testClaims("user-a")
	claims.DisplayName = ""
	grant, err := authorizer.Authorize(context.Background(), mintToken(t, testTokenSecret, claims), "proj-1")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if grant.displayName != "Ava Torres" {
		t.Fatalf("display name = %q, want directory fallback", grant.displayName)
	}
}

func TestAuthorizeDirectoryOutage(t *testing.T) {
	t.Parallel()

	directory := newFakeDirectory()
	directory.lookupErr = context.DeadlineExceeded
	authorizer := newDirectoryAuthorizer(testVerifier(), directory)

	_, err := authorizer.Authorize(context.Background(), mintToken(t, testTokenSecret, testClaims("user-a")), "proj-1")
	if got := apperrors.CodeOf(err); got != apperrors.CodeStorageUnavailable {
		t.Fatalf("error code = %q, want %q", got, apperrors.CodeStorageUnavailable)
	}
}
