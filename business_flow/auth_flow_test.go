package businessflow

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/models"
	testingutil "github.com/amirphl/Kappa/testing"
	"github.com/amirphl/Kappa/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthFlow_Register(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{})

	resp, err := flow.Register(ctx(), &dto.RegisterRequest{Email: "owner@example.com", Password: "secret1"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "owner@example.com", resp.User.Email)

	stored := fx.accounts.Get(resp.User.ID)
	require.NotNil(t, stored)
	assert.False(t, stored.HasChangedPassword)
	assert.False(t, stored.HasAcceptedTerms)
	assert.False(t, stored.IsAdmin)
	assert.Equal(t, int64(1), stored.InvoiceCounter)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))

	claims, err := fx.tokens.ValidateSessionToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.AccountID)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := flow.Register(ctx(), &dto.RegisterRequest{Email: "owner@example.com", Password: "another1"}, nil)
		require.Error(t, err)
		assert.True(t, IsAccountAlreadyExists(err))
		assert.Equal(t, "ACCOUNT_ALREADY_EXISTS", ErrorCode(err))
	})

	assert.Contains(t, fx.audit.Actions(), models.AuditActionRegister)
}

func TestAuthFlow_Login(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	t.Run("success returns flags and profile", func(t *testing.T) {
		resp, err := flow.Login(ctx(), &dto.LoginRequest{Email: "owner@example.com", Password: testingutil.TestPassword}, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, account.ID, resp.User.ID)
		assert.Equal(t, account.CompanyName, resp.User.CompanyName)
		assert.True(t, resp.User.HasChangedPassword)
		assert.True(t, resp.User.HasAcceptedTerms)
		assert.False(t, resp.User.IsAdmin)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		_, errWrong := flow.Login(ctx(), &dto.LoginRequest{Email: "owner@example.com", Password: "nope"}, nil)
		_, errUnknown := flow.Login(ctx(), &dto.LoginRequest{Email: "ghost@example.com", Password: "nope"}, nil)
		require.Error(t, errWrong)
		require.Error(t, errUnknown)
		assert.True(t, IsInvalidCredentials(errWrong))
		assert.True(t, IsInvalidCredentials(errUnknown))
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
	})

	assert.Contains(t, fx.audit.Actions(), models.AuditActionLoginFailed)
	assert.Contains(t, fx.audit.Actions(), models.AuditActionLoginSuccess)
}

func TestAuthFlow_UpdatePassword(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{})
	account := seedAccount(t, fx.accounts, "owner@example.com", false)

	tests := []struct {
		name    string
		id      uint
		old     string
		wantErr func(error) bool
	}{
		{name: "unknown account", id: 999, old: testingutil.TestPassword, wantErr: IsAccountNotFound},
		{name: "wrong old password", id: account.ID, old: "wrong", wantErr: IsInvalidOldPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flow.UpdatePassword(ctx(), tt.id, &dto.UpdatePasswordRequest{OldPassword: tt.old, NewPassword: "fresh-pass"}, nil)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err))
		})
	}

	resp, err := flow.UpdatePassword(ctx(), account.ID, &dto.UpdatePasswordRequest{OldPassword: testingutil.TestPassword, NewPassword: "fresh-pass"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Password updated", resp.Message)

	_, err = flow.Login(ctx(), &dto.LoginRequest{Email: account.Email, Password: "fresh-pass"}, nil)
	assert.NoError(t, err)
	_, err = flow.Login(ctx(), &dto.LoginRequest{Email: account.Email, Password: testingutil.TestPassword}, nil)
	assert.True(t, IsInvalidCredentials(err))
}

func TestAuthFlow_UpdateProfile(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	t.Run("no fields", func(t *testing.T) {
		_, err := flow.UpdateProfile(ctx(), account.ID, &dto.UpdateProfileRequest{}, nil)
		assert.True(t, IsNoProfileFields(err))
	})

	t.Run("partial update keeps other fields", func(t *testing.T) {
		resp, err := flow.UpdateProfile(ctx(), account.ID, &dto.UpdateProfileRequest{
			CompanyAddress: utils.ToPtr("1 Harbor Rd"),
			CompanyPhone:   utils.ToPtr(""),
		}, nil)
		require.NoError(t, err)
		assert.Nil(t, resp.Token)
		assert.Equal(t, account.ID, resp.User.ID)
		assert.Equal(t, "1 Harbor Rd", resp.User.CompanyAddress)
		assert.Equal(t, "", resp.User.CompanyPhone)
		assert.Equal(t, account.CompanyName, resp.User.CompanyName)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := flow.UpdateProfile(ctx(), 999, &dto.UpdateProfileRequest{CompanyName: utils.ToPtr("X")}, nil)
		assert.True(t, IsAccountNotFound(err))
	})
}

func TestAuthFlow_GetProfile(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{})
	account := seedAccount(t, fx.accounts, "owner@example.com", false)

	details, err := flow.GetProfile(ctx(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingStatePasswordTemporary, details.OnboardingState)
	assert.Equal(t, int64(1), details.InvoiceCounter)

	_, err = flow.GetProfile(ctx(), 999)
	assert.True(t, IsAccountNotFound(err))
}

func resetTokenFromMail(t *testing.T, mail testingutil.SentEmail) string {
	t.Helper()
	idx := strings.Index(mail.Text, "https://")
	require.GreaterOrEqual(t, idx, 0)
	u, err := url.Parse(strings.TrimSpace(mail.Text[idx:]))
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", u.Path)
	return u.Query().Get("token")
}

func TestAuthFlow_ForgotAndResetPassword(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	_, err := flow.ForgotPassword(ctx(), &dto.ForgotPasswordRequest{Email: "ghost@example.com"}, nil)
	assert.True(t, IsAccountNotFound(err))

	resp, err := flow.ForgotPassword(ctx(), &dto.ForgotPasswordRequest{Email: account.Email}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Password reset email sent", resp.Message)

	sent := fx.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, account.Email, sent[0].To)
	assert.Equal(t, "Password Reset Request", sent[0].Subject)
	assert.True(t, strings.HasPrefix(sent[0].Text, "To reset your password, visit: https://app.example.com/reset-password?token="))
	assert.Contains(t, sent[0].HTML, "15 minutes")
	token := resetTokenFromMail(t, sent[0])

	t.Run("missing fields", func(t *testing.T) {
		_, err := flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: token}, nil)
		assert.True(t, IsResetFieldsRequired(err))
	})

	t.Run("session token is not a reset token", func(t *testing.T) {
		session, err := fx.tokens.GenerateSessionToken(account.ID)
		require.NoError(t, err)
		_, err = flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: session, Password: "long-enough"}, nil)
		assert.True(t, IsInvalidResetToken(err))
	})

	t.Run("short password", func(t *testing.T) {
		_, err := flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: token, Password: "short"}, nil)
		assert.True(t, IsPasswordTooShort(err))
	})

	reset, err := flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: token, Password: "long-enough"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Password has been reset", reset.Message)

	_, err = flow.Login(ctx(), &dto.LoginRequest{Email: account.Email, Password: "long-enough"}, nil)
	assert.NoError(t, err)

	t.Run("stateless token can be reused", func(t *testing.T) {
		_, err := flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: token, Password: "another-long"}, nil)
		assert.NoError(t, err)
	})
}

func TestAuthFlow_ResetPasswordSingleUse(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{SingleUseResetTokens: true})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	token, _, err := fx.tokens.GenerateResetToken(account.ID)
	require.NoError(t, err)

	_, err = flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: token, Password: "long-enough"}, nil)
	require.NoError(t, err)

	_, err = flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: token, Password: "long-enough-2"}, nil)
	assert.True(t, IsInvalidResetToken(err))
}

func TestAuthFlow_ResetPasswordUnknownAccount(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{})

	token, _, err := fx.tokens.GenerateResetToken(42)
	require.NoError(t, err)

	_, err = flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: token, Password: "long-enough"}, nil)
	assert.True(t, IsAccountNotFound(err))
}

func TestAuthFlow_ForgotPasswordPolicies(t *testing.T) {
	t.Run("uniform response for unknown email", func(t *testing.T) {
		fx := newAuthFixture(t)
		flow := fx.flow(AuthPolicy{UniformForgotResponse: true})

		resp, err := flow.ForgotPassword(ctx(), &dto.ForgotPasswordRequest{Email: "ghost@example.com"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Password reset email sent", resp.Message)
		assert.Empty(t, fx.mailer.Sent())
	})

	t.Run("mail failure", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.mailer.Err = errors.New("relay down")
		flow := fx.flow(AuthPolicy{})
		seedAccount(t, fx.accounts, "owner@example.com", true)

		_, err := flow.ForgotPassword(ctx(), &dto.ForgotPasswordRequest{Email: "owner@example.com"}, nil)
		assert.True(t, IsMailDelivery(err))
	})

	t.Run("captcha required when enabled", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.captcha.Valid = false
		flow := fx.flow(AuthPolicy{CaptchaEnabled: true})
		seedAccount(t, fx.accounts, "owner@example.com", true)

		angle := 90.0
		_, err := flow.ForgotPassword(ctx(), &dto.ForgotPasswordRequest{Email: "owner@example.com", ChallengeID: "c", UserAngle: &angle}, nil)
		assert.True(t, IsInvalidCaptcha(err))

		fx.captcha.Valid = true
		_, err = flow.ForgotPassword(ctx(), &dto.ForgotPasswordRequest{Email: "owner@example.com"}, nil)
		assert.True(t, IsInvalidCaptcha(err), "missing angle")

		_, err = flow.ForgotPassword(ctx(), &dto.ForgotPasswordRequest{Email: "owner@example.com", ChallengeID: "c", UserAngle: &angle}, nil)
		assert.NoError(t, err)
	})
}

func TestAuthFlow_Captcha(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.flow(AuthPolicy{}).Captcha(ctx())
	assert.True(t, IsCaptchaDisabled(err))

	resp, err := fx.flow(AuthPolicy{CaptchaEnabled: true}).Captcha(ctx())
	require.NoError(t, err)
	assert.Equal(t, "challenge-1", resp.ChallengeID)
	assert.NotEmpty(t, resp.MasterImage)
}

func TestAuthFlow_ExpiredResetToken(t *testing.T) {
	fx := newAuthFixture(t)
	flow := fx.flow(AuthPolicy{})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	issued := time.Now().Add(-16 * time.Minute)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": account.ID,
		"token_type": "reset",
		"jti":        "expired-1",
		"iat":        issued.Unix(),
		"exp":        issued.Add(15 * time.Minute).Unix(),
		"iss":        "kappa",
		"aud":        "kappa-api",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = flow.ResetPassword(ctx(), &dto.ResetPasswordRequest{Token: token, Password: "long-enough"}, nil)
	assert.True(t, IsInvalidResetToken(err))
}
