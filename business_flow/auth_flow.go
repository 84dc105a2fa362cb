// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/app/services"
	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/repository"
	"github.com/amirphl/Kappa/utils"
	"golang.org/x/crypto/bcrypt"
)

// AuthPolicy holds the configurable parts of the credential flows
type AuthPolicy struct {
	BcryptCost            int
	FrontendURL           string
	UniformForgotResponse bool
	SingleUseResetTokens  bool
	CaptchaEnabled        bool
}

// AuthFlow handles credentials, sessions, profile edits and password resets
type AuthFlow interface {
	Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	UpdatePassword(ctx context.Context, accountID uint, req *dto.UpdatePasswordRequest, metadata *ClientMetadata) (*dto.MessageResponse, error)
	UpdateProfile(ctx context.Context, accountID uint, req *dto.UpdateProfileRequest, metadata *ClientMetadata) (*dto.UpdateProfileResponse, error)
	GetProfile(ctx context.Context, accountID uint) (*dto.AccountDetailsDTO, error)
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest, metadata *ClientMetadata) (*dto.MessageResponse, error)
	Captcha(ctx context.Context) (*dto.CaptchaResponse, error)
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest, metadata *ClientMetadata) (*dto.MessageResponse, error)
}

// AuthFlowImpl implements AuthFlow
type AuthFlowImpl struct {
	accountRepo     repository.AccountRepository
	tx              repository.Transactor
	tokenService    services.TokenService
	notificationSvc services.NotificationService
	captchaSvc      services.CaptchaService
	consumedTokens  services.ConsumedTokenStore
	audit           auditTrail
	policy          AuthPolicy
}

// NewAuthFlow creates a new auth flow instance
func NewAuthFlow(
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditLogRepository,
	tx repository.Transactor,
	tokenService services.TokenService,
	notificationSvc services.NotificationService,
	captchaSvc services.CaptchaService,
	consumedTokens services.ConsumedTokenStore,
	policy AuthPolicy,
) AuthFlow {
	if policy.BcryptCost == 0 {
		policy.BcryptCost = utils.DefaultBcryptCost
	}
	if consumedTokens == nil {
		consumedTokens = services.NoopTokenStore{}
	}
	return &AuthFlowImpl{
		accountRepo:     accountRepo,
		tx:              tx,
		tokenService:    tokenService,
		notificationSvc: notificationSvc,
		captchaSvc:      captchaSvc,
		consumedTokens:  consumedTokens,
		audit:           newAuditTrail(auditRepo),
		policy:          policy,
	}
}

// Register creates an account with all onboarding flags cleared
func (f *AuthFlowImpl) Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.RegisterResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.policy.BcryptCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	account := &models.Account{
		Email:          email,
		PasswordHash:   string(hash),
		InvoiceCounter: 1,
	}

	err = f.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := f.accountRepo.ByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAccountAlreadyExists
		}
		return f.accountRepo.Save(ctx, account)
	})
	if err != nil {
		if IsAccountAlreadyExists(err) || repository.IsDuplicateKey(err) {
			return nil, NewBusinessError("ACCOUNT_ALREADY_EXISTS", "User already exists", ErrAccountAlreadyExists)
		}
		return nil, NewBusinessError("REGISTER_FAILED", "Registration failed", err)
	}

	token, err := f.tokenService.GenerateSessionToken(account.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}

	f.audit.record(ctx, accountIDPtr(account), models.AuditActionRegister,
		fmt.Sprintf("Account registered: %d", account.ID), true, nil, metadata, nil)

	return &dto.RegisterResponse{
		Token: token,
		User:  toAccountRef(account),
	}, nil
}

// Login verifies credentials. Unknown email and wrong password are indistinguishable.
func (f *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	account, err := f.accountRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		errMsg := "invalid email or password"
		f.audit.record(ctx, accountIDPtr(account), models.AuditActionLoginFailed,
			fmt.Sprintf("Login failed for %s", email), false, &errMsg, metadata, nil)
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrInvalidCredentials)
	}

	token, err := f.tokenService.GenerateSessionToken(account.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}

	f.audit.record(ctx, accountIDPtr(account), models.AuditActionLoginSuccess,
		fmt.Sprintf("User logged in successfully: %d", account.ID), true, nil, metadata, nil)

	return &dto.LoginResponse{
		Token: token,
		User:  ToAccountDTO(account),
	}, nil
}

// UpdatePassword replaces the password after checking the old one. Issued
// session tokens stay valid.
func (f *AuthFlowImpl) UpdatePassword(ctx context.Context, accountID uint, req *dto.UpdatePasswordRequest, metadata *ClientMetadata) (*dto.MessageResponse, error) {
	account, err := getAccount(ctx, f.accountRepo, accountID)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.OldPassword)) != nil {
		return nil, NewBusinessError("INVALID_OLD_PASSWORD", "Invalid old password", ErrInvalidOldPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), f.policy.BcryptCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	if err := f.accountRepo.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		if repository.IsNotFound(err) {
			return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
		}
		return nil, NewBusinessError("PASSWORD_UPDATE_FAILED", "Failed to update password", err)
	}

	f.audit.record(ctx, accountIDPtr(account), models.AuditActionPasswordChanged,
		"Password updated", true, nil, metadata, nil)

	return &dto.MessageResponse{Message: "Password updated"}, nil
}

// UpdateProfile writes the present company fields only
func (f *AuthFlowImpl) UpdateProfile(ctx context.Context, accountID uint, req *dto.UpdateProfileRequest, metadata *ClientMetadata) (*dto.UpdateProfileResponse, error) {
	update := models.ProfileUpdate{
		CompanyName:    req.CompanyName,
		CompanyLogo:    req.CompanyLogo,
		CompanyAddress: req.CompanyAddress,
		CompanyPhone:   req.CompanyPhone,
		CompanyPhone2:  req.CompanyPhone2,
		CompanyEmail:   req.CompanyEmail,
		CompanyWebsite: req.CompanyWebsite,
		CompanyID:      req.CompanyID,
	}
	if update.IsEmpty() {
		return nil, NewBusinessError("NO_PROFILE_FIELDS", "No profile fields provided for update", ErrNoProfileFields)
	}

	var account *models.Account
	err := f.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := f.accountRepo.UpdateProfile(ctx, accountID, update); err != nil {
			if repository.IsNotFound(err) {
				return ErrAccountNotFound
			}
			return err
		}
		var err error
		account, err = f.accountRepo.ByID(ctx, accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}
		return nil
	})
	if err != nil {
		if IsAccountNotFound(err) {
			return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
		}
		return nil, NewBusinessError("PROFILE_UPDATE_FAILED", "Failed to update profile", err)
	}

	f.audit.record(ctx, accountIDPtr(account), models.AuditActionProfileUpdated,
		"Company profile updated", true, nil, metadata, update.Columns())

	return &dto.UpdateProfileResponse{
		Token: nil,
		User: dto.ProfileUserDTO{
			AccountRef:        toAccountRef(account),
			CompanyProfileDTO: toCompanyProfileDTO(account),
		},
	}, nil
}

// GetProfile returns the signed in account
func (f *AuthFlowImpl) GetProfile(ctx context.Context, accountID uint) (*dto.AccountDetailsDTO, error) {
	account, err := getAccount(ctx, f.accountRepo, accountID)
	if err != nil {
		return nil, err
	}
	details := ToAccountDetailsDTO(account)
	return &details, nil
}

// ForgotPassword emails a reset link valid for the reset token lifetime
func (f *AuthFlowImpl) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest, metadata *ClientMetadata) (*dto.MessageResponse, error) {
	if f.policy.CaptchaEnabled {
		angle := 0.0
		if req.UserAngle != nil {
			angle = *req.UserAngle
		}
		if f.captchaSvc == nil || req.UserAngle == nil || !f.captchaSvc.VerifyRotate(ctx, req.ChallengeID, angle) {
			return nil, NewBusinessError("INVALID_CAPTCHA", "Captcha validation failed", ErrInvalidCaptcha)
		}
	}

	email := utils.NormalizeEmail(req.Email)
	sent := &dto.MessageResponse{Message: "Password reset email sent"}

	account, err := f.accountRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("FORGOT_PASSWORD_FAILED", "Forgot password failed", err)
	}
	if account == nil {
		if f.policy.UniformForgotResponse {
			return sent, nil
		}
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
	}

	token, _, err := f.tokenService.GenerateResetToken(account.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}

	resetURL := strings.TrimRight(f.policy.FrontendURL, "/") + "/reset-password?token=" + token
	text, body := resetEmail(account, resetURL)
	if err := f.notificationSvc.SendEmail(account.Email, "Password Reset Request", text, body); err != nil {
		errMsg := err.Error()
		f.audit.record(ctx, accountIDPtr(account), models.AuditActionPasswordResetRequested,
			"Password reset email failed", false, &errMsg, metadata, nil)
		return nil, NewBusinessError("MAIL_DELIVERY_FAILED", "Failed to send email", fmt.Errorf("%w: %v", ErrMailDelivery, err))
	}

	f.audit.record(ctx, accountIDPtr(account), models.AuditActionPasswordResetRequested,
		"Password reset email sent", true, nil, metadata, nil)

	return sent, nil
}

// Captcha issues a rotate challenge for the forgot-password form
func (f *AuthFlowImpl) Captcha(ctx context.Context) (*dto.CaptchaResponse, error) {
	if !f.policy.CaptchaEnabled || f.captchaSvc == nil {
		return nil, NewBusinessError("CAPTCHA_DISABLED", "Captcha is disabled", ErrCaptchaDisabled)
	}

	challenge, err := f.captchaSvc.GenerateRotate(ctx)
	if err != nil {
		return nil, NewBusinessError("CAPTCHA_GENERATION_FAILED", "Failed to generate captcha", err)
	}

	return &dto.CaptchaResponse{
		ChallengeID: challenge.ID,
		MasterImage: challenge.MasterImageBase64,
		ThumbImage:  challenge.ThumbImageBase64,
	}, nil
}

// ResetPassword sets a new password from a valid reset token
func (f *AuthFlowImpl) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest, metadata *ClientMetadata) (*dto.MessageResponse, error) {
	if req.Token == "" || req.Password == "" {
		return nil, NewBusinessError("RESET_FIELDS_REQUIRED", "Token and password are required", ErrResetFieldsRequired)
	}

	claims, err := f.tokenService.ValidateResetToken(req.Token)
	if err != nil {
		errMsg := err.Error()
		f.audit.record(ctx, nil, models.AuditActionPasswordResetFailed,
			"Reset token rejected", false, &errMsg, metadata, nil)
		return nil, NewBusinessError("INVALID_RESET_TOKEN", "Invalid or expired reset token", ErrInvalidResetToken)
	}

	if f.policy.SingleUseResetTokens {
		used, err := f.consumedTokens.IsConsumed(ctx, claims.TokenID)
		if err != nil {
			return nil, NewBusinessError("RESET_FAILED", "Password reset failed", err)
		}
		if used {
			return nil, NewBusinessError("INVALID_RESET_TOKEN", "Invalid or expired reset token", ErrInvalidResetToken)
		}
	}

	account, err := getAccount(ctx, f.accountRepo, claims.AccountID)
	if err != nil {
		return nil, err
	}

	if len(req.Password) < utils.MinResetPasswordLength {
		return nil, NewBusinessError("PASSWORD_TOO_SHORT", "Password too short", ErrPasswordTooShort)
	}

	if f.policy.SingleUseResetTokens {
		first, err := f.consumedTokens.Consume(ctx, claims.TokenID, time.Until(claims.ExpiresAt))
		if err != nil {
			return nil, NewBusinessError("RESET_FAILED", "Password reset failed", err)
		}
		if !first {
			return nil, NewBusinessError("INVALID_RESET_TOKEN", "Invalid or expired reset token", ErrInvalidResetToken)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.policy.BcryptCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	if err := f.accountRepo.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		if repository.IsNotFound(err) {
			return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
		}
		return nil, NewBusinessError("RESET_FAILED", "Password reset failed", err)
	}

	f.audit.record(ctx, accountIDPtr(account), models.AuditActionPasswordResetCompleted,
		"Password has been reset", true, nil, metadata, nil)

	return &dto.MessageResponse{Message: "Password has been reset"}, nil
}

// getAccount loads an account and maps absence to ErrAccountNotFound
func getAccount(ctx context.Context, repo repository.AccountRepository, accountID uint) (*models.Account, error) {
	account, err := repo.ByID(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to load account", err)
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
	}
	return account, nil
}

func resetEmail(account *models.Account, resetURL string) (string, string) {
	text := "To reset your password, visit: " + resetURL
	link := html.EscapeString(resetURL)
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>To choose a new password click <a href="%s">here</a>. The link expires in 15 minutes.</p>
<p>If the button does not work, copy and paste this link:</p>
<pre>%s</pre>`, html.EscapeString(account.Email), link, link)
	return text, body
}
