package businessflow

import (
	"context"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/repository"
)

// OnboardingFlow moves accounts through the onboarding sequence and decides
// whether an account may use gated routes
type OnboardingFlow interface {
	MarkPasswordChanged(ctx context.Context, accountID uint, metadata *ClientMetadata) (*dto.MessageResponse, error)
	MarkTermsAccepted(ctx context.Context, accountID uint, metadata *ClientMetadata) (*dto.MessageResponse, error)
	// Gate loads the account and checks both onboarding flags. With
	// requireProfile the company name must also be set.
	Gate(ctx context.Context, accountID uint, requireProfile bool) (*models.Account, error)
	// RequireAdmin loads the account and requires is_admin. Onboarding flags
	// are not checked.
	RequireAdmin(ctx context.Context, accountID uint) (*models.Account, error)
}

// OnboardingFlowImpl implements OnboardingFlow
type OnboardingFlowImpl struct {
	accountRepo repository.AccountRepository
	audit       auditTrail
}

// NewOnboardingFlow creates a new onboarding flow instance
func NewOnboardingFlow(accountRepo repository.AccountRepository, auditRepo repository.AuditLogRepository) OnboardingFlow {
	return &OnboardingFlowImpl{
		accountRepo: accountRepo,
		audit:       newAuditTrail(auditRepo),
	}
}

func (f *OnboardingFlowImpl) MarkPasswordChanged(ctx context.Context, accountID uint, metadata *ClientMetadata) (*dto.MessageResponse, error) {
	if err := f.accountRepo.MarkPasswordChanged(ctx, accountID); err != nil {
		return nil, mapFlagError(err)
	}

	f.audit.record(ctx, &accountID, models.AuditActionPasswordRotationAcked,
		"Password change acknowledged", true, nil, metadata, nil)

	return &dto.MessageResponse{Message: "Password change status updated"}, nil
}

func (f *OnboardingFlowImpl) MarkTermsAccepted(ctx context.Context, accountID uint, metadata *ClientMetadata) (*dto.MessageResponse, error) {
	if err := f.accountRepo.MarkTermsAccepted(ctx, accountID); err != nil {
		return nil, mapFlagError(err)
	}

	f.audit.record(ctx, &accountID, models.AuditActionTermsAccepted,
		"Terms accepted", true, nil, metadata, nil)

	return &dto.MessageResponse{Message: "Terms accepted"}, nil
}

func (f *OnboardingFlowImpl) Gate(ctx context.Context, accountID uint, requireProfile bool) (*models.Account, error) {
	account, err := getAccount(ctx, f.accountRepo, accountID)
	if err != nil {
		return nil, err
	}

	if !account.CompletedOnboardingFlags() {
		return nil, NewBusinessError("ONBOARDING_INCOMPLETE", "User has not completed onboarding", ErrOnboardingIncomplete)
	}

	if requireProfile && !account.HasCompanyProfile() {
		return nil, NewBusinessError("PROFILE_INCOMPLETE", "Company profile is incomplete", ErrProfileIncomplete)
	}

	return account, nil
}

func (f *OnboardingFlowImpl) RequireAdmin(ctx context.Context, accountID uint) (*models.Account, error) {
	account, err := getAccount(ctx, f.accountRepo, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsAdmin {
		return nil, NewBusinessError("ADMIN_REQUIRED", "Access denied. Admins only.", ErrAdminRequired)
	}
	return account, nil
}

func mapFlagError(err error) error {
	if repository.IsNotFound(err) {
		return NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
	}
	return NewBusinessError("ONBOARDING_UPDATE_FAILED", "Failed to update onboarding status", err)
}
