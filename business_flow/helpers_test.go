package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Kappa/app/services"
	"github.com/amirphl/Kappa/models"
	testingutil "github.com/amirphl/Kappa/testing"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	accounts *testingutil.FakeAccountRepository
	audit    *testingutil.FakeAuditLogRepository
	mailer   *testingutil.FakeMailer
	tokens   services.TokenService
	consumed *services.MemoryTokenStore
	captcha  *testingutil.FakeCaptcha
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tokens, err := services.NewTokenService(time.Hour, 15*time.Minute, "kappa", "kappa-api", "test-secret")
	require.NoError(t, err)
	return &authFixture{
		accounts: testingutil.NewFakeAccountRepository(),
		audit:    testingutil.NewFakeAuditLogRepository(),
		mailer:   &testingutil.FakeMailer{},
		tokens:   tokens,
		consumed: services.NewMemoryTokenStore(),
		captcha:  &testingutil.FakeCaptcha{Valid: true},
	}
}

func (f *authFixture) flow(policy AuthPolicy) AuthFlow {
	if policy.BcryptCost == 0 {
		policy.BcryptCost = bcrypt.MinCost
	}
	if policy.FrontendURL == "" {
		policy.FrontendURL = "https://app.example.com"
	}
	return NewAuthFlow(f.accounts, f.audit, &testingutil.FakeTransactor{}, f.tokens,
		f.mailer, f.captcha, f.consumed, policy)
}

// seedAccount stores an account whose password is testingutil.TestPassword
func seedAccount(t *testing.T, repo *testingutil.FakeAccountRepository, email string, onboarded bool) *models.Account {
	t.Helper()
	a := testingutil.NewAccount(onboarded)
	a.Email = email
	return repo.Put(a)
}

func ctx() context.Context {
	return context.Background()
}
