package testing

import (
	"fmt"
	"math/rand/v2"

	"github.com/amirphl/Kappa/models"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain password of every fixture account
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// NewAccount builds an unsaved account with a random email. Onboarded
// accounts have both flags set and a company name.
func NewAccount(onboarded bool) *models.Account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	a := &models.Account{
		Email:          fmt.Sprintf("owner.%09d@example.com", rand.IntN(1_000_000_000)),
		PasswordHash:   string(hash),
		InvoiceCounter: 1,
	}
	if onboarded {
		a.HasChangedPassword = true
		a.HasAcceptedTerms = true
		a.CompanyName = "Aqua Fix Ltd"
		a.CompanyPhone = "03-5551234"
	}
	return a
}

// CreateTestAccount inserts an account built by NewAccount
func (tf *TestFixtures) CreateTestAccount(onboarded bool) (*models.Account, error) {
	a := NewAccount(onboarded)
	if err := tf.DB.DB.Create(a).Error; err != nil {
		return nil, fmt.Errorf("failed to create test account: %w", err)
	}
	return a, nil
}

// CreateTestReport inserts a leak-detection report log entry for accountID
func (tf *TestFixtures) CreateTestReport(accountID uint) (*models.ReportLog, error) {
	r := &models.ReportLog{
		AccountID: accountID,
		Type:      models.ReportTypeLeakDetection,
		Prompt:    "Damp wall behind the kitchen sink",
		Images:    []models.ReportImage{{URL: "/uploads/images/a.png", Description: "kitchen"}},
		PDFURL:    fmt.Sprintf("/uploads/leak-%d.pdf", rand.IntN(1_000_000)),
	}
	if err := tf.DB.DB.Create(r).Error; err != nil {
		return nil, fmt.Errorf("failed to create test report: %w", err)
	}
	return r, nil
}
