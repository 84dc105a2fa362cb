package businessflow

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/models"
	testingutil "github.com/amirphl/Kappa/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

type adminFixture struct {
	accounts *testingutil.FakeAccountRepository
	reports  *testingutil.FakeReportLogRepository
	mailer   *testingutil.FakeMailer
	archive  *testingutil.FakeArchive
	flow     AdminFlow
}

func newAdminFixture(policy AdminPolicy) *adminFixture {
	if policy.BcryptCost == 0 {
		policy.BcryptCost = bcrypt.MinCost
	}
	if policy.FrontendURL == "" {
		policy.FrontendURL = "https://app.example.com"
	}
	fx := &adminFixture{
		accounts: testingutil.NewFakeAccountRepository(),
		mailer:   &testingutil.FakeMailer{},
		archive:  &testingutil.FakeArchive{},
	}
	fx.reports = testingutil.NewFakeReportLogRepository(fx.accounts)
	fx.flow = NewAdminFlow(fx.accounts, fx.reports, testingutil.NewFakeAuditLogRepository(),
		&testingutil.FakeTransactor{}, fx.mailer, fx.archive, policy)
	return fx
}

func TestAdminFlow_ListAccounts(t *testing.T) {
	fx := newAdminFixture(AdminPolicy{MaxLimit: 2})
	first := seedAccount(t, fx.accounts, "a@example.com", true)
	seedAccount(t, fx.accounts, "b@example.com", false)
	seedAccount(t, fx.accounts, "c@example.com", false)

	t.Run("without limit returns everything in creation order", func(t *testing.T) {
		fxAll := newAdminFixture(AdminPolicy{})
		seedAccount(t, fxAll.accounts, "a@example.com", true)
		seedAccount(t, fxAll.accounts, "b@example.com", true)
		seedAccount(t, fxAll.accounts, "c@example.com", true)

		resp, err := fxAll.flow.ListAccounts(ctx(), &dto.ListRequest{})
		require.NoError(t, err)
		require.Len(t, resp.Accounts, 3)
		assert.Equal(t, "a@example.com", resp.Accounts[0].Email)
		assert.Equal(t, "c@example.com", resp.Accounts[2].Email)
		assert.Equal(t, int64(3), resp.Total)
	})

	t.Run("limit capped by max", func(t *testing.T) {
		resp, err := fx.flow.ListAccounts(ctx(), &dto.ListRequest{Limit: 50})
		require.NoError(t, err)
		assert.Len(t, resp.Accounts, 2)
		assert.Equal(t, first.Email, resp.Accounts[0].Email)
		assert.Equal(t, int64(3), resp.Total)
	})

	t.Run("offset", func(t *testing.T) {
		resp, err := fx.flow.ListAccounts(ctx(), &dto.ListRequest{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, resp.Accounts, 1)
		assert.Equal(t, "c@example.com", resp.Accounts[0].Email)
	})
}

func TestAdminFlow_PromoteAndDelete(t *testing.T) {
	fx := newAdminFixture(AdminPolicy{})
	admin := seedAccount(t, fx.accounts, "admin@example.com", true)
	member := seedAccount(t, fx.accounts, "member@example.com", true)

	resp, err := fx.flow.Promote(ctx(), admin.ID, member.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "User promoted to admin", resp.Message)
	assert.True(t, resp.User.IsAdmin)

	// Idempotent
	_, err = fx.flow.Promote(ctx(), admin.ID, member.ID, nil)
	require.NoError(t, err)

	_, err = fx.flow.Promote(ctx(), admin.ID, 999, nil)
	assert.True(t, IsAccountNotFound(err))

	require.NoError(t, fx.reports.Save(ctx(), &models.ReportLog{
		AccountID: member.ID, Type: models.ReportTypeLeakDetection, Prompt: "p", PDFURL: "/uploads/leak-1.pdf",
	}))

	del, err := fx.flow.Delete(ctx(), admin.ID, member.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "User deleted", del.Message)
	assert.Nil(t, fx.accounts.Get(member.ID))

	_, err = fx.flow.Delete(ctx(), admin.ID, member.ID, nil)
	assert.True(t, IsAccountNotFound(err))

	reports, err := fx.flow.ListReports(ctx(), nil)
	require.NoError(t, err)
	require.Len(t, reports.Reports, 1, "report log outlives the account")
	assert.Nil(t, reports.Reports[0].User)
}

func TestAdminFlow_Invite(t *testing.T) {
	fx := newAdminFixture(AdminPolicy{})
	admin := seedAccount(t, fx.accounts, "admin@example.com", true)

	_, err := fx.flow.Invite(ctx(), admin.ID, &dto.InviteRequest{Email: "no-at-sign"}, nil)
	assert.True(t, IsInvalidEmailAddress(err))

	_, err = fx.flow.Invite(ctx(), admin.ID, &dto.InviteRequest{Email: "admin@example.com"}, nil)
	assert.True(t, IsAccountAlreadyExists(err))

	resp, err := fx.flow.Invite(ctx(), admin.ID, &dto.InviteRequest{Email: "new@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "User invited and email sent.", resp.Message)

	invited, err := fx.accounts.ByEmail(ctx(), "new@example.com")
	require.NoError(t, err)
	require.NotNil(t, invited)
	assert.False(t, invited.HasChangedPassword)
	assert.False(t, invited.HasAcceptedTerms)
	assert.False(t, invited.IsAdmin)

	sent := fx.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "new@example.com", sent[0].To)
	assert.Contains(t, sent[0].Text, "https://app.example.com")

	// The temporary password is 8 hex chars and appears in the mail
	var temp string
	for _, field := range strings.Fields(sent[0].Text) {
		field = strings.TrimSuffix(field, ".")
		if len(field) == 8 && bcrypt.CompareHashAndPassword([]byte(invited.PasswordHash), []byte(field)) == nil {
			temp = field
		}
	}
	assert.NotEmpty(t, temp)
}

func TestAdminFlow_InviteMailFailure(t *testing.T) {
	fx := newAdminFixture(AdminPolicy{})
	fx.mailer.Err = errors.New("smtp down")

	_, err := fx.flow.Invite(ctx(), 1, &dto.InviteRequest{Email: "new@example.com"}, nil)
	assert.True(t, IsMailDelivery(err))

	invited, err := fx.accounts.ByEmail(ctx(), "new@example.com")
	require.NoError(t, err)
	assert.NotNil(t, invited, "account exists even when the mail fails")
}

func seedReports(t *testing.T, fx *adminFixture, owner *models.Account) {
	t.Helper()
	key := "reports/2026/01/02/leak-2.pdf"
	require.NoError(t, fx.reports.Save(ctx(), &models.ReportLog{
		AccountID: owner.ID, Type: models.ReportTypeLeakDetection, Prompt: "first",
		Images: []models.ReportImage{{URL: "/uploads/images/a.png", Description: "a"}}, PDFURL: "/uploads/leak-1.pdf",
	}))
	require.NoError(t, fx.reports.Save(ctx(), &models.ReportLog{
		AccountID: owner.ID, Type: models.ReportTypeLeakDetection, Prompt: "second",
		PDFURL: "/uploads/leak-2.pdf", ArchiveKey: &key,
	}))
}

func TestAdminFlow_ListReports(t *testing.T) {
	fx := newAdminFixture(AdminPolicy{})
	owner := seedAccount(t, fx.accounts, "owner@example.com", true)
	seedReports(t, fx, owner)

	resp, err := fx.flow.ListReports(ctx(), &dto.ListRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Reports, 2)
	assert.Equal(t, "second", resp.Reports[0].Prompt, "newest first")
	assert.True(t, resp.Reports[0].Archived)
	require.NotNil(t, resp.Reports[1].User)
	assert.Equal(t, "owner@example.com", resp.Reports[1].User.Email)
	assert.Equal(t, "/uploads/images/a.png", resp.Reports[1].Images[0].URL)
}

func TestAdminFlow_ExportReports(t *testing.T) {
	fx := newAdminFixture(AdminPolicy{})
	owner := seedAccount(t, fx.accounts, "owner@example.com", true)
	seedReports(t, fx, owner)

	export, err := fx.flow.ExportReports(ctx())
	require.NoError(t, err)
	assert.Equal(t, "reports.xlsx", export.FileName)

	xl, err := excelize.OpenReader(bytes.NewReader(export.Content))
	require.NoError(t, err)
	defer xl.Close()

	rows, err := xl.GetRows("reports")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "created_at", "type", "user_email", "prompt", "image_count", "pdf_url"}, rows[0])
	assert.Equal(t, "owner@example.com", rows[1][3])
	assert.Equal(t, "second", rows[1][4])
	assert.Equal(t, "1", rows[2][5])
}

func TestAdminFlow_ReportDownloadURL(t *testing.T) {
	fx := newAdminFixture(AdminPolicy{})
	owner := seedAccount(t, fx.accounts, "owner@example.com", true)
	seedReports(t, fx, owner)

	local, err := fx.flow.ReportDownloadURL(ctx(), 1)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/leak-1.pdf", local)

	archived, err := fx.flow.ReportDownloadURL(ctx(), 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(archived, "https://archive.example.com/reports/2026/01/02/"))

	fx.archive.PresignErr = errors.New("expired credentials")
	fallback, err := fx.flow.ReportDownloadURL(ctx(), 2)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/leak-2.pdf", fallback)

	_, err = fx.flow.ReportDownloadURL(ctx(), 99)
	assert.True(t, IsReportNotFound(err))

}
