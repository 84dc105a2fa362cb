package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/app/services"
	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/repository"
	"github.com/amirphl/Kappa/utils"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

const inviteSubject = "הוזמנת למערכת"

// AdminPolicy holds admin listing bounds and invite settings
type AdminPolicy struct {
	DefaultLimit int
	MaxLimit     int
	FrontendURL  string
	BcryptCost   int
}

// AdminFlow handles account administration and the report log
type AdminFlow interface {
	ListAccounts(ctx context.Context, req *dto.ListRequest) (*dto.AdminAccountListResponse, error)
	Promote(ctx context.Context, actorID, accountID uint, metadata *ClientMetadata) (*dto.PromoteResponse, error)
	Delete(ctx context.Context, actorID, accountID uint, metadata *ClientMetadata) (*dto.MessageResponse, error)
	Invite(ctx context.Context, actorID uint, req *dto.InviteRequest, metadata *ClientMetadata) (*dto.MessageResponse, error)
	ListReports(ctx context.Context, req *dto.ListRequest) (*dto.ReportListResponse, error)
	ExportReports(ctx context.Context) (*dto.ReportExport, error)
	// ReportDownloadURL returns a presigned archive URL for archived reports,
	// the local pdfUrl otherwise
	ReportDownloadURL(ctx context.Context, reportID uint) (string, error)
}

// AdminFlowImpl implements AdminFlow
type AdminFlowImpl struct {
	accountRepo     repository.AccountRepository
	reportRepo      repository.ReportLogRepository
	tx              repository.Transactor
	notificationSvc services.NotificationService
	archive         services.ReportArchive
	audit           auditTrail
	policy          AdminPolicy
}

// NewAdminFlow creates a new admin flow instance. archive may be nil.
func NewAdminFlow(
	accountRepo repository.AccountRepository,
	reportRepo repository.ReportLogRepository,
	auditRepo repository.AuditLogRepository,
	tx repository.Transactor,
	notificationSvc services.NotificationService,
	archive services.ReportArchive,
	policy AdminPolicy,
) AdminFlow {
	if policy.BcryptCost == 0 {
		policy.BcryptCost = utils.DefaultBcryptCost
	}
	return &AdminFlowImpl{
		accountRepo:     accountRepo,
		reportRepo:      reportRepo,
		tx:              tx,
		notificationSvc: notificationSvc,
		archive:         archive,
		audit:           newAuditTrail(auditRepo),
		policy:          policy,
	}
}

func (f *AdminFlowImpl) limit(req *dto.ListRequest) (int, int) {
	if req == nil {
		return f.policy.DefaultLimit, 0
	}
	limit := req.Limit
	if limit <= 0 {
		limit = f.policy.DefaultLimit
	}
	if f.policy.MaxLimit > 0 && limit > f.policy.MaxLimit {
		limit = f.policy.MaxLimit
	}
	return limit, max(req.Offset, 0)
}

// ListAccounts returns accounts in creation order with the total count
func (f *AdminFlowImpl) ListAccounts(ctx context.Context, req *dto.ListRequest) (*dto.AdminAccountListResponse, error) {
	limit, offset := f.limit(req)

	accounts, err := f.accountRepo.ByFilter(ctx, models.AccountFilter{}, "created_at ASC, id ASC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LIST_FAILED", "Failed to load users", err)
	}
	total, err := f.accountRepo.Count(ctx, models.AccountFilter{})
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LIST_FAILED", "Failed to load users", err)
	}

	out := make([]dto.AdminAccountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, ToAdminAccountDTO(a))
	}
	return &dto.AdminAccountListResponse{Accounts: out, Total: total}, nil
}

// Promote grants admin. Promoting an admin again is a no-op.
func (f *AdminFlowImpl) Promote(ctx context.Context, actorID, accountID uint, metadata *ClientMetadata) (*dto.PromoteResponse, error) {
	if err := f.accountRepo.SetAdmin(ctx, accountID); err != nil {
		if repository.IsNotFound(err) {
			return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
		}
		return nil, NewBusinessError("PROMOTE_FAILED", "Failed to promote user", err)
	}

	account, err := getAccount(ctx, f.accountRepo, accountID)
	if err != nil {
		return nil, err
	}

	f.audit.record(ctx, &accountID, models.AuditActionAccountPromoted,
		fmt.Sprintf("Account %d promoted by %d", accountID, actorID), true, nil, metadata, nil)

	return &dto.PromoteResponse{
		Message: "User promoted to admin",
		User:    ToAdminAccountDTO(account),
	}, nil
}

// Delete hard deletes an account. Its report log entries are kept.
func (f *AdminFlowImpl) Delete(ctx context.Context, actorID, accountID uint, metadata *ClientMetadata) (*dto.MessageResponse, error) {
	deleted, err := f.accountRepo.DeleteByID(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("DELETE_FAILED", "Failed to delete user", err)
	}
	if !deleted {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
	}

	f.audit.record(ctx, &accountID, models.AuditActionAccountDeleted,
		fmt.Sprintf("Account %d deleted by %d", accountID, actorID), true, nil, metadata, nil)

	return &dto.MessageResponse{Message: "User deleted"}, nil
}

// Invite creates an account with a temporary password and emails it
func (f *AdminFlowImpl) Invite(ctx context.Context, actorID uint, req *dto.InviteRequest, metadata *ClientMetadata) (*dto.MessageResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		return nil, NewBusinessError("INVALID_EMAIL_ADDRESS", "Invalid email address", ErrInvalidEmailAddress)
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, NewBusinessError("INVITE_FAILED", "Failed to invite user", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), f.policy.BcryptCost)
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
		return nil, NewBusinessError("INVITE_FAILED", "Failed to invite user", err)
	}

	f.audit.record(ctx, accountIDPtr(account), models.AuditActionAccountInvited,
		fmt.Sprintf("Account %d invited by %d", account.ID, actorID), true, nil, metadata, nil)

	text, body := inviteEmail(tempPassword, f.policy.FrontendURL)
	if err := f.notificationSvc.SendEmail(email, inviteSubject, text, body); err != nil {
		log.Printf("invite email to account %d failed: %v", account.ID, err)
		return nil, NewBusinessError("MAIL_DELIVERY_FAILED", "Failed to send email", fmt.Errorf("%w: %v", ErrMailDelivery, err))
	}

	return &dto.MessageResponse{Message: "User invited and email sent."}, nil
}

// ListReports returns report log entries newest first
func (f *AdminFlowImpl) ListReports(ctx context.Context, req *dto.ListRequest) (*dto.ReportListResponse, error) {
	limit, offset := f.limit(req)

	entries, err := f.reportRepo.ListWithAccount(ctx, limit, offset)
	if err != nil {
		return nil, NewBusinessError("REPORT_LIST_FAILED", "Failed to load reports", err)
	}

	out := make([]dto.ReportDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToReportDTO(e))
	}
	return &dto.ReportListResponse{Reports: out}, nil
}

// ExportReports builds an xlsx workbook of the whole report log
func (f *AdminFlowImpl) ExportReports(ctx context.Context) (*dto.ReportExport, error) {
	entries, err := f.reportRepo.ListWithAccount(ctx, 0, 0)
	if err != nil {
		return nil, NewBusinessError("REPORT_LIST_FAILED", "Failed to load reports", err)
	}

	xl := excelize.NewFile()
	defer func() {
		if err := xl.Close(); err != nil {
			log.Printf("failed to close workbook: %v", err)
		}
	}()

	const sheet = "reports"
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to export reports", err)
	}

	header := []any{"id", "created_at", "type", "user_email", "prompt", "image_count", "pdf_url"}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to export reports", err)
	}

	for i, e := range entries {
		email := ""
		if e.Account != nil {
			email = e.Account.Email
		}
		row := []any{e.ID, e.CreatedAt.UTC().Format(time.RFC3339), e.Type, email, e.Prompt, len(e.Images), e.PDFURL}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to export reports", err)
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to export reports", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to export reports", err)
	}

	return &dto.ReportExport{FileName: "reports.xlsx", Content: buf.Bytes()}, nil
}

func (f *AdminFlowImpl) ReportDownloadURL(ctx context.Context, reportID uint) (string, error) {
	entry, err := f.reportRepo.ByID(ctx, reportID)
	if err != nil {
		return "", NewBusinessError("REPORT_LOOKUP_FAILED", "Failed to load report", err)
	}
	if entry == nil {
		return "", NewBusinessError("REPORT_NOT_FOUND", "Report not found", ErrReportNotFound)
	}

	if f.archive != nil && entry.ArchiveKey != nil && *entry.ArchiveKey != "" {
		url, err := f.archive.PresignedURL(ctx, *entry.ArchiveKey)
		if err == nil {
			return url, nil
		}
		log.Printf("presign failed for report %d, falling back to local copy: %v", entry.ID, err)
	}

	return entry.PDFURL, nil
}

func generateTempPassword() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func inviteEmail(tempPassword, frontendURL string) (string, string) {
	text := fmt.Sprintf("הוזמנת להשתמש במערכת. הסיסמה הזמנית שלך היא: %s. התחבר כאן: %s", tempPassword, frontendURL)
	link := html.EscapeString(frontendURL)
	body := fmt.Sprintf(`<div dir="rtl" style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2>הוזמנת להשתמש במערכת</h2>
  <p>הסיסמה הזמנית שלך:</p>
  <p style="font-size: 1.2em; font-weight: bold;">%s</p>
  <p>באפשרותך להתחבר למערכת בקישור הבא:</p>
  <p><a href="%s" style="color: #2563eb;">%s</a></p>
  <p>אם לא ביקשת את ההזמנה הזו, ניתן להתעלם מהודעה זו.</p>
</div>`, html.EscapeString(tempPassword), link, link)
	return text, body
}
