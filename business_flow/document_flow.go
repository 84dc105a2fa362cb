package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/app/services"
	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/repository"
	"github.com/amirphl/Kappa/utils"
	"github.com/google/uuid"
)

const invoiceDemandFileName = "invoice-demand.pdf"

// DocumentFlow turns a free-text prompt into a rendered PDF
type DocumentFlow interface {
	GenerateInvoiceDemand(ctx context.Context, accountID uint, req *dto.InvoiceDemandRequest, metadata *ClientMetadata) (*dto.DocumentResult, error)
	GenerateLeakDetection(ctx context.Context, accountID uint, req *dto.LeakDetectionRequest, metadata *ClientMetadata) (*dto.DocumentResult, error)
}

// DocumentFlowImpl implements DocumentFlow
type DocumentFlowImpl struct {
	accountRepo repository.AccountRepository
	reportRepo  repository.ReportLogRepository
	completion  services.CompletionProvider
	renderer    services.PDFRenderer
	store       services.FileStore
	archive     services.ReportArchive
	locker      services.KeyedLocker
	audit       auditTrail
}

// NewDocumentFlow creates a new document flow instance. archive may be nil.
func NewDocumentFlow(
	accountRepo repository.AccountRepository,
	reportRepo repository.ReportLogRepository,
	auditRepo repository.AuditLogRepository,
	completion services.CompletionProvider,
	renderer services.PDFRenderer,
	store services.FileStore,
	archive services.ReportArchive,
	locker services.KeyedLocker,
) DocumentFlow {
	return &DocumentFlowImpl{
		accountRepo: accountRepo,
		reportRepo:  reportRepo,
		completion:  completion,
		renderer:    renderer,
		store:       store,
		archive:     archive,
		locker:      locker,
		audit:       newAuditTrail(auditRepo),
	}
}

// GenerateInvoiceDemand renders an invoice-demand letter numbered with the
// account's current counter, then bumps the counter. Generations for one
// account are serialized.
func (f *DocumentFlowImpl) GenerateInvoiceDemand(ctx context.Context, accountID uint, req *dto.InvoiceDemandRequest, metadata *ClientMetadata) (*dto.DocumentResult, error) {
	docType := utils.DocTypeInvoiceDemand
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, NewBusinessError("MISSING_PROMPT", "Missing prompt", ErrMissingPrompt)
	}

	unlock, err := f.locker.Lock(ctx, fmt.Sprintf("%s:%d", utils.InvoiceLockKeyPrefix, accountID))
	if err != nil {
		return nil, f.fail(ctx, docType, accountID, "lock", metadata,
			NewBusinessError("INVOICE_LOCK_FAILED", "Failed to acquire invoice lock", err))
	}
	defer unlock()

	account, err := getAccount(ctx, f.accountRepo, accountID)
	if err != nil {
		return nil, err
	}

	fields, err := f.complete(ctx, docType, prompt)
	if err != nil {
		return nil, f.fail(ctx, docType, accountID, "completion", metadata, err)
	}

	data := mergeDocumentData(fields, account)
	data["invoiceNumber"] = account.InvoiceCounter

	pdf, err := f.render(ctx, services.RenderRequest{
		DocType:  docType,
		Data:     data,
		Header:   map[string]any{"logoUrl": f.store.DataURL(account.CompanyLogo)},
		Optional: map[string]any{},
	})
	if err != nil {
		return nil, f.fail(ctx, docType, accountID, "render", metadata, err)
	}

	next, err := f.accountRepo.IncrementInvoiceCounter(ctx, account.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
		}
		return nil, f.fail(ctx, docType, accountID, "counter", metadata,
			NewBusinessError("INVOICE_COUNTER_FAILED", "Failed to advance invoice counter", err))
	}

	documentsGenerated.WithLabelValues(docType, "success").Inc()
	f.audit.record(ctx, &account.ID, models.AuditActionDocumentGenerated,
		fmt.Sprintf("Invoice demand %d generated", account.InvoiceCounter), true, nil, metadata,
		map[string]any{"type": models.ReportTypeInvoiceDemand, "invoice_number": account.InvoiceCounter, "next_invoice_number": next})

	return &dto.DocumentResult{FileName: invoiceDemandFileName, PDF: pdf}, nil
}

// GenerateLeakDetection renders a leak-detection report, stores the PDF
// under the upload root and records it in the report log
func (f *DocumentFlowImpl) GenerateLeakDetection(ctx context.Context, accountID uint, req *dto.LeakDetectionRequest, metadata *ClientMetadata) (*dto.DocumentResult, error) {
	docType := utils.DocTypeLeakDetection
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, NewBusinessError("MISSING_PROMPT", "Missing prompt", ErrMissingPrompt)
	}

	account, err := getAccount(ctx, f.accountRepo, accountID)
	if err != nil {
		return nil, err
	}

	fields, err := f.complete(ctx, docType, prompt)
	if err != nil {
		return nil, f.fail(ctx, docType, accountID, "completion", metadata, err)
	}

	original := make([]models.ReportImage, 0, len(req.Images))
	for _, img := range req.Images {
		original = append(original, models.ReportImage{URL: img.URL, Description: img.Description})
	}

	optional := map[string]any{}
	if len(original) > 0 {
		inlined := make([]models.ReportImage, 0, len(original))
		for _, img := range original {
			inlined = append(inlined, models.ReportImage{URL: f.store.DataURL(img.URL), Description: img.Description})
		}
		optional["images"] = inlined
	}

	pdf, err := f.render(ctx, services.RenderRequest{
		DocType:  docType,
		Data:     mergeDocumentData(fields, account),
		Header:   map[string]any{"logoUrl": f.store.DataURL(account.CompanyLogo)},
		Optional: optional,
	})
	if err != nil {
		return nil, f.fail(ctx, docType, accountID, "render", metadata, err)
	}

	now := utils.UTCNow()
	fileName := fmt.Sprintf("leak-%d-%s.pdf", now.UnixMilli(), uuid.New().String())
	pdfURL, err := f.store.Save("", fileName, pdf)
	if err != nil {
		return nil, f.fail(ctx, docType, accountID, "store", metadata,
			NewBusinessError("REPORT_STORE_FAILED", "Failed to store report", err))
	}

	var archiveKey *string
	if f.archive != nil {
		key, err := f.archive.Archive(ctx, fileName, pdf, now)
		if err != nil {
			log.Printf("report archive failed for %s: %v", fileName, err)
		} else {
			archiveKey = &key
		}
	}

	entry := &models.ReportLog{
		AccountID:  account.ID,
		Type:       models.ReportTypeLeakDetection,
		Prompt:     req.Prompt,
		Images:     original,
		PDFURL:     pdfURL,
		ArchiveKey: archiveKey,
	}
	// The PDF is already rendered and stored, so a log failure is not fatal
	if err := f.reportRepo.Save(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("report log write failed for %s: %v", pdfURL, err)
	}

	documentsGenerated.WithLabelValues(docType, "success").Inc()
	f.audit.record(ctx, &account.ID, models.AuditActionDocumentGenerated,
		"Leak detection report generated", true, nil, metadata,
		map[string]any{"type": models.ReportTypeLeakDetection, "pdf_url": pdfURL, "images": len(original)})

	return &dto.DocumentResult{FileName: fileName, PDF: pdf, PDFURL: pdfURL}, nil
}

func (f *DocumentFlowImpl) complete(ctx context.Context, docType, prompt string) (map[string]any, error) {
	start := time.Now()
	raw, err := f.completion.Complete(ctx, systemPrompts[docType], prompt)
	documentStageDuration.WithLabelValues(docType, "completion").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, NewBusinessError("UPSTREAM_ERROR", "Language model call failed", fmt.Errorf("%w: %v", ErrUpstream, err))
	}

	fields, err := parseCompletion(raw)
	if err != nil {
		return nil, NewBusinessError("UPSTREAM_ERROR", "Language model returned an unusable response", fmt.Errorf("%w: %v", ErrUpstream, err))
	}
	return fields, nil
}

func (f *DocumentFlowImpl) render(ctx context.Context, req services.RenderRequest) ([]byte, error) {
	start := time.Now()
	pdf, err := f.renderer.Render(ctx, req)
	documentStageDuration.WithLabelValues(req.DocType, "render").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, NewBusinessError("RENDER_FAILED", "Document render failed", fmt.Errorf("%w: %v", ErrRender, err))
	}
	return pdf, nil
}

func (f *DocumentFlowImpl) fail(ctx context.Context, docType string, accountID uint, stage string, metadata *ClientMetadata, err error) error {
	documentsGenerated.WithLabelValues(docType, "failure").Inc()
	log.Printf("%s generation failed at %s for account %d: %v", docType, stage, accountID, err)

	errMsg := err.Error()
	f.audit.record(ctx, &accountID, models.AuditActionDocumentGenerationFailed,
		fmt.Sprintf("%s generation failed", docType), false, &errMsg, metadata, map[string]any{"stage": stage})
	return err
}

// parseCompletion decodes the model output. Markdown code fences are
// stripped and a top-level "data" object is unwrapped when present.
func parseCompletion(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	if s == "" {
		return nil, services.ErrEmptyCompletion
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if obj == nil {
		return nil, services.ErrEmptyCompletion
	}
	if data, ok := obj["data"].(map[string]any); ok {
		return data, nil
	}
	return obj, nil
}

// mergeDocumentData lays the account's company fields over the model fields
func mergeDocumentData(fields map[string]any, account *models.Account) map[string]any {
	data := make(map[string]any, len(fields)+8)
	for k, v := range fields {
		data[k] = v
	}
	for k, v := range account.CompanyFields() {
		data[k] = v
	}
	return data
}
