package businessflow

import (
	"context"
	"encoding/json"
	"log"

	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/repository"
	"github.com/amirphl/Kappa/utils"
)

// auditTrail writes best-effort audit entries. A failed write is logged and
// never surfaces to the caller.
type auditTrail struct {
	repo repository.AuditLogRepository
}

func newAuditTrail(repo repository.AuditLogRepository) auditTrail {
	return auditTrail{repo: repo}
}

func (a auditTrail) record(ctx context.Context, accountID *uint, action, description string, success bool, errMsg *string, metadata *ClientMetadata, extra map[string]any) {
	if a.repo == nil {
		return
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		AccountID:    accountID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errMsg,
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		audit.RequestID = &requestID
	} else if metadata != nil && metadata.RequestID != "" {
		audit.RequestID = utils.ToPtr(metadata.RequestID)
	}

	if len(extra) > 0 {
		if raw, err := json.Marshal(extra); err == nil {
			audit.Metadata = raw
		}
	}

	// Detached from request cancellation
	if err := a.repo.Save(context.WithoutCancel(ctx), audit); err != nil {
		log.Printf("audit write failed (%s): %v", action, err)
	}
}

func accountIDPtr(a *models.Account) *uint {
	if a == nil {
		return nil
	}
	id := a.ID
	return &id
}
