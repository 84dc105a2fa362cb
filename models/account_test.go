package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccount_OnboardingState(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		want    string
	}{
		{"fresh", Account{}, OnboardingStatePasswordTemporary},
		{"terms pending", Account{HasChangedPassword: true}, OnboardingStateTermsPending},
		{"terms before password", Account{HasAcceptedTerms: true}, OnboardingStatePasswordTemporary},
		{"no profile", Account{HasChangedPassword: true, HasAcceptedTerms: true}, OnboardingStateProfileIncomplete},
		{"full", Account{HasChangedPassword: true, HasAcceptedTerms: true, CompanyName: "Aqua"}, OnboardingStateFullAccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.OnboardingState())
		})
	}
}

func TestProfileUpdate(t *testing.T) {
	assert.True(t, ProfileUpdate{}.IsEmpty())
	assert.Empty(t, ProfileUpdate{}.Columns())

	name := "Aqua Fix"
	empty := ""
	u := ProfileUpdate{CompanyName: &name, CompanyPhone2: &empty}
	assert.False(t, u.IsEmpty())
	assert.Equal(t, map[string]any{"company_name": "Aqua Fix", "company_phone2": ""}, u.Columns())

	a := &Account{CompanyName: "old", CompanyPhone2: "050", CompanyAddress: "kept"}
	u.Apply(a)
	assert.Equal(t, "Aqua Fix", a.CompanyName)
	assert.Equal(t, "", a.CompanyPhone2)
	assert.Equal(t, "kept", a.CompanyAddress)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "accounts", Account{}.TableName())
	assert.Equal(t, "report_logs", ReportLog{}.TableName())
	assert.Equal(t, "audit_log", AuditLog{}.TableName())
}
