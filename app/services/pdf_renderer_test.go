package services

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePrinter struct {
	html string
}

func (p *capturePrinter) PrintPDF(_ context.Context, html string) ([]byte, error) {
	p.html = html
	return []byte("%PDF-1.4 fake"), nil
}

func TestLoadTemplatesRequiresDefault(t *testing.T) {
	_, err := LoadTemplates(fstest.MapFS{
		"invoiceDemand.html": {Data: []byte("<p>x</p>")},
	})
	assert.ErrorIs(t, err, ErrDefaultTemplateMissing)
}

func TestTemplateSelection(t *testing.T) {
	fsys := fstest.MapFS{
		"default.html":       {Data: []byte("default:{{.DocType}}")},
		"invoiceDemand.html": {Data: []byte("invoice:{{str .Data.invoiceNumber}}")},
	}
	set, err := LoadTemplates(fsys)
	require.NoError(t, err)

	tests := []struct {
		name     string
		docType  string
		expected string
	}{
		{name: "dedicated template", docType: "invoiceDemand", expected: "invoice:7"},
		{name: "falls back to default", docType: "leakDetection", expected: "default:leakDetection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := set.Execute(RenderRequest{DocType: tt.docType, Data: map[string]any{"invoiceNumber": 7}})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, html)
		})
	}
}

func TestExecuteDefaultsHeaderDate(t *testing.T) {
	set, err := LoadTemplates(fstest.MapFS{
		"default.html": {Data: []byte("{{str .Header.date}}")},
	})
	require.NoError(t, err)

	html, err := set.Execute(RenderRequest{DocType: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, html)

	html, err = set.Execute(RenderRequest{DocType: "x", Header: map[string]any{"date": "2024-01-02"}})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", html)
}

func TestImageURLKeepsDataURLs(t *testing.T) {
	set, err := LoadTemplates(fstest.MapFS{
		"default.html": {Data: []byte(`<img src="{{imageURL .Header.logoUrl}}">`)},
	})
	require.NoError(t, err)

	html, err := set.Execute(RenderRequest{Header: map[string]any{"logoUrl": "data:image/png;base64,AAAA"}})
	require.NoError(t, err)
	assert.Contains(t, html, `src="data:image/png;base64,AAAA"`)

	html, err = set.Execute(RenderRequest{Header: map[string]any{"logoUrl": "javascript:alert(1)"}})
	require.NoError(t, err)
	assert.NotContains(t, html, "javascript")
}

func TestBuiltInTemplatesRender(t *testing.T) {
	printer := &capturePrinter{}
	r, err := NewPDFRenderer(views.Templates, printer, 0)
	require.NoError(t, err)

	pdf, err := r.Render(context.Background(), RenderRequest{
		DocType: "invoiceDemand",
		Data: map[string]any{
			"invoiceNumber": 12,
			"clientName":    "Dana",
			"items": []any{
				map[string]any{"description": "Pipe repair", "quantity": 1.0, "unitPrice": 300.0, "total": 300.0},
			},
			"paymentDetails": map[string]any{"bankName": "Leumi"},
			"companyName":    "Acme Plumbing",
		},
		Header: map[string]any{"logoUrl": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(pdf))
	assert.Contains(t, printer.html, "Invoice demand #12")
	assert.Contains(t, printer.html, "Pipe repair")
	assert.Contains(t, printer.html, "Acme Plumbing")
	assert.Contains(t, printer.html, "Leumi")

	_, err = r.Render(context.Background(), RenderRequest{
		DocType: "leakDetection",
		Data:    map[string]any{"overview": "Wet wall", "testTools": []any{"thermal camera"}},
		Optional: map[string]any{"images": []models.ReportImage{
			{URL: "data:image/jpeg;base64,/9j/", Description: "kitchen"},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, printer.html, "Wet wall")
	assert.Contains(t, printer.html, "thermal camera")
	assert.Contains(t, printer.html, "kitchen")
	assert.Contains(t, printer.html, "data:image/jpeg;base64,/9j/")
}
