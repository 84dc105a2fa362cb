package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/Kappa/utils"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const defaultTemplateName = "default"

// ErrDefaultTemplateMissing is returned when the template source lacks default.html
var ErrDefaultTemplateMissing = errors.New("default.html template is missing")

// RenderRequest is the input of a document render
type RenderRequest struct {
	DocType  string
	Data     map[string]any
	Header   map[string]any
	Optional map[string]any
}

// PDFRenderer renders a document request to PDF bytes
type PDFRenderer interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// HTMLPrinter prints an HTML document to PDF
type HTMLPrinter interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// TemplateSet holds one parsed template per document type
type TemplateSet struct {
	templates map[string]*template.Template
}

// LoadTemplates parses every *.html file at the root of fsys. The set must
// contain default.html.
func LoadTemplates(fsys fs.FS) (*TemplateSet, error) {
	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	set := &TemplateSet{templates: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(name).Funcs(templateFuncs).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		set.templates[strings.TrimSuffix(path.Base(name), ".html")] = tmpl
	}

	if _, ok := set.templates[defaultTemplateName]; !ok {
		return nil, ErrDefaultTemplateMissing
	}
	return set, nil
}

// Lookup returns the template for docType, falling back to default
func (s *TemplateSet) Lookup(docType string) (*template.Template, string) {
	if t, ok := s.templates[docType]; ok {
		return t, docType
	}
	return s.templates[defaultTemplateName], defaultTemplateName
}

// Execute renders req to HTML. Header["date"] defaults to now.
func (s *TemplateSet) Execute(req RenderRequest) (string, error) {
	header := make(map[string]any, len(req.Header)+1)
	for k, v := range req.Header {
		header[k] = v
	}
	if d, _ := header["date"].(string); d == "" {
		header["date"] = utils.UTCNowRFC3339()
	}

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	optional := req.Optional
	if optional == nil {
		optional = map[string]any{}
	}

	tmpl, _ := s.Lookup(req.DocType)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{
		"DocType":  req.DocType,
		"Data":     data,
		"Header":   header,
		"Optional": optional,
	}); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

var templateFuncs = template.FuncMap{
	// imageURL lets inlined data URLs and absolute links through the
	// attribute sanitizer; anything else renders as empty.
	"imageURL": func(v any) template.URL {
		s, _ := v.(string)
		switch {
		case strings.HasPrefix(s, "data:image/"),
			strings.HasPrefix(s, "https://"),
			strings.HasPrefix(s, "http://"):
			return template.URL(s)
		default:
			return ""
		}
	},
	"str": func(v any) string {
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	},
	"list": func(v any) []any {
		l, _ := v.([]any)
		return l
	},
}

// ChromePDFRenderer executes a template and prints it with headless Chrome
type ChromePDFRenderer struct {
	templates *TemplateSet
	printer   HTMLPrinter
	timeout   time.Duration
}

// NewPDFRenderer builds a renderer over fsys. A missing default.html is a
// configuration error.
func NewPDFRenderer(fsys fs.FS, printer HTMLPrinter, timeout time.Duration) (*ChromePDFRenderer, error) {
	set, err := LoadTemplates(fsys)
	if err != nil {
		return nil, err
	}
	if printer == nil {
		return nil, fmt.Errorf("html printer is required")
	}
	return &ChromePDFRenderer{templates: set, printer: printer, timeout: timeout}, nil
}

func (r *ChromePDFRenderer) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	html, err := r.templates.Execute(req)
	if err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return r.printer.PrintPDF(ctx, html)
}

// ChromePrinter keeps one headless browser and opens a tab per document
type ChromePrinter struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	startOnce     sync.Once
	startErr      error
}

// NewChromePrinter prepares a browser allocator. The browser process starts on first use.
func NewChromePrinter(execPath string) *ChromePrinter {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(log.Printf))

	return &ChromePrinter{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
}

func (p *ChromePrinter) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	p.startOnce.Do(func() {
		p.startErr = chromedp.Run(p.browserCtx)
	})
	if p.startErr != nil {
		return nil, fmt.Errorf("failed to start browser: %w", p.startErr)
	}

	tabCtx, cancel := chromedp.NewContext(p.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4 in inches
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("render aborted: %w", ctxErr)
		}
		return nil, fmt.Errorf("failed to print pdf: %w", err)
	}

	return pdf, nil
}

// Close terminates the browser process
func (p *ChromePrinter) Close() {
	p.browserCancel()
	p.allocCancel()
}
