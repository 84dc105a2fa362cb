package dto

// InvoiceDemandRequest asks for an invoice-demand letter
type InvoiceDemandRequest struct {
	Prompt string `json:"prompt" example:"Demand 1,200 ILS from Dana Levi for the March pipe repair"`
}

// LeakDetectionRequest asks for a leak-detection report
type LeakDetectionRequest struct {
	Prompt string        `json:"prompt"`
	Images []ImageRefDTO `json:"images,omitempty"`
}

// DocumentResult is a rendered document ready to be streamed
type DocumentResult struct {
	FileName string
	PDF      []byte
	// PDFURL is set when the document was persisted
	PDFURL string
}
