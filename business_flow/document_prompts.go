package businessflow

import "github.com/amirphl/Kappa/utils"

const jsonOnlyInstruction = `Respond with a single JSON object and nothing else. Do not wrap it in markdown.
Use an empty string, 0 or an empty array for anything the user did not provide. Dates use YYYY-MM-DD.`

var systemPrompts = map[string]string{
	utils.DocTypeInvoiceDemand: `You prepare formal invoice-demand letters for a service business.
Extract the details from the user's description and return them in this shape:
{
  "issueDate": "YYYY-MM-DD",
  "dueDate": "YYYY-MM-DD",
  "clientName": "string",
  "items": [{"description": "string", "quantity": 0, "unitPrice": 0, "total": 0}],
  "total": 0,
  "vat": 0,
  "paymentDetails": {"bankName": "string", "accountOwner": "string", "branchNumber": "string", "accountNumber": "string"}
}
Each item total is quantity times unitPrice. total is the sum of item totals before vat.
` + jsonOnlyInstruction,

	utils.DocTypeLeakDetection: `You write professional leak-detection inspection reports.
Turn the technician's notes into a report in this shape:
{
  "reportDate": "YYYY-MM-DD",
  "propertyAddress": "string",
  "clientName": "string",
  "performedBy": "string",
  "licenseNumber": "string",
  "contactNumber": "string",
  "propertyType": "string",
  "contactExprience": "string",
  "overview": "string",
  "testTools": ["string"],
  "leakLocations": [{"location": "string", "description": "string"}],
  "recommendations": ["string"],
  "additionalNotes": "string"
}
Write the overview and recommendations in complete sentences.
` + jsonOnlyInstruction,
}
