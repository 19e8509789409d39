package docparse

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// FlagInvoiceVerified is the business flag a freight invoice parse gates.
const FlagInvoiceVerified = "invoice_verified"

var (
	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice\s*(?:#|Number|No\.?)[:]*\s*([A-Z0-9][A-Z0-9_-]{2,19})`),
		regexp.MustCompile(`(?i)\bINV\s*[#:]\s*([A-Z0-9][A-Z0-9_-]{2,19})`),
		regexp.MustCompile(`(?i)\bInvoice\s+([A-Z0-9][A-Z0-9_-]{2,19})\b`),
		regexp.MustCompile(`(?i)\bBill\s*(?:#|Number|No\.?)[:]*\s*([A-Z0-9][A-Z0-9_-]{2,19})`),
	}

	invoiceDatePattern = regexp.MustCompile(
		`(?i)(?:Invoice\s+Date|Billing\s+Date|Issue\s+Date|Date)[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)
	invoiceISODatePattern = regexp.MustCompile(
		`(?i)(?:Date|Due)[:]*\s*(\d{4}-\d{1,2}-\d{1,2})`)
	invoiceDueDatePattern = regexp.MustCompile(
		`(?i)(?:Due\s+Date|Payment\s+Due|Due)[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)

	invoiceVendorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Bill\s+To|Vendor|From|Shipper|Carrier)[:]*\s*\n?\s*([A-Z][A-Za-z\s&.,'-]{2,50})`),
		regexp.MustCompile(`([A-Z][A-Za-z &.,'-]*(?:LLC|Inc|Corp|Company|Industries|Logistics|Transportation|Freight))\b`),
	}

	invoiceCustomerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Ship\s+To|Customer|Consignee|Deliver\s+To)[:]*\s*\n?\s*([A-Z][A-Za-z\s&.,'-]{2,50})`),
	}

	invoiceTotalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Grand\s+Total|Invoice\s+Total|Total\s+Amount|Final\s+Total)[:]*\s*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(?i)(?:Total|Amount\s+Due|Balance)[:]*\s*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
	}
	invoiceSubtotalPattern = regexp.MustCompile(
		`(?i)(?:Subtotal|Sub\s+Total)[:]*\s*\$?\s*([\d,]+(?:\.\d{1,2})?)`)
	invoiceTaxPattern = regexp.MustCompile(
		`(?i)(?:Tax|Sales\s+Tax|VAT)[:]*\s*\$?\s*([\d,]+(?:\.\d{1,2})?)`)

	invoiceTermsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Payment\s+Terms|Net\s+Terms|Terms)[:]*\s*([A-Za-z0-9 ]{3,20})`),
		regexp.MustCompile(`(?i)\b(Net\s+\d+|COD|Cash\s+on\s+Delivery|Due\s+on\s+Receipt|Prepaid)\b`),
	}

	invoiceLineItemPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([A-Za-z \-]+(?:Freight|Charge|Fee|Surcharge|Accessorial)[A-Za-z \-]*)\s+.*?\$?\s*([\d,]+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(?i)(Fuel\s+Surcharge|FSC).*?\$?\s*([\d,]+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(?i)(Detention|Delay|Wait\s+Time).*?\$?\s*([\d,]+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(?i)(Lumper|Loading|Unloading).*?\$?\s*([\d,]+(?:\.\d{1,2})?)`),
	}

	invoiceStreetAddress = `[0-9]+\s+[A-Za-z ]+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Boulevard|Blvd|Lane|Ln|Way|Place|Pl)[^0-9]*?[A-Za-z\s]+,\s*[A-Z]{2}\s+\d{5}(?:-\d{4})?`

	invoiceVendorAddressRes   = addressNearTermRes([]string{"Bill To", "Vendor", "From", "Shipper", "Carrier"})
	invoiceCustomerAddressRes = addressNearTermRes([]string{"Ship To", "Customer", "Consignee", "Deliver To"})
)

func addressNearTermRes(terms []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		res = append(res, regexp.MustCompile(
			fmt.Sprintf(`(?is)%s[:]*\s*\n?\s*[A-Za-z\s&.,'-]+\n?\s*(%s)`, regexp.QuoteMeta(term), invoiceStreetAddress)))
	}
	return res
}

// Labels that sit where a number belongs ("Invoice Date: ..." must not yield
// an invoice number of "DATE").
var invoiceNumberFalsePositives = map[string]struct{}{
	"DATE": {}, "NUMBER": {}, "TOTAL": {}, "DUE": {}, "FROM": {}, "FOR": {},
	"BILL": {}, "SHIP": {}, "TERMS": {}, "AMOUNT": {}, "THE": {}, "AND": {},
}

// Per-field extraction confidences, multiplied by the scoring weights. A
// labeled date is trusted more than a bare one, a named total more than a
// balance line.
const (
	invoiceNumberConf    float32 = 0.90
	invoiceLabeledConf   float32 = 0.85
	invoiceFallbackConf  float32 = 0.70
	invoiceCompanyConf   float32 = 0.80
	invoiceAmountConf    float32 = 0.80
	invoiceAddressConf   float32 = 0.75
	invoiceLineItemsConf float32 = 0.70
)

// InvoiceLineItem is one charge line on a freight invoice.
type InvoiceLineItem struct {
	Description string `json:"description"`
	TotalCents  int64  `json:"total_cents"`
}

// InvoiceData is the structured content of a freight invoice. Amounts are
// integer cents.
type InvoiceData struct {
	InvoiceNumber   string            `json:"invoice_number,omitempty"`
	InvoiceDate     time.Time         `json:"invoice_date,omitempty"`
	DueDate         time.Time         `json:"due_date,omitempty"`
	VendorName      string            `json:"vendor_name,omitempty"`
	VendorAddress   string            `json:"vendor_address,omitempty"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CustomerAddress string            `json:"customer_address,omitempty"`
	SubtotalCents   int64             `json:"subtotal_cents,omitempty"`
	TaxCents        int64             `json:"tax_cents,omitempty"`
	TotalCents      int64             `json:"total_cents,omitempty"`
	PaymentTerms    string            `json:"payment_terms,omitempty"`
	LineItems       []InvoiceLineItem `json:"line_items,omitempty"`
}

// InvoiceResult is one invoice parse.
type InvoiceResult struct {
	Data       InvoiceData       `json:"data"`
	Confidence float32           `json:"confidence"`
	Verified   bool              `json:"verified"`
	Details    map[string]Detail `json:"details"`
}

// InvoiceParser extracts freight invoice fields from recognized text.
type InvoiceParser struct {
	scoring InvoiceScoring
	logger  *slog.Logger
	now     func() time.Time
}

func NewInvoiceParser(scoring InvoiceScoring, logger *slog.Logger) *InvoiceParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceParser{scoring: scoring, logger: logger, now: time.Now}
}

func (p *InvoiceParser) DocType() constants.DocumentType { return constants.DocTypeInvoice }

func validInvoiceNumber(num string) bool {
	if len(num) < 3 {
		return false
	}
	_, bad := invoiceNumberFalsePositives[num]
	return !bad
}

// cutAtNewline keeps only the first line of a capture whose character class
// ran across a line break into the next block.
func cutAtNewline(capture string) string {
	if i := strings.IndexByte(capture, '\n'); i >= 0 {
		capture = capture[:i]
	}
	return strings.TrimSpace(capture)
}

func companyPost(capture string, _ []string) (any, bool) {
	name := cleanCompanyName(cutAtNewline(capture))
	if len(name) <= 2 {
		return nil, false
	}
	return name, true
}

func amountPost(capture string, _ []string) (any, bool) {
	cents, ok := parseCents(capture, "")
	if !ok || cents <= 0 {
		return nil, false
	}
	return cents, true
}

func (p *InvoiceParser) specs() []FieldSpec {
	return []FieldSpec{
		{
			Name:     "invoice_number",
			Patterns: invoiceNumberPatterns,
			Post: func(capture string, _ []string) (any, bool) {
				num := strings.ToUpper(strings.TrimSpace(capture))
				if !validInvoiceNumber(num) {
					return nil, false
				}
				return num, true
			},
		},
		{Name: "vendor_name", Patterns: invoiceVendorPatterns, Post: companyPost},
		{Name: "customer_name", Patterns: invoiceCustomerPatterns, Post: companyPost},
		{Name: "total_amount", Patterns: invoiceTotalPatterns, Post: amountPost},
		{Name: "subtotal", Patterns: []*regexp.Regexp{invoiceSubtotalPattern}, Post: amountPost},
		{
			Name:     "tax_amount",
			Patterns: []*regexp.Regexp{invoiceTaxPattern},
			Post: func(capture string, _ []string) (any, bool) {
				// zero tax is a real value on freight invoices
				cents, ok := parseCents(capture, "")
				if !ok || cents < 0 {
					return nil, false
				}
				return cents, true
			},
		},
		{
			Name:     "payment_terms",
			Patterns: invoiceTermsPatterns,
			Post: func(capture string, _ []string) (any, bool) {
				terms := cutAtNewline(capture)
				if len(terms) <= 2 {
					return nil, false
				}
				return terms, true
			},
		},
	}
}

// reasonableInvoiceDate bounds a bare date to the plausible billing window:
// up to a year back, half a year forward.
func (p *InvoiceParser) reasonableInvoiceDate(t time.Time) bool {
	now := p.now()
	return !t.Before(now.AddDate(-1, 0, 0)) && !t.After(now.AddDate(0, 6, 0))
}

func (p *InvoiceParser) extractDates(text string, details map[string]Detail, conf map[string]float32) (invoiceDate, dueDate time.Time) {
	if m := invoiceDatePattern.FindStringSubmatch(text); m != nil {
		if t, ok := parseDate(m[1]); ok {
			invoiceDate = t
			details["invoice_date"] = Detail{Pattern: 0, Raw: m[0]}
			conf["invoice_date"] = invoiceLabeledConf
		}
	}
	if invoiceDate.IsZero() {
		if m := invoiceISODatePattern.FindStringSubmatch(text); m != nil {
			if t, ok := parseDate(m[1]); ok && p.reasonableInvoiceDate(t) {
				invoiceDate = t
				details["invoice_date"] = Detail{Pattern: 1, Raw: m[0]}
				conf["invoice_date"] = invoiceFallbackConf
			}
		}
	}

	if m := invoiceDueDatePattern.FindStringSubmatch(text); m != nil {
		if t, ok := parseDate(m[1]); ok {
			dueDate = t
			details["due_date"] = Detail{Pattern: 0, Raw: m[0]}
			conf["due_date"] = invoiceLabeledConf
		}
	}
	return invoiceDate, dueDate
}

func extractAddress(text string, res []*regexp.Regexp) (string, Detail, bool) {
	for i, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			addr := collapseSpaces(m[1])
			if addr != "" {
				return addr, Detail{Pattern: i, Raw: m[0]}, true
			}
		}
	}
	return "", Detail{}, false
}

func extractLineItems(text string) []InvoiceLineItem {
	var items []InvoiceLineItem
	var spans [][2]int
	overlaps := func(start, end int) bool {
		for _, s := range spans {
			if start < s[1] && end > s[0] {
				return true
			}
		}
		return false
	}
	// later patterns are narrower variants of earlier ones; a charge line
	// already claimed by one pattern is not a second line item
	for _, re := range invoiceLineItemPatterns {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			if overlaps(idx[0], idx[1]) {
				continue
			}
			cents, ok := parseCents(text[idx[4]:idx[5]], "")
			if !ok || cents <= 0 {
				continue
			}
			spans = append(spans, [2]int{idx[0], idx[1]})
			items = append(items, InvoiceLineItem{
				Description: collapseSpaces(text[idx[2]:idx[3]]),
				TotalCents:  cents,
			})
		}
	}
	return items
}

// ParseInvoice extracts, scores, and gates one freight invoice.
func (p *InvoiceParser) ParseInvoice(text string) InvoiceResult {
	text = CleanArtifacts(text)

	fields, details := ExtractFields(text, p.specs())
	conf := map[string]float32{}

	data := InvoiceData{}
	if v, ok := fields["invoice_number"].(string); ok {
		data.InvoiceNumber = v
		conf["invoice_number"] = invoiceNumberConf
	}
	if v, ok := fields["vendor_name"].(string); ok {
		data.VendorName = v
		conf["vendor_name"] = invoiceCompanyConf
	}
	if v, ok := fields["customer_name"].(string); ok {
		data.CustomerName = v
		conf["customer_name"] = invoiceCompanyConf
	}
	if v, ok := fields["total_amount"].(int64); ok {
		data.TotalCents = v
		// a named grand total outranks a bare balance line
		if details["total_amount"].Pattern == 0 {
			conf["total_amount"] = invoiceNumberConf
		} else {
			conf["total_amount"] = invoiceAmountConf
		}
	}
	if v, ok := fields["subtotal"].(int64); ok {
		data.SubtotalCents = v
		conf["subtotal"] = invoiceAmountConf
	}
	if v, ok := fields["tax_amount"].(int64); ok {
		data.TaxCents = v
		conf["tax_amount"] = invoiceAmountConf
	}
	if v, ok := fields["payment_terms"].(string); ok {
		data.PaymentTerms = v
		conf["payment_terms"] = invoiceAmountConf
	}

	data.InvoiceDate, data.DueDate = p.extractDates(text, details, conf)

	if addr, d, ok := extractAddress(text, invoiceVendorAddressRes); ok {
		data.VendorAddress = addr
		details["vendor_address"] = d
		conf["vendor_address"] = invoiceAddressConf
	}
	if addr, d, ok := extractAddress(text, invoiceCustomerAddressRes); ok {
		data.CustomerAddress = addr
		details["customer_address"] = d
		conf["customer_address"] = invoiceAddressConf
	}

	data.LineItems = extractLineItems(text)
	if len(data.LineItems) > 0 {
		details["line_items"] = Detail{Signals: len(data.LineItems)}
		conf["line_items"] = invoiceLineItemsConf
	}

	confidence := p.score(conf, len(data.LineItems))
	verified := p.verify(data, confidence)

	p.logger.Debug("parse.invoice.done",
		"confidence", confidence,
		"verified", verified,
		"invoice_number", data.InvoiceNumber,
		"line_items", len(data.LineItems),
	)
	return InvoiceResult{Data: data, Confidence: confidence, Verified: verified, Details: details}
}

// score multiplies each weight by the extraction confidence of its field, so
// a field found by a weak pattern counts for less than one found by a labeled
// one.
func (p *InvoiceParser) score(conf map[string]float32, lineItems int) float32 {
	var score float32
	for field, weight := range p.scoring.Weights {
		score += weight * conf[field]
	}
	if lineItems > 1 {
		score += p.scoring.Bonuses["multiple_line_items"]
	}
	return clamp(score)
}

// verify requires an invoice number, a positive total, and confidence at the
// billing threshold.
func (p *InvoiceParser) verify(data InvoiceData, confidence float32) bool {
	if data.InvoiceNumber == "" || data.TotalCents <= 0 {
		return false
	}
	return confidence >= p.scoring.VerifiedThreshold
}

func (p *InvoiceParser) Parse(text string) Outcome {
	r := p.ParseInvoice(text)
	fields := make(map[string]any)
	if r.Data.InvoiceNumber != "" {
		fields["invoice_number"] = r.Data.InvoiceNumber
	}
	if !r.Data.InvoiceDate.IsZero() {
		fields["invoice_date"] = r.Data.InvoiceDate
	}
	if !r.Data.DueDate.IsZero() {
		fields["due_date"] = r.Data.DueDate
	}
	if r.Data.VendorName != "" {
		fields["vendor_name"] = r.Data.VendorName
	}
	if r.Data.VendorAddress != "" {
		fields["vendor_address"] = r.Data.VendorAddress
	}
	if r.Data.CustomerName != "" {
		fields["customer_name"] = r.Data.CustomerName
	}
	if r.Data.CustomerAddress != "" {
		fields["customer_address"] = r.Data.CustomerAddress
	}
	if r.Data.SubtotalCents > 0 {
		fields["subtotal"] = r.Data.SubtotalCents
	}
	if r.Data.TaxCents > 0 {
		fields["tax_amount"] = r.Data.TaxCents
	}
	if r.Data.TotalCents > 0 {
		fields["total_amount"] = r.Data.TotalCents
	}
	if r.Data.PaymentTerms != "" {
		fields["payment_terms"] = r.Data.PaymentTerms
	}
	if len(r.Data.LineItems) > 0 {
		fields["line_items"] = r.Data.LineItems
	}
	return Outcome{
		DocType:    constants.DocTypeInvoice,
		Fields:     fields,
		Details:    r.Details,
		Confidence: r.Confidence,
		Flag:       FlagInvoiceVerified,
		FlagValue:  r.Verified,
	}
}
