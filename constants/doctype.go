package constants

import (
	"strings"
)

// DocumentType identifies which freight document a file is parsed as.
type DocumentType string

const (
	DocTypeCDL       DocumentType = "CDL"
	DocTypeCOI       DocumentType = "COI"
	DocTypePOD       DocumentType = "POD"
	DocTypeRateCon   DocumentType = "RATE_CONFIRMATION"
	DocTypeAgreement DocumentType = "AGREEMENT"
	DocTypeInvoice   DocumentType = "INVOICE"
)

var allDocumentTypes = []DocumentType{
	DocTypeCDL,
	DocTypeCOI,
	DocTypePOD,
	DocTypeRateCon,
	DocTypeAgreement,
	DocTypeInvoice,
}

func DocumentTypes() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

// CanonicalDocumentType maps free-form labels (API input, folder names) onto
// the canonical type. Returns false when the label is unknown.
func CanonicalDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]DocumentType{
		"cdl":               DocTypeCDL,
		"license":           DocTypeCDL,
		"drivers_license":   DocTypeCDL,
		"driver license":    DocTypeCDL,
		"coi":               DocTypeCOI,
		"insurance":         DocTypeCOI,
		"certificate":       DocTypeCOI,
		"pod":               DocTypePOD,
		"proof of delivery": DocTypePOD,
		"delivery":          DocTypePOD,
		"delivery_receipt":  DocTypePOD,
		"ratecon":           DocTypeRateCon,
		"rate confirmation": DocTypeRateCon,
		"rate_confirmation": DocTypeRateCon,
		"load confirmation": DocTypeRateCon,
		"agreement":         DocTypeAgreement,
		"driver agreement":  DocTypeAgreement,
		"contract":          DocTypeAgreement,
		"invoice":           DocTypeInvoice,
		"freight invoice":   DocTypeInvoice,
		"bill":              DocTypeInvoice,
	}
	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == strings.ToLower(string(dt)) {
			return dt, true
		}
	}
	return "", false
}
