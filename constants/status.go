package constants

// ParseState is the canonical state for a document parse.
type ParseState string

// Stable values (store these exact strings in DB).
const (
	ParseStateReceived        ParseState = "RECEIVED"         // file accepted, nothing run yet
	ParseStateTextNormalized  ParseState = "TEXT_NORMALIZED"  // OCR complete, text available
	ParseStateFieldsExtracted ParseState = "FIELDS_EXTRACTED" // pattern extraction complete
	ParseStateScored          ParseState = "SCORED"           // confidence computed
	ParseStateVerified        ParseState = "VERIFIED"         // terminal: business flag true
	ParseStateRejected        ParseState = "REJECTED"         // terminal: business flag false
)
