package transfer

import "fmt"

// Stable error codes of the switch wire contract. Downstream notification
// consumers key off these values; they must never be renumbered.
const (
	CodeInternal        = 2001 // Generic internal error.
	CodeValidation      = 3100 // Generic validation error.
	CodeModifiedRequest = 3106 // Modified request: fingerprint or fulfilment mismatch.
	CodeExpired         = 3303 // Transfer expired.
)

var codeDescriptions = map[int]string{
	CodeInternal:        "Internal server error",
	CodeValidation:      "Generic validation error",
	CodeModifiedRequest: "Modified request",
	CodeExpired:         "Transfer expired",
}

// CodeDescription returns the canonical description of a wire error code.
func CodeDescription(code int) string {
	if d, ok := codeDescriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("Unknown error %d", code)
}

// NewErrorInformation builds an ErrorInformation for |code|, appending
// |detail| to its canonical description when non-empty, and attaching the
// request's extension list verbatim.
func NewErrorInformation(code int, detail string, extensions ExtensionList) ErrorInformation {
	var desc = CodeDescription(code)
	if detail != "" {
		desc = desc + ": " + detail
	}
	return ErrorInformation{
		ErrorCode:        code,
		ErrorDescription: desc,
		ExtensionList:    extensions,
	}
}
