package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	CodeInputMissing: {
		Code:            CodeInputMissing,
		Retryable:       false,
		Description:     "Source document does not exist",
		SuggestedAction: "Check the path, or list discovered meetings: council batch <root> --dry-run",
	},
	CodeUnreadable: {
		Code:            CodeUnreadable,
		Retryable:       false,
		Description:     "Document text could not be extracted",
		SuggestedAction: "Export the document as text with form feeds between pages and run: council parse agenda <file.txt>",
	},
	CodeEmptyContent: {
		Code:            CodeEmptyContent,
		Retryable:       false,
		Description:     "Document produced no text lines",
		SuggestedAction: "Verify the PDF has a text layer; scanned documents need OCR first",
	},
	CodeOutOfBounds: {
		Code:            CodeOutOfBounds,
		Retryable:       false,
		Description:     "Agenda page range exceeds the packet page count",
		SuggestedAction: "Compare the agenda against the packet: council split <packet.pdf> <agenda.json> <out_dir>",
	},
	CodeMarkerMissing: {
		Code:            CodeMarkerMissing,
		Retryable:       false,
		Description:     "File number not found on the first pages of its range",
		SuggestedAction: "Inspect the extracted item PDF listed in manifest.json warnings",
	},
	CodeStorageError: {
		Code:            CodeStorageError,
		Retryable:       true,
		Description:     "Database write failed",
		SuggestedAction: "Check database settings with: council config show, then run: council db migrate",
	},
	CodePublishError: {
		Code:            CodePublishError,
		Retryable:       true,
		Description:     "Event publish to Redis failed",
		SuggestedAction: "Check redis settings with: council config show",
	},
	CodeContextCancelled: {
		Code:            CodeContextCancelled,
		Retryable:       false,
		Description:     "Operation cancelled by user or system",
		SuggestedAction: "Re-run the command; completed meetings are skipped only when their outputs exist",
	},
	CodeTimeout: {
		Code:            CodeTimeout,
		Retryable:       true,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Re-run with a lower concurrency: council batch <root> --concurrency 1",
	},
	CodeProcessingError: {
		Code:            CodeProcessingError,
		Retryable:       false,
		Description:     "Unclassified processing error",
		SuggestedAction: "Re-run with debug logging: council --debug batch <root>",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Check logs for more details: council --debug <command>"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
