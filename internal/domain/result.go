package domain

// ConversionError describes a raw row that could not be converted.
type ConversionError struct {
	Row     string
	Message string
	Kind    RowErrorKind
}

// NewConversionError builds a FAILED conversion error for a raw record.
func NewConversionError(raw RawTradeRecord, message string) ConversionError {
	return ConversionError{Row: raw.String(), Message: message, Kind: RowErrorFailed}
}

// ParseResult is the outcome of converting one block of raw records.
type ParseResult struct {
	Clusters []*TransactionCluster
	Errors   []ConversionError
}

// DownloadResult is the outcome of one connector download cycle.
// LastDownloadedID is the cursor to pass to the next cycle; empty means none.
type DownloadResult struct {
	ParseResult
	LastDownloadedID string
}
