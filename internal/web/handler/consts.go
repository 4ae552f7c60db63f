package handler

const (
	// APIPath is the prefix of the bearer token protected API.
	APIPath = "/api/v1"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"
)
