package types

// PageTask represents a single archive entry sent to a worker for processing
type PageTask struct {
	Index int
	Name  string
	Data  []byte
}

// ErrorResult captures the error object returned by the detector process on failure
type ErrorResult struct {
	Error string `json:"error"`
}

// Status bytes that prefix every detector response body
const (
	StatusOK    byte = 0
	StatusError byte = 1
)
