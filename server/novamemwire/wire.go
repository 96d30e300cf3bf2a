package novamemwire

import "github.com/tuannm99/novamem/internal/sql/executor"

// ExecuteRequest carries one request: one or more ';'-terminated statements
// that run as a single transaction.
type ExecuteRequest struct {
	ID  uint64 `json:"id"`
	SQL string `json:"sql"`
}

// ExecuteResponse is the response for a request ID.
type ExecuteResponse struct {
	ID     uint64           `json:"id"`
	Result *executor.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}
