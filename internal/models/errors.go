package models

// APIError is the wire shape for error responses.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ProgressUpdate is published over pub/sub while quiz generation runs.
type ProgressUpdate struct {
	SessionSeed string `json:"session_seed"`
	Stage       string `json:"stage"`
	StageIndex  int    `json:"stage_index"`
	StageCount  int    `json:"stage_count"`
	Message     string `json:"message"`
}

// WSMessage is the envelope forwarded to websocket clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
