package model

// ErrorBody is the JSON error envelope: a human-readable "error" plus a
// machine-readable "code" clients branch on.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
