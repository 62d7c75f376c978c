package dto

// ErrorResponse is returned to JSON clients when a form is rejected. Details
// maps an input name to the message shown beneath it.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}
