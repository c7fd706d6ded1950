package models

// These structs define the JSON payloads accepted and returned by the
// localise functions.

// LocaliseRequest is the optional body of the HTTP trigger. Both filters are optional.
type LocaliseRequest struct {
	Schools   []string `json:"schools,omitempty"`
	Templates []string `json:"templates,omitempty"`
}

// LocaliseResponse is returned by the HTTP trigger on success.
type LocaliseResponse struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
}

// ErrorResponse is returned by the HTTP trigger when the run fails as a whole.
type ErrorResponse struct {
	Error string `json:"error"`
}
