package cli

import (
	"encoding/json"
	"fmt"
)

// Error codes for structured error responses
const (
	ErrCodeGeneral      = "ERROR"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUploadFailed = "UPLOAD_FAILED"
)

// JSONError represents a structured error response for --json output
type JSONError struct {
	Error   bool                   `json:"error"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ExitWithError outputs an error message and exits.
// With --json the error is written to stdout as JSON, otherwise as text to stderr.
func ExitWithError(code int, errCode, message string, details map[string]interface{}) {
	if jsonOutput {
		data, _ := json.Marshal(JSONError{
			Error:   true,
			Code:    errCode,
			Message: message,
			Details: details,
		})
		fmt.Fprintln(rootCmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", message)
	}
	Exit(code)
}
