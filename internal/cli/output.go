package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fitpro/fitsync/internal/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (offline, conflict, access denied)
	ExitCommandError = 2 // Command error (bad arguments, unknown ids, missing user)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the formatter already printed the error.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes reported in JSON output.
const (
	CodeOffline      = "E001"
	CodeAccessDenied = "E002"
	CodeConflict     = "E003"
	CodeNotFound     = "E004"
	CodeNotSignedIn  = "E005"
	CodeInternal     = "E099"
)

// classify maps an engine error to a JSON error code and exit code.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrOffline), domain.IsConnectivity(err):
		return CodeOffline, ExitFailure
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrPermissionDenied):
		return CodeAccessDenied, ExitFailure
	case errors.Is(err, domain.ErrConflict):
		return CodeConflict, ExitFailure
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound, ExitCommandError
	case errors.Is(err, domain.ErrNotSignedIn):
		return CodeNotSignedIn, ExitCommandError
	default:
		return CodeInternal, ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`           // "ok", "notice" or "error"
	Data   any       `json:"data,omitempty"`   // success payload
	Notice string    `json:"notice,omitempty"` // why a command was a no-op
	Error  *CLIError `json:"error,omitempty"`  // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code      string `json:"code"`    // "E001", "E002", etc.
	Message   string `json:"message"` // human-readable message
	Retryable bool   `json:"retryable,omitempty"`
}

// Success outputs a successful result in the configured format.
// Text output uses data's String method when it has one.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if s, ok := data.(fmt.Stringer); ok {
		_, err := fmt.Fprint(f.Writer, s.String())
		return err
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Notice reports a semantic no-op such as enrolling twice. It is not a failure.
func (f *OutputFormatter) Notice(message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "notice",
			Notice: message,
		})
	}
	_, err := fmt.Fprintf(f.Writer, "Notice: %s\n", message)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, retryable bool) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:      code,
				Message:   message,
				Retryable: retryable,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if retryable {
		fmt.Fprintln(f.Writer, "You are offline. Try again once the connection is back.")
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
// Notices (already enrolled, not enrolled) are reported and return nil.
func (f *OutputFormatter) Fail(message string, err error) error {
	if domain.IsNotice(err) {
		return f.Notice(noticeText(err))
	}
	code, exit := classify(err)
	if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), domain.IsRetryable(err)); outErr != nil {
		return outErr
	}
	e := WrapExitError(exit, message, err)
	e.Reported = true
	return e
}

func noticeText(err error) string {
	var opErr *domain.OpError
	course := ""
	if errors.As(err, &opErr) {
		course = opErr.CourseID
	}
	switch {
	case errors.Is(err, domain.ErrAlreadyEnrolled):
		return fmt.Sprintf("already enrolled in %s", course)
	case errors.Is(err, domain.ErrNotEnrolled):
		return fmt.Sprintf("not enrolled in %s", course)
	default:
		return err.Error()
	}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
