package rmib

import (
	"errors"
	"fmt"
	"net/http"
)

// IssueCode is a typed code for a single validation finding.
type IssueCode string

const (
	IssueOutOfRange      IssueCode = "OUT_OF_RANGE"
	IssueUnknownCategory IssueCode = "UNKNOWN_CATEGORY"
	IssueDuplicate       IssueCode = "DUPLICATE"
	IssueMissingValue    IssueCode = "MISSING_VALUE"
	IssueUnfilled        IssueCode = "UNFILLED"
	IssueIncomplete      IssueCode = "INCOMPLETE"
	IssueInvalidMove     IssueCode = "INVALID_MOVE"
	IssueWrongMode       IssueCode = "WRONG_MODE"
)

// Issue is one validation finding. Category is empty for findings about a
// value (a missing rank) rather than about an entry.
type Issue struct {
	Code     IssueCode `json:"code"`
	Category string    `json:"category,omitempty"`
	Value    int       `json:"value,omitempty"`
}

// Message returns the user-facing text for the issue.
func (i Issue) Message() string {
	switch i.Code {
	case IssueOutOfRange:
		return fmt.Sprintf("Nilai %d untuk kategori %s harus antara 1-12.", i.Value, i.Category)
	case IssueUnknownCategory:
		return fmt.Sprintf("Kategori %s tidak dikenal.", i.Category)
	case IssueDuplicate:
		if i.Category == "" {
			return fmt.Sprintf("Peringkat %d dipakai lebih dari satu kategori.", i.Value)
		}
		return fmt.Sprintf("Peringkat %d pada kategori %s dipakai juga oleh kategori lain.", i.Value, i.Category)
	case IssueMissingValue:
		return fmt.Sprintf("Peringkat %d belum diberikan ke kategori mana pun.", i.Value)
	case IssueUnfilled:
		return fmt.Sprintf("Kategori %s belum diisi.", i.Category)
	case IssueIncomplete:
		return "Urutan peringkat belum lengkap."
	case IssueInvalidMove:
		return fmt.Sprintf("Posisi %d di luar jangkauan.", i.Value)
	case IssueWrongMode:
		return "Operasi ini tidak tersedia untuk mode tes ini."
	default:
		return "Terjadi kesalahan validasi."
	}
}

// ValidationError is a recoverable input error. It blocks the current action
// only; the in-progress assignment is never discarded.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "Validasi gagal."
	}
	msg := e.Issues[0].Message()
	if n := len(e.Issues) - 1; n > 0 {
		msg += fmt.Sprintf(" (dan %d masalah lain)", n)
	}
	return msg
}

// Has reports whether the error carries an issue with the given code and value.
func (e *ValidationError) Has(code IssueCode, value int) bool {
	for _, is := range e.Issues {
		if is.Code == code && is.Value == value {
			return true
		}
	}
	return false
}

func invalid(issues ...Issue) *ValidationError {
	return &ValidationError{Issues: issues}
}

// NetworkError is a transport failure or a non-2xx response.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DataIntegrityError is a server-reported failure (success=false despite a
// 2xx) or a payload that cannot be applied. Message is shown verbatim.
type DataIntegrityError struct {
	Op      string
	Message string
}

func (e *DataIntegrityError) Error() string {
	if e.Message == "" {
		return "Server menolak permintaan."
	}
	return e.Message
}

var (
	// ErrSessionClosed is returned for any mutation after a successful submit.
	ErrSessionClosed = errors.New("tes sudah dikirim dan tidak dapat diubah lagi")
	// ErrNotActive is returned for edits before the test is started.
	ErrNotActive = errors.New("tes belum dimulai")
	// ErrSubmitInProgress is returned for edits while a submit is in flight.
	ErrSubmitInProgress = errors.New("tes sedang dikirim")
)
