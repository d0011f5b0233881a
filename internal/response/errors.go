package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidEntry   ErrCode = "INVALID_ENTRY"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrSessionNotStarted ErrCode = "SESSION_NOT_STARTED"
	ErrSubmitInProgress  ErrCode = "SUBMIT_IN_PROGRESS"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"

	// ─── Upstream backend ──────────────────────────────────────────────
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"
	ErrUpstreamRejected    ErrCode = "UPSTREAM_REJECTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidEntry:
		return "Jawaban tidak valid."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrSessionNotStarted:
		return "Tes belum dimulai."
	case ErrSubmitInProgress:
		return "Jawaban sedang dikirim. Silakan tunggu."
	case ErrSessionClosed:
		return "Tes sudah selesai dan tidak dapat diubah lagi."

	// ─── Upstream backend ──────────────────────────────────────────────
	case ErrUpstreamUnavailable:
		return "Server sekolah tidak dapat dihubungi. Silakan coba lagi."
	case ErrUpstreamRejected:
		return "Server sekolah menolak permintaan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
