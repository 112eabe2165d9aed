package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrAdminDisabled      ErrCode = "ADMIN_DISABLED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation        ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload    ErrCode = "INVALID_PAYLOAD"
	ErrInvalidDefinition ErrCode = "INVALID_DEFINITION"
	ErrInvalidAnswer     ErrCode = "INVALID_ANSWER"
	ErrUnknownEvent      ErrCode = "UNKNOWN_EVENT"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrInvalidAccessCode ErrCode = "INVALID_ACCESS_CODE"
	ErrInvalidUser       ErrCode = "INVALID_USER"
	ErrSessionNotFound   ErrCode = "SESSION_NOT_FOUND"
	ErrNotInSession      ErrCode = "NOT_IN_SESSION"
	ErrSessionFinished   ErrCode = "SESSION_FINISHED"
	ErrResultNotReady    ErrCode = "RESULT_NOT_READY"

	// ─── Records ───────────────────────────────────────────────────────
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrNoSubmissions ErrCode = "NO_SUBMISSIONS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStorageUnavailable ErrCode = "STORAGE_UNAVAILABLE"
	ErrInternal           ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Kata sandi salah."
	case ErrAdminDisabled:
		return "Login administrator belum dikonfigurasi."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidDefinition:
		return "Definisi ujian tidak valid."
	case ErrInvalidAnswer:
		return "Jawaban tidak valid untuk soal ini."
	case ErrUnknownEvent:
		return "Jenis kejadian tidak dikenal."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrInvalidAccessCode:
		return "Kode akses salah atau ujian belum dipublikasikan."
	case ErrInvalidUser:
		return "Nama dan nomor peserta tidak boleh kosong."
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan."
	case ErrNotInSession:
		return "Sesi ujian tidak sedang berlangsung."
	case ErrSessionFinished:
		return "Ujian sudah dikumpulkan."
	case ErrResultNotReady:
		return "Hasil ujian belum tersedia."

	// ─── Records ───────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrNoSubmissions:
		return "Belum ada jawaban yang dikumpulkan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrStorageUnavailable:
		return "Penyimpanan tidak tersedia. Jawaban Anda belum tersimpan."
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
