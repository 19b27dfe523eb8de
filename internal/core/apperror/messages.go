package apperror

// User-facing messages. The mobile client renders these verbatim, so they are
// pre-localized in Arabic; the stable contract for programmatic handling is
// the error code, not the text.
const (
	MsgAuthenticationRequired = "يجب تسجيل الدخول أولاً"
	MsgPermissionDenied       = "ليس لديك صلاحية لتعديل هذا الملف"
	MsgNotFound               = "السجل غير موجود أو تم حذفه"
	MsgVersionConflict        = "تم تعديل السجل من قبل مستخدم آخر، يرجى التحديث والمحاولة مرة أخرى"
	MsgLockedByOther          = "السجل قيد التعديل من قبل مستخدم آخر، حاول مرة أخرى"
	MsgBatchLimitExceeded     = "تجاوزت العملية الحد الأقصى المسموح به"
	MsgAlreadyUndone          = "تم التراجع عن هذا الإجراء مسبقاً"
	MsgBeingUndoneByOther     = "يتم التراجع عن هذا الإجراء من قبل مستخدم آخر"
	MsgTimeout                = "استغرقت العملية وقتاً طويلاً، حاول مرة أخرى"
	MsgInternal               = "حدث خطأ غير متوقع"
)
