package errors

// messages gives a short localized message per error code. Payment responses
// are localized to the payment's language (§4's "language" field, ru|en);
// this module has no catalog-sized string table to justify pulling in a
// message-catalog library, so it stays a small map literal.
var messages = map[ErrorCode]map[string]string{
	CodeSuccess:          {"en": "ok", "ru": "успешно"},
	CodeTerminalInactive: {"en": "merchant account is inactive", "ru": "учётная запись мерчанта неактивна"},
	CodeInvalidToken:     {"en": "authentication token is invalid", "ru": "неверный токен аутентификации"},
	CodePaymentNotFound:  {"en": "payment not found", "ru": "платёж не найден"},
	CodeDuplicateOrderID: {"en": "a payment with this orderId already exists", "ru": "платёж с таким orderId уже существует"},
	CodeBadStatus:        {"en": "payment is not in a status that allows this operation", "ru": "платёж находится в статусе, не допускающем эту операцию"},
	CodeAmountExceeded:   {"en": "amount exceeds the authorized amount", "ru": "сумма превышает авторизованную"},
	CodeValidationFailed: {"en": "request validation failed", "ru": "ошибка валидации запроса"},
	CodeStateConflict:    {"en": "payment state changed concurrently, retry", "ru": "статус платежа изменился параллельно, повторите запрос"},
	CodeInternal:         {"en": "internal error", "ru": "внутренняя ошибка"},
}

// Localize returns the message for code in the requested language, falling
// back to English and finally to the code itself.
func Localize(code ErrorCode, language string) string {
	if language == "" {
		language = "en"
	}
	if set, ok := messages[code]; ok {
		if msg, ok := set[language]; ok {
			return msg
		}
		return set["en"]
	}
	return string(code)
}

// NewLocalized builds a GatewayError whose Message is localized to language.
func NewLocalized(code ErrorCode, language string) *GatewayError {
	return New(code, Localize(code, language))
}
