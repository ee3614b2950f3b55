package display

// Operator-facing text.
const (
	Placeholder = "—"

	ToggleOn  = "Включить камеру"
	ToggleOff = "Выключить камеру"

	SnapshotIdle = "Сделать снимок и распознать"
	SnapshotBusy = "Распознавание..."

	StatusRequesting     = "Запрашиваю доступ к камере..."
	StatusActiveFormat   = "Камера активна: %s (%d×%d)"
	StatusUnsupported    = "Камера не поддерживается в этом браузере"
	StatusAccessError    = "Ошибка доступа к камере: %s"
	StatusUnknownError   = "Неизвестная ошибка"
	StatusRecognizerDown = "Распознавание недоступно"
	StatusProcessing     = "Делаю снимок и отправляю на распознавание..."
	StatusRecognizeOK    = "Распознавание успешно завершено"
	StatusRecognizeError = "Распознавание завершено с ошибкой"
	StatusRequestError   = "Ошибка при распознавании"

	ResultNetworkError   = "Ошибка сети: %s"
	ResultMalformed      = "Некорректный ответ сервиса"
	SectionFields        = "Поля паспорта"
	SectionMRZ           = "MRZ"
	SectionChecks        = "Проверки"
	SectionConfidence    = "Интегральная уверенность"
	LabelModelConfidence = "Оценка модели"
	LabelTextType        = "Тип"
	LabelLanguage        = "Язык"
	TextTypePrinted      = "печатный"
	TextTypeHandwritten  = "рукописный"
	TextTypeUnknown      = "неизвестно"
	LabelDocumentNumber  = "Номер документа"
	LabelDateOfBirth     = "Дата рождения"
	LabelDateOfExpiry    = "Дата окончания"
)
