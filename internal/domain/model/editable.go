package model

// Поля цели, которые можно менять в любой момент.
var targetGeneralFields = []string{
	"type", "right_ascension", "declination", "magnitude", "redshift", "size",
	"semester", "comments",
}

// Файловые поля существующей цели (загрузка и удаление файлов).
var targetFileFields = []string{
	"upload_image", "upload_datafiles", "delete_image", "delete_datafiles",
}

// Поля исследователя, редактируемые при наличии учётной записи.
var researcherFields = []string{
	"role", "is_phd", "institution", "comments", "denied_blocks",
}

// TargetEditableFields возвращает редактируемые поля цели.
// Новая цель: имя и общие поля. Существующая: имя только для чтения,
// добавляются операции с файлами (каталог уже создан).
func TargetEditableFields(isNew bool) []string {
	fields := make([]string, 0, len(targetGeneralFields)+len(targetFileFields)+1)
	if isNew {
		fields = append(fields, "name")
		return append(fields, targetGeneralFields...)
	}
	fields = append(fields, targetGeneralFields...)
	return append(fields, targetFileFields...)
}

// ResearcherEditableFields возвращает редактируемые поля исследователя.
// nil — создание (вместе с учётной записью, поле user доступно).
// Исследователь без учётной записи не редактируется. Иначе user только для чтения.
// Имя и email синхронизируются из учётной записи и напрямую не редактируются.
func ResearcherEditableFields(r *Researcher) []string {
	if r == nil {
		return append([]string{"user"}, researcherFields...)
	}
	if r.UserID == nil {
		return []string{}
	}
	return append([]string(nil), researcherFields...)
}

// Contains сообщает, входит ли поле в набор.
func Contains(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}
