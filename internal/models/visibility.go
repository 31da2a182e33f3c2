package models

// Visibility - производные флаги отображения узла.
type Visibility struct {
	CanShowContent bool
	CanShowRestore bool
}

// DeriveVisibility вычисляет, что можно показывать пользователю currentUserID.
// Функция чистая: её используют и view-слой, и движок согласования
// (например, чтобы не пытаться восстановить то, что восстанавливать нельзя).
//
// Правила:
//   - неудалённый комментарий показывается всем;
//   - удалённый показывается дословно только автору и только если текст ещё есть;
//   - кнопка восстановления - только у удалённого узла с CanRestore от сервера.
func DeriveVisibility(c Comment, currentUserID string) Visibility {
	isOwner := currentUserID != "" && currentUserID == c.AuthorID

	return Visibility{
		CanShowContent: !c.IsDeleted || (isOwner && c.Content != ""),
		CanShowRestore: c.IsDeleted && c.CanRestore,
	}
}
