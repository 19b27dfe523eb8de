package dto

// UndoRequest for POST /undo/:entryId and /undo/groups/:groupId. The body
// is optional; Reason is recorded on the undone entry's undo state.
type UndoRequest struct {
	Reason string `json:"reason"`
}
