package i18n

// Message codes shared by the mutation coordinator, screens and the CLI.
const (
	CodeCreated = "mutation.created"
	CodeUpdated = "mutation.updated"
	CodeDeleted = "mutation.deleted"

	CodeValidation           = "error.validation"
	CodeFieldInvalid         = "error.field_invalid"
	CodeConfirmationRequired = "error.confirmation_required"
	CodeTransport            = "error.transport"
	CodeServer               = "error.server"
	CodeUnauthorized         = "error.unauthorized"
	CodeNotFound             = "error.not_found"

	CodeListSummary = "list.summary"
	CodeListEmpty   = "list.empty"
	CodeListFailed  = "list.failed"
	CodeListStale   = "list.stale"
)
