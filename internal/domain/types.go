package domain

type SessionID string
type UserID string
type TurnID string

type Sender string

const (
	SenderUser Sender = "usuario"
	SenderBot  Sender = "chatbot"
)

// Category is the query classification used to pick a prompt template.
type Category string

const (
	CategoryMulta         Category = "MULTA"
	CategoryRequisito     Category = "REQUISITO"
	CategoryNormativa     Category = "NORMATIVA"
	CategoryProcedimiento Category = "PROCEDIMIENTO"
	CategoryGeneral       Category = "GENERAL"
)

// Categories returns every category in its fixed enumeration order.
// The classifier depends on this order for deterministic tie-breaking.
func Categories() []Category {
	return []Category{
		CategoryMulta,
		CategoryRequisito,
		CategoryNormativa,
		CategoryProcedimiento,
		CategoryGeneral,
	}
}

// Intent is a coarse estimate of what the user wants from the answer.
type Intent int

const (
	IntentInfo    Intent = 1 // concrete data
	IntentExplain Intent = 2 // understand how something works
	IntentAdvice  Intent = 3 // guidance, steps to follow
)

type SessionStatus string

const (
	StatusActive SessionStatus = "activa"
	StatusEnded  SessionStatus = "finalizada"
)
