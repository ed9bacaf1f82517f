package rbac

type Role string
type Action string

const (
	RolePenanya  Role = "penanya"
	RolePenjawab Role = "penjawab"
)

const (
	ActionSubmitQuestion   Action = "submit_question"
	ActionEditQuestion     Action = "edit_question"
	ActionDeleteQuestion   Action = "delete_question"
	ActionListQuestions    Action = "list_questions"
	ActionViewHistory      Action = "view_history"
	ActionAnswerQuestion   Action = "answer_question"
	ActionEditAnswer       Action = "edit_answer"
	ActionPeekRegistration Action = "peek_registration"
	ActionExport           Action = "export"
)

func Can(role Role, action Action) bool {
	switch role {
	case RolePenanya:
		switch action {
		case ActionSubmitQuestion, ActionEditQuestion, ActionDeleteQuestion,
			ActionListQuestions, ActionViewHistory, ActionExport:
			return true
		}
		return false
	case RolePenjawab:
		switch action {
		case ActionSubmitQuestion, ActionListQuestions, ActionViewHistory, ActionExport,
			ActionAnswerQuestion, ActionEditAnswer, ActionPeekRegistration:
			return true
		}
		return false
	default:
		return false
	}
}

// Parse reports whether role is one of the known roles.
func Parse(role string) (Role, bool) {
	switch Role(role) {
	case RolePenanya, RolePenjawab:
		return Role(role), true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	_, ok := Parse(string(r))
	return ok
}

// ScopedToOwner reports whether list reads for role only cover the caller's own rows.
func (r Role) ScopedToOwner() bool {
	return r != RolePenjawab
}
