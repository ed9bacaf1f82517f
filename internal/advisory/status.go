package advisory

// Status is the question lifecycle state. The only transition is
// StatusUnanswered -> StatusAnswered.
type Status string

const (
	StatusUnanswered Status = "belum_dijawab"
	StatusAnswered   Status = "dijawab"
)

func (s Status) Valid() bool {
	return s == StatusUnanswered || s == StatusAnswered
}

// Mutable reports whether the requester may still edit or delete the question.
func (s Status) Mutable() bool {
	return s == StatusUnanswered
}

func (s Status) Label() string {
	switch s {
	case StatusAnswered:
		return "Sudah Dijawab"
	case StatusUnanswered:
		return "Belum Dijawab"
	default:
		return string(s)
	}
}
