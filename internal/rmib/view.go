package rmib

// Entry is the render state of one category.
type Entry struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Value int    `json:"value,omitempty"`
	Score int    `json:"score"`
	Valid bool   `json:"valid"`
	Issue string `json:"issue,omitempty"`
}

// View is everything a presenter needs to redraw.
type View struct {
	SessionID string  `json:"session_id"`
	Mode      Mode    `json:"mode"`
	State     string  `json:"state"`
	Entries   []Entry `json:"entries"`
	Filled    int     `json:"filled"`
	Total     int     `json:"total"`
	Progress  float64 `json:"progress"`
	Score     int     `json:"score"`
	Complete  bool    `json:"complete"`
	CanSubmit bool    `json:"can_submit"`
}

// NoticeLevel mirrors the toast severities of the test page.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a one-off message for the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// Presenter renders session state. Implementations must not call back into
// the session from Render or Notify.
type Presenter interface {
	Render(View)
	Notify(Notice)
}

// BuildView derives the render state from one consistent read of the session.
// Rank mode lists entries by rank, level mode by declaration order.
func BuildView(s *Session, sc *Scorer) View {
	cur := s.capture()

	flagged := make(map[string]Issue)
	for _, is := range s.validator.Check(cur.values) {
		if _, seen := flagged[is.Category]; !seen {
			flagged[is.Category] = is
		}
	}

	byKey := make(map[string]int, len(s.categories))
	for i, c := range s.categories {
		byKey[c.Key] = i
	}

	v := View{
		SessionID: s.id.String(),
		Mode:      s.mode,
		State:     cur.state.String(),
		Entries:   make([]Entry, 0, len(cur.order)),
		Filled:    len(cur.values),
		Total:     len(s.categories),
	}
	for _, key := range cur.order {
		c := s.categories[byKey[key]]
		e := Entry{Key: c.Key, Name: c.Name, Icon: c.Icon, Valid: true}
		if value, ok := cur.values[key]; ok {
			e.Value = value
			e.Score = sc.ScoreOf(value)
		}
		if is, bad := flagged[key]; bad {
			e.Valid = false
			e.Issue = is.Message()
		}
		v.Entries = append(v.Entries, e)
	}

	v.Score = sc.Total(cur.values)
	if v.Total > 0 {
		v.Progress = float64(v.Filled) / float64(v.Total) * 100
	}
	v.Complete = s.validator.Final(cur.values) == nil
	v.CanSubmit = v.Complete && cur.state == StateActive

	return v
}
