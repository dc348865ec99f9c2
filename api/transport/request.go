package transport

// TaskRequest is the JSON body of task create and update calls. Pointer
// fields distinguish "omitted" from "set to zero" so updates can be partial.
type TaskRequest struct {
	Title              *string   `json:"title"`
	Description        *string   `json:"description"`
	Status             *string   `json:"status"`
	Priority           *string   `json:"priority"`
	DueDate            *string   `json:"due_date"`
	ReminderAt         *string   `json:"reminder_at"`
	RecurrenceRule     *string   `json:"recurrence_rule"`
	RecurrenceInterval *int      `json:"recurrence_interval"`
	RecurrenceEndDate  *string   `json:"recurrence_end_date"`
	Tags               *[]string `json:"tags"`
}

type TagRequest struct {
	Name string `json:"name"`
}

type AuthLoginRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
}
