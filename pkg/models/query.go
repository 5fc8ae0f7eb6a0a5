package models

import "time"

// Query is a question raised on a task. VisibleTo is fixed when the query is raised.
type Query struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"task_id"`
	OrganizationID string     `json:"organization_id"`
	RaisedBy       string     `json:"raised_by"`
	Message        string     `json:"message"`
	VisibleTo      []string   `json:"visible_to"`
	Responses      []Response `json:"responses"`
	Resolved       bool       `json:"resolved"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Response is one reply in a query thread.
type Response struct {
	ID          string    `json:"id"`
	ResponderID string    `json:"responder_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// CanSee reports whether userID is in the stored visibility set.
func (q *Query) CanSee(userID string) bool {
	for _, id := range q.VisibleTo {
		if id == userID {
			return true
		}
	}
	return false
}

// ResponseIndex returns the position of the response with the given id, or -1.
func (q *Query) ResponseIndex(responseID string) int {
	for i, r := range q.Responses {
		if r.ID == responseID {
			return i
		}
	}
	return -1
}

// QueryView is a query with the raiser populated.
type QueryView struct {
	Query
	Raiser *UserRef `json:"raiser,omitempty"`
}
