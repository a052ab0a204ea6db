package model

import "time"

// User is an account in the system. ID is a type-tagged resource
// identifier ("user..<suffix>") assigned once at signup.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     *string    `json:"fullName,omitempty"`
	IsActive     bool       `json:"isActive"`
	IsSuperuser  bool       `json:"isSuperuser"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// MetricRecord is one time-series data point. The tuple
// (UserID, Kind, Timestamp, Source) is the natural key: ingestion
// updates an existing row for the key instead of inserting a duplicate.
type MetricRecord struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Kind      string             `json:"kind"`
	Timestamp time.Time          `json:"date"`
	Fields    map[string]float64 `json:"values"`
	Labels    map[string]string  `json:"labels,omitempty"`
	Source    string             `json:"source"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
}

// Goal is a set of numeric targets. General and macros goals are 1:1
// with a user; weight goals are keyed by (user, target hour).
type Goal struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	Kind        string             `json:"kind"`
	TargetTime  *time.Time         `json:"targetTime,omitempty"`
	Fields      map[string]float64 `json:"values"`
	Description *string            `json:"description,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   *time.Time         `json:"updatedAt,omitempty"`
}

// Conversation groups chat messages for a user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single chat turn inside a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ListMetricsRequest captures filters used when listing metric records.
type ListMetricsRequest struct {
	UserID    string
	Kind      string
	StartDate *time.Time
	EndDate   *time.Time
}
