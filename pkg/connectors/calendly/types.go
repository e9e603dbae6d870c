package calendly

import "time"

// User is a Calendly user.
type User struct {
	URI                 string    `json:"uri"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Timezone            string    `json:"timezone"`
	CurrentOrganization string    `json:"current_organization"`
	CreatedAt           time.Time `json:"created_at"`
}

// Event is a scheduled event.
type Event struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	EventType string    `json:"event_type"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Location  *struct {
		Type     string `json:"type"`
		Location string `json:"location,omitempty"`
		JoinURL  string `json:"join_url,omitempty"`
	} `json:"location,omitempty"`
}

// EventType is a bookable event type.
type EventType struct {
	URI           string    `json:"uri"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Active        bool      `json:"active"`
	Duration      int       `json:"duration"`
	SchedulingURL string    `json:"scheduling_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// Invitee is a person booked into a scheduled event.
type Invitee struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is an organization group.
type Group struct {
	URI          string    `json:"uri"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
	CreatedAt    time.Time `json:"created_at"`
}

// Membership links a user to an organization.
type Membership struct {
	URI          string `json:"uri"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
	User         struct {
		URI   string `json:"uri"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}
