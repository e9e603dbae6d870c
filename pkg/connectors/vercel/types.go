package vercel

// Deployment is a Vercel deployment. Created is in Unix milliseconds.
type Deployment struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	State   string `json:"state"`
	Target  string `json:"target,omitempty"`
	Created int64  `json:"created"`
	Creator struct {
		UID      string `json:"uid"`
		Username string `json:"username,omitempty"`
		Email    string `json:"email,omitempty"`
	} `json:"creator"`
	Meta map[string]string `json:"meta,omitempty"`
}

// Project is a Vercel project.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Framework string `json:"framework,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Team is a Vercel team.
type Team struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
}

// Deployment states accepted by the state filter.
const (
	StateBuilding     = "BUILDING"
	StateError        = "ERROR"
	StateInitializing = "INITIALIZING"
	StateQueued       = "QUEUED"
	StateReady        = "READY"
	StateCanceled     = "CANCELED"
)
