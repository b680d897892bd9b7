package catalog

import "time"

type Space struct {
	ID          string    `json:"spaceId"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Capacity    int       `json:"capacity"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Professor carries identity fields only. Credentials and login live in the
// account service, not here.
type Professor struct {
	ID    string `json:"professorId"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
