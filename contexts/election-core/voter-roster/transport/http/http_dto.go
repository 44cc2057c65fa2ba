package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ProfileResponse struct {
	VoterID         string   `json:"voter_id"`
	FullName        string   `json:"full_name"`
	Department      string   `json:"department"`
	ClassLevel      string   `json:"class_level"`
	OrganizationIDs []string `json:"organization_ids,omitempty"`
}
