package domain

type PolicyInput struct {
	Hash     string            `json:"hash"`
	Subject  Subject           `json:"subject"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}
