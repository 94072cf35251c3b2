package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIResource is a JSON-friendly resource reference.
type CLIResource struct {
	URI      string `json:"uri"`
	Kind     string `json:"kind"`
	Path     string `json:"path,omitempty"`
	Archive  string `json:"archive,omitempty"`
	Entry    string `json:"entry,omitempty"`
	Editable bool   `json:"editable"`
}

// CLIFqn is the result of the fqn command.
type CLIFqn struct {
	FQN      string      `json:"fqn"`
	Resource CLIResource `json:"resource"`
}

// CLIMatch is one result of the find command.
type CLIMatch struct {
	Resource   CLIResource `json:"resource"`
	Confidence string      `json:"confidence"`
}

// CLIContent is the result of the content command.
type CLIContent struct {
	URI  string `json:"uri"`
	Text string `json:"text"`
}
