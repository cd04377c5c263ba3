package gh

// CodeSearchResult is one page of results from the code-search endpoint.
type CodeSearchResult struct {
	TotalCount        int              `json:"total_count"`
	IncompleteResults bool             `json:"incomplete_results"`
	Items             []CodeSearchItem `json:"items"`
}

// CodeSearchItem is a single matched file.
type CodeSearchItem struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	HTMLURL    string     `json:"html_url"`
	Repository Repository `json:"repository"`
}

// Repository identifies the repository a search hit belongs to.
type Repository struct {
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// TreeResult is the recursive git tree listing of a branch.
type TreeResult struct {
	SHA       string      `json:"sha"`
	Truncated bool        `json:"truncated"`
	Entries   []TreeEntry `json:"tree"`
}

// TreeEntry is one object in a git tree. Type is "blob" for files and "tree"
// for directories.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// apiError is the error envelope the REST API returns on failures.
type apiError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}
