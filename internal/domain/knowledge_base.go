package domain

// KnowledgeBaseStats summarizes one knowledge base. Marker chunks are not counted.
type KnowledgeBaseStats struct {
	Name          string   `json:"name"`
	DocumentCount int      `json:"document_count"`
	SourceCount   int      `json:"source_count"`
	Sources       []string `json:"sources"`
}

// Route is the outcome of intent routing for one question.
type Route struct {
	MatchedKBs []string `json:"matched_kbs"`
	Confidence float64  `json:"confidence"`
}

// EmptyRoute is returned when nothing could be classified.
func EmptyRoute() Route {
	return Route{MatchedKBs: []string{}, Confidence: 0}
}

// WebResult is one organic web search hit used to enrich a prompt.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
