package apiclient

// Meta carries the server's human readable message.
type Meta struct {
	Message string `json:"message"`
}

// Envelope is the {meta, body} wrapper every IdeaHub response uses.
type Envelope[T any] struct {
	Meta Meta `json:"meta"`
	Body T    `json:"body"`
}

// Page is a paginated listing.
type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
}

// PageInfo exposes the pagination fields list views need.
func (p Page[T]) PageInfo() (current, lastPage, total int) {
	return p.CurrentPage, p.LastPage, p.Total
}
