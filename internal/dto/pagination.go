package dto

// PageQuery carries the page/limit query parameters shared by list endpoints.
// Zero values mean "use the default".
type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PageResult is the uniform paginated payload: {total, page, limit, items}.
type PageResult[T any] struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Items []T `json:"items"`
}

// NewPage builds a PageResult, normalising a nil slice to an empty list.
func NewPage[T any](items []T, total, page, limit int) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Total: total, Page: page, Limit: limit, Items: items}
}
