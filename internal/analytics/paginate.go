package analytics

const (
	DefaultPerPage = 10
	pageWindow     = 5
)

// Page страница списка. From / To нумеруются с 1, для пустого списка равны 0.
// Pages номера страниц для навигации, не более пяти вокруг текущей.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	TotalItems int   `json:"total_items"`
	From       int   `json:"from"`
	To         int   `json:"to"`
	Pages      []int `json:"pages"`
}

// Paginate возвращает страницу page. Номер страницы приводится к допустимому диапазону.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)

	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)

	p := Page[T]{
		Items:      items[start:end],
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		TotalItems: total,
	}
	if end > start {
		p.From = start + 1
		p.To = end
	}

	first := max(1, page-pageWindow/2)
	last := min(totalPages, first+pageWindow-1)
	first = max(1, last-pageWindow+1)
	for n := first; n <= last; n++ {
		p.Pages = append(p.Pages, n)
	}

	return p
}
