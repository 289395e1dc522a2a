package entity

import "github.com/google/uuid"

type QueryBy string

const (
	QueryByCSS   QueryBy = "css"
	QueryByLabel QueryBy = "label"
	QueryByText  QueryBy = "text"
)

func (q QueryBy) Valid() bool {
	switch q {
	case QueryByCSS, QueryByLabel, QueryByText:
		return true
	}
	return false
}

type PageInfo struct {
	ID    uuid.UUID `json:"page_id"`
	URL   string    `json:"url"`
	Title string    `json:"title"`
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}
