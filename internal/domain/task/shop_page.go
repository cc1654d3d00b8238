package task

import "nammakumta/directory/internal/domain"

type ShopPageTask struct {
	PageNumber int            `json:"page_number"` // Backend page number
	PageSize   int            `json:"page_size"`   // Page size the page was fetched with
	Shops      []*domain.Shop `json:"shops"`       // Shops on this page, in backend order
	RetryCount int            `json:"retry_count"` // Retries already spent on this page
}

func (t *ShopPageTask) TaskType() string {
	return TypeShopPage
}

func (t *ShopPageTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

// Offset is the position of the page's first shop in the full listing.
func (t *ShopPageTask) Offset() int {
	if t.PageNumber < 1 {
		return 0
	}
	return (t.PageNumber - 1) * t.PageSize
}
