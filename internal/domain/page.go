package domain

// ShopPage is one page of the backend's paginated shop listing.
type ShopPage struct {
	Shops      []*Shop `json:"data"`
	PageNumber int     `json:"page"`       // Current page number
	TotalPages int     `json:"totalPages"` // Total number of pages
	TotalItems int     `json:"total"`      // Total shops across all pages
}

// ShopListing summarises a full paginated walk of the shop collection.
type ShopListing struct {
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
	StartPage  int `json:"start_page"`
}
