package domain

import "time"

type Category struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func (c *Category) ItemID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

type Subcategory struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	ImageURL   string `json:"image,omitempty"`
	CategoryID Ref    `json:"categoryId"`
	IsActive   bool   `json:"isActive"`
}

func (s *Subcategory) ItemID() string {
	if s == nil {
		return ""
	}
	return s.ID
}

func (s *Subcategory) GroupRef(field GroupField) Ref {
	if s == nil {
		return Ref{}
	}
	if field == GroupCategory {
		return s.CategoryID
	}
	return Ref{}
}

type Shop struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"` // admin-authored HTML
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	ImageURL      string    `json:"image,omitempty"`
	Timings       string    `json:"timings,omitempty"`
	CategoryID    Ref       `json:"categoryId"`
	SubcategoryID Ref       `json:"subCategoryId"`
	IsActive      bool      `json:"isActive"`
	IsFeatured    bool      `json:"isFeatured"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

func (s *Shop) ItemID() string {
	if s == nil {
		return ""
	}
	return s.ID
}

func (s *Shop) GroupRef(field GroupField) Ref {
	if s == nil {
		return Ref{}
	}
	switch field {
	case GroupCategory:
		return s.CategoryID
	case GroupSubcategory:
		return s.SubcategoryID
	default:
		return Ref{}
	}
}

type Advertisement struct {
	ID         string `json:"_id"`
	Title      string `json:"title"`
	ImageURL   string `json:"image,omitempty"`
	Link       string `json:"link,omitempty"`
	CategoryID Ref    `json:"categoryId"`
	IsActive   bool   `json:"isActive"`
}

func (a *Advertisement) ItemID() string {
	if a == nil {
		return ""
	}
	return a.ID
}

func (a *Advertisement) GroupRef(field GroupField) Ref {
	if a == nil {
		return Ref{}
	}
	if field == GroupCategory {
		return a.CategoryID
	}
	return Ref{}
}

type User struct {
	ID        string   `json:"_id"`
	Name      string   `json:"name"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Favorites []string `json:"favorites,omitempty"`
	IsBlocked bool     `json:"isBlocked"`
}

// HasFavorite reports whether the shop is among the user's favorites.
func (u *User) HasFavorite(shopID string) bool {
	if u == nil {
		return false
	}
	for _, id := range u.Favorites {
		if id == shopID {
			return true
		}
	}
	return false
}
