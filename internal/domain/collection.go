package domain

type Collection string

func (c Collection) String() string {
	return string(c)
}

const (
	CollectionShops          Collection = "shops"
	CollectionCategories     Collection = "categories"
	CollectionSubcategories  Collection = "subcategories"
	CollectionAdvertisements Collection = "advertisements"
	CollectionUsers          Collection = "users"
)

// Collections lists every collection the admin surface can touch.
var Collections = []Collection{
	CollectionShops,
	CollectionCategories,
	CollectionSubcategories,
	CollectionAdvertisements,
	CollectionUsers,
}

func ParseCollection(s string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

func (c Collection) GetCollectionName() string {
	switch c {
	case CollectionShops:
		return "Shops"
	case CollectionCategories:
		return "Categories"
	case CollectionSubcategories:
		return "Subcategories"
	case CollectionAdvertisements:
		return "Advertisements"
	case CollectionUsers:
		return "Users"
	default:
		return "Unknown"
	}
}

// Flags lists the boolean fields the backend allows toggling per collection.
func (c Collection) Flags() []string {
	switch c {
	case CollectionShops:
		return []string{"isActive", "isFeatured"}
	case CollectionCategories, CollectionSubcategories, CollectionAdvertisements:
		return []string{"isActive"}
	case CollectionUsers:
		return []string{"isBlocked"}
	default:
		return nil
	}
}

func (c Collection) HasFlag(flag string) bool {
	for _, f := range c.Flags() {
		if f == flag {
			return true
		}
	}
	return false
}
