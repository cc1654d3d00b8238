package domain

// GroupField names the field two entities are compared on when deciding
// whether they are related.
type GroupField string

const (
	GroupCategory    GroupField = "categoryId"
	GroupSubcategory GroupField = "subCategoryId"
)
