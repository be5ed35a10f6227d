package model

// Category groups menu items on the storefront (e.g. Pizzas, Sides).
//
// Fields:
//  ID        – categories.id
//  Name      – display name.
//  Slug      – URL-safe identifier used by the menu page anchors.
//  SortOrder – display order, ascending.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	SortOrder   int    `json:"sortOrder"`
}

// MenuItem is a purchasable product.  Price is in the store currency's
// major unit, matching what the cart stores as unit price.
type MenuItem struct {
	ID          string  `json:"id"`
	CategoryID  string  `json:"categoryId"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	IsAvailable bool    `json:"isAvailable"`
}

// Deal is a bundled promotion shown alongside the menu.
type Deal struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"originalPrice,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	Items         []string `json:"items,omitempty"`
	IsActive      bool     `json:"isActive"`
}
