package model

import "time"

// MenuCategories lists the accepted values of Menu.Category.
var MenuCategories = []string{"한식", "중식", "일식", "양식", "기타"}

// ValidCategory reports whether c is an accepted menu category.
func ValidCategory(c string) bool {
	for _, v := range MenuCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Menu is an item in a restaurant's catalog.  Price is in whole currency
// units.
type Menu struct {
	ID           uint64    `json:"id"`
	RestaurantID uint64    `json:"restaurantId"`
	Name         string    `json:"name"`
	Price        uint32    `json:"price"`
	Category     string    `json:"category"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
