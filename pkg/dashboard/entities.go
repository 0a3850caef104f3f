package dashboard

// Accommodation is a bookable property.
type Accommodation struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  ID        `json:"category_id"`
	Price       Number    `json:"price"`
	Rating      Number    `json:"rating"`
	Thumbnail   string    `json:"thumbnail"`
	CreatedAt   Timestamp `json:"created_at"`
}

// Room belongs to an accommodation.
type Room struct {
	ID              ID        `json:"id"`
	AccommodationID ID        `json:"accommodation_id"`
	Name            string    `json:"name"`
	Capacity        int       `json:"capacity"`
	Price           Number    `json:"price"`
	CreatedAt       Timestamp `json:"created_at"`
}

// Store is a provider's shop.
type Store struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Logo        string    `json:"logo"`
	CreatedAt   Timestamp `json:"created_at"`
}

// Product is sold by a store.
type Product struct {
	ID          ID        `json:"id"`
	StoreID     ID        `json:"store_id"`
	CategoryID  ID        `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       Number    `json:"price"`
	Stock       int       `json:"stock"`
	Thumbnail   string    `json:"thumbnail"`
	CreatedAt   Timestamp `json:"created_at"`
}

// Category groups accommodations and products. Top-level categories carry
// their sub-categories inline.
type Category struct {
	ID            ID            `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	ParentID      ID            `json:"parent_id,omitempty"`
	Subcategories []SubCategory `json:"subcategories,omitempty"`
	CreatedAt     Timestamp     `json:"created_at"`
}

// SubCategory is a child of a Category.
type SubCategory struct {
	ID          ID        `json:"id"`
	CategoryID  ID        `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   Timestamp `json:"created_at"`
}

// Event is a scheduled happening listed on the marketplace.
type Event struct {
	ID          ID        `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	Thumbnail   string    `json:"thumbnail"`
	StartsAt    Timestamp `json:"starts_at"`
	CreatedAt   Timestamp `json:"created_at"`
}

// Booking is a guest reservation.
type Booking struct {
	ID              ID        `json:"id"`
	Reference       string    `json:"reference"`
	GuestName       string    `json:"guest_name"`
	AccommodationID ID        `json:"accommodation_id"`
	Status          string    `json:"status"`
	CheckIn         Timestamp `json:"check_in"`
	CheckOut        Timestamp `json:"check_out"`
	Total           Number    `json:"total"`
	CreatedAt       Timestamp `json:"created_at"`
}
