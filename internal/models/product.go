package models

// Product is a catalog entry sold by exactly one seller.
type Product struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"` // decimal text, e.g. "20" or "19.99"
	PhotoURL string `json:"photo_url"`
	SellerID int    `json:"seller_id"`
}
