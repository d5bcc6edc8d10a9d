package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products; ParentID forms an optional tree
type Category struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	ParentID  *uint     `json:"parent_id" gorm:"index"`
	Parent    *Category `json:"-" gorm:"foreignKey:ParentID;constraint:OnDelete:SET NULL"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

// Product represents a sellable catalog entry with its stock counter
type Product struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null;check:chk_products_price,price > 0"`
	CategoryID  uint            `json:"category_id" gorm:"not null;index"`
	Category    *Category       `json:"category,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Description string          `json:"description" gorm:"type:text"`
	Stock       int             `json:"stock" gorm:"not null;default:0;check:chk_products_stock,stock >= 0"`
	ImageURL    string          `json:"image_url" gorm:"type:varchar(500)"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// CartItem is one line of a user's cart; (user, product) is unique
type CartItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	User      *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	ProductID uint      `json:"product_id" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	Product   *Product  `json:"product,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Quantity  int       `json:"quantity" gorm:"not null;default:1;check:chk_cart_quantity,quantity > 0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "cart"
}

// LineTotal returns quantity times the live product price
func (c CartItem) LineTotal() decimal.Decimal {
	if c.Product == nil {
		return decimal.Zero
	}
	return c.Product.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// Comment is a product review
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	User      *User     `json:"user,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	ProductID uint      `json:"product_id" gorm:"not null;index"`
	Product   *Product  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Rating    int       `json:"rating" gorm:"not null;check:chk_comments_rating,rating BETWEEN 1 AND 5"`
	Text      string    `json:"comment" gorm:"column:comment;type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Comment) TableName() string {
	return "comments"
}
