package domain

// Product is kept in the registry for the "product" collection.
type Product struct {
	Title       string   `json:"title" validate:"required,max=255" gorm:"size:255;not null" desc:"Product title"`
	Description *string  `json:"description" gorm:"type:text" desc:"Product description"`
	Price       *float64 `json:"price" validate:"required,gte=0" gorm:"not null" desc:"Price in dollars"`
	Category    string   `json:"category" validate:"required,max=255" gorm:"size:255;not null" desc:"Product category"`
	InStock     bool     `json:"in_stock" gorm:"not null" desc:"Whether product is in stock"`
}

func (*Product) Kind() Kind { return KindProduct }

func (p *Product) Defaults() {
	*p = Product{InStock: true}
}
