package domain

// User is kept in the registry for the "user" collection; no endpoint writes it yet.
type User struct {
	Name     string `json:"name" validate:"required,max=255" gorm:"size:255;not null" desc:"Full name"`
	Email    string `json:"email" validate:"required,max=255" gorm:"size:255;not null" desc:"Email address"`
	Address  string `json:"address" validate:"required,max=255" gorm:"size:255;not null" desc:"Address"`
	Age      *int   `json:"age" validate:"omitempty,gte=0,lte=120" desc:"Age in years"`
	IsActive bool   `json:"is_active" gorm:"not null" desc:"Whether user is active"`
}

func (*User) Kind() Kind { return KindUser }

func (u *User) Defaults() {
	*u = User{IsActive: true}
}
