package domain

const defaultContactSource = "website"

// ContactMessage is a contact form submission. Write-only from the API.
type ContactMessage struct {
	Name    string  `json:"name" validate:"required,max=255" gorm:"size:255;not null" desc:"Sender name"`
	Email   string  `json:"email" validate:"required,email,max=255" gorm:"size:255;not null" desc:"Sender email"`
	Phone   *string `json:"phone" validate:"omitempty,max=64" gorm:"size:64" desc:"Phone / WhatsApp number"`
	Message string  `json:"message" validate:"required" gorm:"type:text;not null" desc:"Message content"`
	Source  *string `json:"source" validate:"omitempty,max=64" gorm:"size:64" desc:"Submission source identifier"`
}

func (*ContactMessage) Kind() Kind { return KindContactMessage }

func (m *ContactMessage) Defaults() {
	source := defaultContactSource
	*m = ContactMessage{Source: &source}
}
