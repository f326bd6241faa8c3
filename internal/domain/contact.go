package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category classifies a contact message. The set is closed.
type Category string

const (
	CategoryError       Category = "ERROR"
	CategoryIdea        Category = "IDEA"
	CategoryTestimonial Category = "TESTIMONIAL"
	CategoryOther       Category = "OTHER"
)

var categories = []Category{CategoryError, CategoryIdea, CategoryTestimonial, CategoryOther}

func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, error) {
	for _, known := range categories {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", &ValidationError{Reason: fmt.Sprintf("Category '%s' is invalid", s)}
}

// ValidationError is a caller-fixable problem with a submitted message.
// Reason is safe to return to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Reason
}

// ContactMessage is a message submitted through the contact form.
// Data is nil when the caller supplied no metadata.
type ContactMessage struct {
	ID        string
	Category  Category
	Email     string
	Name      string
	Message   string
	Data      map[string]string
	CreatedAt time.Time
}

// NewContactMessage builds a ContactMessage with a fresh id. All domain rules
// for a message are enforced here; string fields are kept verbatim.
func NewContactMessage(category Category, email, name, message string, data map[string]string) (*ContactMessage, error) {
	if !category.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("Category '%s' is invalid", category)}
	}
	if email == "" {
		return nil, &ValidationError{Reason: "Email is required"}
	}
	return &ContactMessage{
		ID:       newID(),
		Category: category,
		Email:    email,
		Name:     name,
		Message:  message,
		Data:     data,
	}, nil
}

var newID = func() string {
	return uuid.NewString()
}
