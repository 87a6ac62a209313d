// File: internal/api/model.go
package api

// User mirrors the backend's user payload.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// RegisterRequest carries the signup form. PhoneNumber is optional at
// registration time; OAuth users supply it later through profile completion.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,min=8"`
}

// AuthResponse is the success body of login, register and google-auth.
// Register may omit the token pair depending on backend policy; NeedsPhone is
// only ever set by the google-auth exchange.
type AuthResponse struct {
	Access     string `json:"access"`
	Refresh    string `json:"refresh"`
	User       *User  `json:"user"`
	NeedsPhone bool   `json:"needs_phone"`
}

// HasTokens reports whether the response carries a complete session pair.
func (r *AuthResponse) HasTokens() bool {
	return r.Access != "" && r.Refresh != ""
}

// ProfileUpdate is a partial profile patch; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// ValidationResult is the body of the uniqueness-check endpoints.
type ValidationResult struct {
	Exists bool `json:"exists"`
	Valid  bool `json:"valid"`
}

// MessageResponse is the body of the password-reset endpoints.
type MessageResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// ServiceCategory is one entry of the public service catalog. Localized
// name/description variants exist on the wire but are not carried here.
type ServiceCategory struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	Level          int    `json:"level"`
	HierarchyOrder string `json:"hierarchy_order"`
	IsActive       bool   `json:"is_active"`
	Parent         *int64 `json:"parent"`
}

// ServiceCategoryPage is one page of the catalog listing.
type ServiceCategoryPage struct {
	Count    int64             `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []ServiceCategory `json:"results"`
}
