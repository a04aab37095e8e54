package dto

// UpdateBookRequest carries the overwritten fields of PUT /api/books/:id.
// A missing field is written as the empty string.
type UpdateBookRequest struct {
	Title    *string `json:"title"`
	Author   *string `json:"author"`
	Category *string `json:"category"`
}

type AdminLoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}
