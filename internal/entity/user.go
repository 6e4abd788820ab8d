package entity

// UserLoginData is the identity carried by a verified access token.
type UserLoginData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
