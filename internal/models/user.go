package models

type User struct {
	ID         int64
	Username   string
	Email      string
	Password   string
	ProfilePic string
}

// Contributor is a user projection attached to shared tasks.
type Contributor struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic"`
}
