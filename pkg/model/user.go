package model

import "time"

type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// LastMessage is the conversation preview attached to a contact.
type LastMessage struct {
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	IsSentByMe bool      `json:"isSentByMe"`
}

type Contact struct {
	User
	LastMessage *LastMessage `json:"lastMessage"`
}
