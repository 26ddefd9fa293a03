package model

import "time"

type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh"`
	AuthKey   string    `json:"auth"`
	CreatedAt time.Time `json:"createdAt"`
}
