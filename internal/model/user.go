package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User represents an account document in the `users` collection.
// UserName and Email are each unique across the collection; Email is
// stored lower-cased. The plain password is never stored, only its bcrypt
// hash.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	UserName     string        `bson:"userName"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"passwordHash"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

// RefreshToken models a document in the `tokens` collection. The record,
// not the token's signature, decides whether a presented refresh token is
// still honored: it must be valid, unexpired and owned by the claimed user.
// Only the SHA-256 digest of the signed token is stored.
//
// Fields:
//
//	ID         – document id.
//	UserID     – owner of the token.
//	TokenHash  – SHA-256 hex digest of the token value.
//	IsValid    – false once the token is rotated or revoked.
//	ExpiresAt  – expiration timestamp of the token.
//	CreatedAt  – timestamp of creation.
//	RevokedAt  – when IsValid flipped to false (nil while valid).
//	ReplacedBy – record that superseded this one on rotation.
type RefreshToken struct {
	ID         bson.ObjectID  `bson:"_id,omitempty"`
	UserID     bson.ObjectID  `bson:"userId"`
	TokenHash  string         `bson:"tokenHash"`
	IsValid    bool           `bson:"isValid"`
	ExpiresAt  time.Time      `bson:"expiresAt"`
	CreatedAt  time.Time      `bson:"createdAt"`
	RevokedAt  *time.Time     `bson:"revokedAt,omitempty"`
	ReplacedBy *bson.ObjectID `bson:"replacedBy,omitempty"`
}
