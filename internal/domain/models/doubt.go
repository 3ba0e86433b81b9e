package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reply is one answer in a doubt thread. Replies are embedded, append-only,
// and never edited or deleted in place.
type Reply struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostedBy  primitive.ObjectID `bson:"posted_by" json:"posted_by"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Doubt is a discussion thread attached to exactly one material.
type Doubt struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Material  primitive.ObjectID `bson:"material" json:"material"`
	PostedBy  primitive.ObjectID `bson:"posted_by" json:"posted_by"`
	Content   string             `bson:"content" json:"content"`
	Replies   []Reply            `bson:"replies" json:"replies"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
