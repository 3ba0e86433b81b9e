// Package storeutil holds small helpers shared by the Mongo stores.
package storeutil

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Paginate returns *options.FindOptions with skip/limit given a 1-based page.
func Paginate(limit, page int64) *options.FindOptions {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	sk := (page - 1) * limit
	return options.Find().SetLimit(limit).SetSkip(sk)
}

// NewestFirst returns find options sorting by created_at descending.
func NewestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}
