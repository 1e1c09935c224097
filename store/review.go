package store

import (
	"context"
	"time"

	"github.com/kevinaaaquil/devcamper/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateReview fails with a Conflict when the user already reviewed the bootcamp.
func (db *DB) CreateReview(ctx context.Context, rv *models.Review) error {
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	res, err := db.Reviews().InsertOne(ctx, rv)
	if err != nil {
		return writeErr(err)
	}
	rv.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) ReviewByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var rv models.Review
	err := db.Reviews().FindOne(ctx, bson.M{"_id": id}).Decode(&rv)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (db *DB) ReviewDetail(ctx context.Context, id primitive.ObjectID) (bson.M, error) {
	return db.detail(ctx, ReviewsCollection, id, bootcampSummary)
}

func (db *DB) ReviewsByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) ([]models.Review, error) {
	cur, err := db.Reviews().Find(ctx, bson.M{"bootcamp": bootcampID}, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	reviews := []models.Review{}
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (db *DB) UpdateReview(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Review, error) {
	if len(fields) == 0 {
		return db.ReviewByID(ctx, id)
	}
	var rv models.Review
	err := db.Reviews().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&rv)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, writeErr(err)
	}
	return &rv, nil
}

func (db *DB) DeleteReview(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Reviews().DeleteOne(ctx, bson.M{"_id": id})
	return err
}
