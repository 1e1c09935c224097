package store

import (
	"context"
	"math"
	"time"

	"github.com/kevinaaaquil/devcamper/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EarthRadiusMiles converts a distance in miles to radians for $centerSphere.
const EarthRadiusMiles = 3963.0

func (db *DB) CreateBootcamp(ctx context.Context, b *models.Bootcamp) error {
	b.Slug = models.Slugify(b.Name)
	if b.Photo == "" {
		b.Photo = models.DefaultPhoto
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	res, err := db.Bootcamps().InsertOne(ctx, b)
	if err != nil {
		return writeErr(err)
	}
	b.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) BootcampByID(ctx context.Context, id primitive.ObjectID) (*models.Bootcamp, error) {
	var b models.Bootcamp
	err := db.Bootcamps().FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBootcampsByOwner is used to cap publishers at one bootcamp.
func (db *DB) CountBootcampsByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	return db.Bootcamps().CountDocuments(ctx, bson.M{"user": owner})
}

// UpdateBootcamp sets fields and returns the updated document, or nil if absent.
// A new name also regenerates the slug.
func (db *DB) UpdateBootcamp(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Bootcamp, error) {
	if name, ok := fields["name"].(string); ok {
		fields["slug"] = models.Slugify(name)
	}
	if len(fields) == 0 {
		return db.BootcampByID(ctx, id)
	}
	var b models.Bootcamp
	err := db.Bootcamps().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&b)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, writeErr(err)
	}
	return &b, nil
}

func (db *DB) SetBootcampPhoto(ctx context.Context, id primitive.ObjectID, key string) error {
	_, err := db.Bootcamps().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"photo": key}})
	return err
}

// BootcampsWithinRadius returns bootcamps whose location lies within miles of (lng, lat).
func (db *DB) BootcampsWithinRadius(ctx context.Context, lng, lat, miles float64) ([]models.Bootcamp, error) {
	filter := bson.M{"location": bson.M{"$geoWithin": bson.M{
		"$centerSphere": bson.A{bson.A{lng, lat}, miles / EarthRadiusMiles},
	}}}
	cur, err := db.Bootcamps().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	bootcamps := []models.Bootcamp{}
	if err := cur.All(ctx, &bootcamps); err != nil {
		return nil, err
	}
	return bootcamps, nil
}

// DeleteBootcamp removes the bootcamp with its courses and reviews.
// It returns the deleted document so the caller can drop the stored photo, or nil if absent.
func (db *DB) DeleteBootcamp(ctx context.Context, id primitive.ObjectID) (*models.Bootcamp, error) {
	var b models.Bootcamp
	err := db.Bootcamps().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&b)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := db.Courses().DeleteMany(ctx, bson.M{"bootcamp": id}); err != nil {
		return &b, err
	}
	if _, err := db.Reviews().DeleteMany(ctx, bson.M{"bootcamp": id}); err != nil {
		return &b, err
	}
	return &b, nil
}

// UpdateAverageCost recomputes averageCost from the bootcamp's courses, rounded up to a multiple of 10.
// The field is removed when no courses remain.
func (db *DB) UpdateAverageCost(ctx context.Context, bootcampID primitive.ObjectID) error {
	avg, ok, err := db.average(ctx, CoursesCollection, bootcampID, "$tuition")
	if err != nil {
		return err
	}
	update := bson.M{"$unset": bson.M{"averageCost": ""}}
	if ok {
		update = bson.M{"$set": bson.M{"averageCost": RoundCost(avg)}}
	}
	_, err = db.Bootcamps().UpdateOne(ctx, bson.M{"_id": bootcampID}, update)
	return err
}

// UpdateAverageRating recomputes averageRating from the bootcamp's reviews.
func (db *DB) UpdateAverageRating(ctx context.Context, bootcampID primitive.ObjectID) error {
	avg, ok, err := db.average(ctx, ReviewsCollection, bootcampID, "$rating")
	if err != nil {
		return err
	}
	update := bson.M{"$unset": bson.M{"averageRating": ""}}
	if ok {
		update = bson.M{"$set": bson.M{"averageRating": avg}}
	}
	_, err = db.Bootcamps().UpdateOne(ctx, bson.M{"_id": bootcampID}, update)
	return err
}

func (db *DB) average(ctx context.Context, collection string, bootcampID primitive.ObjectID, expr string) (float64, bool, error) {
	docs, err := db.Aggregate(ctx, collection, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "bootcamp", Value: bootcampID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$bootcamp"},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: expr}}},
		}}},
	})
	if err != nil || len(docs) == 0 {
		return 0, false, err
	}
	avg, ok := docs[0]["avg"].(float64)
	return avg, ok, nil
}

// RoundCost rounds avg up to the next multiple of 10.
func RoundCost(avg float64) float64 {
	return math.Ceil(avg/10) * 10
}
