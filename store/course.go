package store

import (
	"context"
	"time"

	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) CreateCourse(ctx context.Context, c *models.Course) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := db.Courses().InsertOne(ctx, c)
	if err != nil {
		return writeErr(err)
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) CourseByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error) {
	var c models.Course
	err := db.Courses().FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CourseDetail returns the course with its bootcamp name and description embedded.
func (db *DB) CourseDetail(ctx context.Context, id primitive.ObjectID) (bson.M, error) {
	return db.detail(ctx, CoursesCollection, id, bootcampSummary)
}

func (db *DB) CoursesByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) ([]models.Course, error) {
	cur, err := db.Courses().Find(ctx, bson.M{"bootcamp": bootcampID}, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	courses := []models.Course{}
	if err := cur.All(ctx, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (db *DB) UpdateCourse(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Course, error) {
	if len(fields) == 0 {
		return db.CourseByID(ctx, id)
	}
	var c models.Course
	err := db.Courses().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&c)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, writeErr(err)
	}
	return &c, nil
}

func (db *DB) DeleteCourse(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Courses().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// detail fetches one document by id with a single relation expanded.
func (db *DB) detail(ctx context.Context, collection string, id primitive.ObjectID, pop query.Populate) (bson.M, error) {
	pipe := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}}}
	pipe = append(pipe, pop.Stages()...)
	docs, err := db.Aggregate(ctx, collection, pipe)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}
