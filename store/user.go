package store

import (
	"context"
	"strings"
	"time"

	"github.com/kevinaaaquil/devcamper/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&u)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts user and sets its ID. The email is stored lower-case.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	res, err := db.Users().InsertOne(ctx, user, options.InsertOne())
	if err != nil {
		return writeErr(err)
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByResetToken finds the user holding hash whose reset window is still open at now.
func (db *DB) UserByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{
		"resetPasswordToken":  hash,
		"resetPasswordExpire": bson.M{"$gt": now},
	}).Decode(&u)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserUpdate holds the optional fields of a partial user update.
type UserUpdate struct {
	Name  *string
	Email *string
	Role  *string
}

// UpdateUser applies the non-nil fields and returns the updated document, or nil if absent.
func (db *DB) UpdateUser(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*models.User, error) {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Email != nil {
		set["email"] = strings.ToLower(*upd.Email)
	}
	if upd.Role != nil {
		set["role"] = *upd.Role
	}
	if len(set) == 0 {
		return db.UserByID(ctx, id)
	}
	var u models.User
	err := db.Users().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, writeErr(err)
	}
	return &u, nil
}

// SaveCredentials persists the password hash and reset fields exactly as they are on user.
func (db *DB) SaveCredentials(ctx context.Context, user *models.User) error {
	update := bson.M{"$set": bson.M{"password": user.Password}}
	if user.ResetPasswordToken != "" && user.ResetPasswordExpire != nil {
		update["$set"].(bson.M)["resetPasswordToken"] = user.ResetPasswordToken
		update["$set"].(bson.M)["resetPasswordExpire"] = *user.ResetPasswordExpire
	} else {
		update["$unset"] = bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""}
	}
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	return err
}

// DeleteUser reports whether a document was removed.
func (db *DB) DeleteUser(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := db.Users().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
