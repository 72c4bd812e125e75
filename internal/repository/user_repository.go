package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/model"
)

// UsersCollection is the name of the collection holding accounts.
const UsersCollection = "users"

type UserRepo struct{ C *mongo.Collection }

func NewUserRepo(db *mongo.Database) *UserRepo { return &UserRepo{C: db.Collection(UsersCollection)} }

// parseID converts a hex id, failing with ErrInvalidID before any query.
func parseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// FindByCredential fetches a user whose email (case-insensitive) or user
// name equals the input.
func (r *UserRepo) FindByCredential(ctx context.Context, emailOrUserName string) (model.User, error) {
	v := strings.TrimSpace(emailOrUserName)
	if v == "" {
		return model.User{}, ErrNotFound
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"email": strings.ToLower(v)},
		bson.M{"userName": v},
	}}
	return r.findOne(ctx, filter)
}

// FindByID fetches a user by its hex id.
func (r *UserRepo) FindByID(ctx context.Context, id string) (model.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.User{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// ExistsByEmailOrUserName reports whether any account already uses email or
// userName.
func (r *UserRepo) ExistsByEmailOrUserName(ctx context.Context, email, userName string) (bool, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": strings.ToLower(strings.TrimSpace(email))},
		bson.M{"userName": strings.TrimSpace(userName)},
	}}
	n, err := r.C.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// Create inserts u and fills in its id and timestamps. The unique indexes
// turn a lost uniqueness race into ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	if _, err := r.C.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored hash and bumps updatedAt.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := r.C.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	var u model.User
	err := r.C.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
