package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/model"
)

// TokensCollection is the name of the collection holding refresh tokens.
const TokensCollection = "tokens"

// TokenRepo persists/validates refresh tokens by their SHA-256 digest.
type TokenRepo struct {
	C   *mongo.Collection
	Now func() time.Time
}

func NewTokenRepo(db *mongo.Database) *TokenRepo {
	return &TokenRepo{C: db.Collection(TokensCollection), Now: time.Now}
}

func (r *TokenRepo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// validFilter matches a record only when hash, owner, validity flag and
// expiry all hold.
func (r *TokenRepo) validFilter(tokenHash string, owner bson.ObjectID) bson.M {
	return bson.M{
		"tokenHash": tokenHash,
		"userId":    owner,
		"isValid":   true,
		"expiresAt": bson.M{"$gt": r.now()},
	}
}

// Insert stores a refresh token record, filling in id and createdAt.
func (r *TokenRepo) Insert(ctx context.Context, t *model.RefreshToken) error {
	if t.ID.IsZero() {
		t.ID = bson.NewObjectID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	if _, err := r.C.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// FindValid returns the record for tokenHash if it is still honored for
// userID, ErrNotFound otherwise.
func (r *TokenRepo) FindValid(ctx context.Context, tokenHash, userID string) (model.RefreshToken, error) {
	owner, err := parseID(userID)
	if err != nil {
		return model.RefreshToken{}, err
	}
	var t model.RefreshToken
	err = r.C.FindOne(ctx, r.validFilter(tokenHash, owner)).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return t, nil
}

// ConsumeValid atomically flips a valid record to invalid and returns it as
// it was before the update. Of two concurrent callers presenting the same
// token exactly one gets the record; the other gets ErrNotFound.
func (r *TokenRepo) ConsumeValid(ctx context.Context, tokenHash, userID string) (model.RefreshToken, error) {
	owner, err := parseID(userID)
	if err != nil {
		return model.RefreshToken{}, err
	}
	now := r.now()
	var t model.RefreshToken
	err = r.C.FindOneAndUpdate(ctx,
		r.validFilter(tokenHash, owner),
		bson.M{"$set": bson.M{"isValid": false, "revokedAt": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("consume refresh token: %w", err)
	}
	return t, nil
}

// FindByHash returns the record for tokenHash whatever its state.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.C.FindOne(ctx, bson.M{"tokenHash": tokenHash}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return t, nil
}

// SetReplacedBy links a consumed record to the record that superseded it.
func (r *TokenRepo) SetReplacedBy(ctx context.Context, id, successorID string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	next, err := parseID(successorID)
	if err != nil {
		return err
	}
	if _, err := r.C.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"replacedBy": next}}); err != nil {
		return fmt.Errorf("link refresh token: %w", err)
	}
	return nil
}

// InvalidateAllForUser marks every still-valid token of userID invalid.
func (r *TokenRepo) InvalidateAllForUser(ctx context.Context, userID string) error {
	owner, err := parseID(userID)
	if err != nil {
		return err
	}
	_, err = r.C.UpdateMany(ctx,
		bson.M{"userId": owner, "isValid": true},
		bson.M{"$set": bson.M{"isValid": false, "revokedAt": r.now()}})
	if err != nil {
		return fmt.Errorf("invalidate refresh tokens: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every token record of userID.
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	owner, err := parseID(userID)
	if err != nil {
		return err
	}
	if _, err := r.C.DeleteMany(ctx, bson.M{"userId": owner}); err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}
	return nil
}

// DeleteByHash removes the record for one token.
func (r *TokenRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	if _, err := r.C.DeleteOne(ctx, bson.M{"tokenHash": tokenHash}); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
