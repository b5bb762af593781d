package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainuser "rentals/internal/domain/user"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(colUsers)}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	return r.findOne(ctx, bson.M{"email": domainuser.NormalizeEmail(email)})
}

func (r *UserRepository) Create(ctx context.Context, u *domainuser.User) error {
	roles := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, string(role))
	}
	doc := userDocument{
		ID:           string(u.ID),
		Email:        domainuser.NormalizeEmail(u.Email),
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Roles:        roles,
		CreatedAt:    u.CreatedAt.UnixMilli(),
		UpdatedAt:    u.UpdatedAt.UnixMilli(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainuser.ErrEmailAlreadyUsed
		}
		return fmt.Errorf("mongo insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domainuser.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	roles := make([]domainuser.Role, 0, len(doc.Roles))
	for _, role := range doc.Roles {
		roles = append(roles, domainuser.Role(role))
	}
	return &domainuser.User{
		ID:           domainuser.ID(doc.ID),
		Email:        doc.Email,
		Name:         doc.Name,
		PasswordHash: doc.PasswordHash,
		Roles:        roles,
		CreatedAt:    timestampToTime(doc.CreatedAt),
		UpdatedAt:    timestampToTime(doc.UpdatedAt),
	}, nil
}

type userDocument struct {
	ID           string   `bson:"_id"`
	Email        string   `bson:"email"`
	Name         string   `bson:"name"`
	PasswordHash string   `bson:"password_hash"`
	Roles        []string `bson:"roles"`
	CreatedAt    int64    `bson:"created_at"`
	UpdatedAt    int64    `bson:"updated_at"`
}

var _ domainuser.Repository = (*UserRepository)(nil)
