package repositories

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostsCollection is the MongoDB collection holding feed posts
const PostsCollection = "posts"

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, opts ListOptions) ([]models.Post, error)
	AdjustLikesCount(ctx context.Context, postID string, delta int) (int, error)
	IncrementCommentsCount(ctx context.Context, postID string) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection(PostsCollection)}
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: post %q", ErrInvalidID, id)
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

var postSortColumns = map[string]string{
	"createdAt": "created_at",
	"likes":     "likes_count",
}

// ListPosts returns feed posts, most recent first by default
func (r *MongoPostRepository) ListPosts(ctx context.Context, opts ListOptions) ([]models.Post, error) {
	filter := bson.M{}
	if opts.Search != "" {
		filter["content"] = bson.M{"$regex": regexp.QuoteMeta(opts.Search), "$options": "i"}
	}

	sortField, ok := postSortColumns[opts.SortBy]
	if !ok {
		sortField = "created_at"
	}
	dir := -1
	if opts.SortOrder == "asc" {
		dir = 1
	}

	findOptions := options.Find().
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.limit())).
		SetSort(bson.D{{Key: sortField, Value: dir}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// AdjustLikesCount applies delta to likes_count and returns the new count
func (r *MongoPostRepository) AdjustLikesCount(ctx context.Context, postID string, delta int) (int, error) {
	objID, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return 0, fmt.Errorf("%w: post %q", ErrInvalidID, postID)
	}
	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objID},
		bson.M{"$inc": bson.M{"likes_count": delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if err != nil {
		return 0, err
	}
	return post.LikesCount, nil
}

// IncrementCommentsCount increments the comments count of a post
func (r *MongoPostRepository) IncrementCommentsCount(ctx context.Context, postID string) error {
	objID, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return fmt.Errorf("%w: post %q", ErrInvalidID, postID)
	}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$inc": bson.M{"comments_count": 1}})
	return err
}

// EnsurePostIndexes creates the indexes the feed queries sort and search on
func EnsurePostIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(PostsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "likes_count", Value: -1}}},
	})
	return err
}
