package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/icymirror/larkgpt/internal/domain"
)

const (
	turnsCollection   = "chat_history"
	resultsCollection = "search_results"
)

// turnDocument is the BSON shape of a persisted turn.
type turnDocument struct {
	ID           string               `bson:"_id"`
	User         string               `bson:"user"`
	Sent         string               `bson:"send"`
	Answer       string               `bson:"answer,omitempty"`
	FunctionCall *domain.FunctionCall `bson:"function_call,omitempty"`
	CreatedAt    int64                `bson:"create_time"`
}

// resultDocument is the BSON shape of a persisted search result.
type resultDocument struct {
	ID         string              `bson:"_id"`
	User       string              `bson:"user"`
	Query      string              `bson:"query"`
	ResultType string              `bson:"type"`
	Items      []domain.SearchItem `bson:"result"`
	CreatedAt  int64               `bson:"create_time"`
}

// MongoStore implements Store backed by MongoDB.
type MongoStore struct {
	turns   *mongo.Collection
	results *mongo.Collection
}

// NewMongoStore creates a history store on the given database and ensures
// the recency index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{
		turns:   db.Collection(turnsCollection),
		results: db.Collection(resultsCollection),
	}

	_, err := s.turns.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "create_time", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating history index: %w", err)
	}
	return s, nil
}

// AppendTurn persists a turn and returns its id.
func (s *MongoStore) AppendTurn(ctx context.Context, turn domain.Turn) (string, error) {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	doc := turnDocument{
		ID:           turn.ID,
		User:         turn.User,
		Sent:         turn.Sent,
		Answer:       turn.Answer,
		FunctionCall: turn.FunctionCall,
		CreatedAt:    turn.CreatedAt.UnixMilli(),
	}
	if _, err := s.turns.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("inserting turn: %w", err)
	}
	return turn.ID, nil
}

// RecentTurns returns up to limit most recent turns for the user, oldest-first.
func (s *MongoStore) RecentTurns(ctx context.Context, user string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = DefaultWindow
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "create_time", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.turns.Find(ctx, bson.M{"user": user}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}

	var docs []turnDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	turns := make([]domain.Turn, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		d := docs[i]
		turns = append(turns, domain.Turn{
			ID:           d.ID,
			User:         d.User,
			Sent:         d.Sent,
			Answer:       d.Answer,
			FunctionCall: d.FunctionCall,
			CreatedAt:    time.UnixMilli(d.CreatedAt),
		})
	}
	return turns, nil
}

// Clear removes all turns for the user.
func (s *MongoStore) Clear(ctx context.Context, user string) error {
	if _, err := s.turns.DeleteMany(ctx, bson.M{"user": user}); err != nil {
		return fmt.Errorf("clearing turns: %w", err)
	}
	return nil
}

// AppendSearchResult persists a search result and returns its id.
func (s *MongoStore) AppendSearchResult(ctx context.Context, result domain.SearchResult) (string, error) {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	doc := resultDocument{
		ID:         result.ID,
		User:       result.User,
		Query:      result.Query,
		ResultType: result.ResultType,
		Items:      result.Items,
		CreatedAt:  result.CreatedAt.UnixMilli(),
	}
	if _, err := s.results.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("inserting search result: %w", err)
	}
	return result.ID, nil
}

// GetSearchResult returns a persisted search result, or nil if unknown.
func (s *MongoStore) GetSearchResult(ctx context.Context, id string) (*domain.SearchResult, error) {
	var doc resultDocument
	err := s.results.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying search result: %w", err)
	}

	return &domain.SearchResult{
		ID:         doc.ID,
		User:       doc.User,
		Query:      doc.Query,
		ResultType: doc.ResultType,
		Items:      doc.Items,
		CreatedAt:  time.UnixMilli(doc.CreatedAt),
	}, nil
}
