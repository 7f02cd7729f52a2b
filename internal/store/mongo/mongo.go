// Package mongo is the MongoDB-backed meeting store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aousabdo/meetingsage/internal/domain"
	"github.com/aousabdo/meetingsage/internal/ports"
)

const (
	meetingsCollection = "meetings"
	usersCollection    = "users"

	connectTimeout = 10 * time.Second
)

// Store persists meetings and users in MongoDB.
type Store struct {
	client   *mongo.Client
	meetings *mongo.Collection
	users    *mongo.Collection
	log      zerolog.Logger
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string, log zerolog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(database)
	log = log.With().Str("component", "mongostore").Logger()
	log.Info().Str("database", database).Msg("connected to mongodb")

	return &Store{
		client:   client,
		meetings: db.Collection(meetingsCollection),
		users:    db.Collection(usersCollection),
		log:      log,
	}, nil
}

type actionItemDoc struct {
	Description string     `bson:"description"`
	AssignedTo  string     `bson:"assigned_to,omitempty"`
	DueDate     *time.Time `bson:"due_date,omitempty"`
	Status      string     `bson:"status"`
}

type meetingDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Title        string             `bson:"title"`
	UserID       string             `bson:"user_id"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
	AudioFile    string             `bson:"audio_file,omitempty"`
	Transcript   string             `bson:"transcript,omitempty"`
	Summary      string             `bson:"summary,omitempty"`
	ActionItems  []actionItemDoc    `bson:"action_items"`
	Participants []string           `bson:"participants"`
	Duration     float64            `bson:"duration,omitempty"`
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
	LastLogin    *time.Time         `bson:"last_login,omitempty"`
}

func itemsToDocs(items []domain.ActionItem) []actionItemDoc {
	docs := make([]actionItemDoc, 0, len(items))
	for _, item := range items {
		docs = append(docs, actionItemDoc{
			Description: item.Description,
			AssignedTo:  item.AssignedTo,
			DueDate:     item.DueDate,
			Status:      string(domain.CoerceActionItemStatus(string(item.Status))),
		})
	}
	return docs
}

func docsToItems(docs []actionItemDoc) []domain.ActionItem {
	items := make([]domain.ActionItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.ActionItem{
			Description: doc.Description,
			AssignedTo:  doc.AssignedTo,
			DueDate:     doc.DueDate,
			Status:      domain.CoerceActionItemStatus(doc.Status),
		})
	}
	return items
}

func (d meetingDoc) toDomain() domain.Meeting {
	return domain.Meeting{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		UserID:       d.UserID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		AudioFile:    d.AudioFile,
		Transcript:   d.Transcript,
		Summary:      d.Summary,
		ActionItems:  docsToItems(d.ActionItems),
		Participants: d.Participants,
		Duration:     d.Duration,
	}
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		LastLogin:    d.LastLogin,
	}
}

// parseID maps invalid hex identifiers to ErrNotFound: a malformed id can
// never match a stored record.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ports.ErrNotFound
	}
	return oid, nil
}

func (s *Store) CreateMeeting(ctx context.Context, m domain.Meeting) (string, error) {
	now := time.Now().UTC()
	doc := meetingDoc{
		Title:        m.Title,
		UserID:       m.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
		AudioFile:    m.AudioFile,
		Transcript:   m.Transcript,
		Summary:      m.Summary,
		ActionItems:  itemsToDocs(m.ActionItems),
		Participants: m.Participants,
		Duration:     m.Duration,
	}
	if doc.Participants == nil {
		doc.Participants = []string{}
	}

	res, err := s.meetings.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("inserting meeting: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *Store) Meeting(ctx context.Context, id string) (domain.Meeting, error) {
	oid, err := parseID(id)
	if err != nil {
		return domain.Meeting{}, err
	}

	var doc meetingDoc
	err = s.meetings.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Meeting{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("finding meeting: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) UpdateMeeting(ctx context.Context, id string, upd domain.MeetingUpdate) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Transcript != nil {
		set["transcript"] = *upd.Transcript
	}
	if upd.Summary != nil {
		set["summary"] = *upd.Summary
	}
	if upd.ActionItems != nil {
		set["action_items"] = itemsToDocs(*upd.ActionItems)
	}
	if upd.Participants != nil {
		set["participants"] = *upd.Participants
	}
	if upd.Duration != nil {
		set["duration"] = *upd.Duration
	}

	res, err := s.meetings.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("updating meeting: %w", err)
	}
	if res.MatchedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := s.meetings.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting meeting: %w", err)
	}
	if res.DeletedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *Store) MeetingsByUser(ctx context.Context, userID string) ([]domain.Meeting, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.meetings.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	defer cur.Close(ctx)

	var result []domain.Meeting
	for cur.Next(ctx) {
		var doc meetingDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding meeting: %w", err)
		}
		result = append(result, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterating meetings: %w", err)
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (string, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{"username": u.Username})
	if err != nil {
		return "", fmt.Errorf("checking username: %w", err)
	}
	if count > 0 {
		return "", fmt.Errorf("username %q already taken", u.Username)
	}

	now := time.Now().UTC()
	doc := userDoc{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("inserting user: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("finding user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) TouchLogin(ctx context.Context, userID string) error {
	oid, err := parseID(userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"last_login": now, "updated_at": now},
	})
	if err != nil {
		return fmt.Errorf("updating login time: %w", err)
	}
	if res.MatchedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
