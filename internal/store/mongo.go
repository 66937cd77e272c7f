package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fogbreaker/engine/internal/domain"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "fogbreaker"

// Collection names.
const (
	colUsers    = "users"
	colProgress = "user_progress"
	colSessions = "sessions"
	colEvents   = "battle_events"
	colNotes    = "study_notes"
)

type userDoc struct {
	ID          string    `bson:"_id"`
	DisplayName string    `bson:"display_name"`
	AgentName   string    `bson:"agent_name"`
	Experience  int       `bson:"experience"`
	Level       int       `bson:"level"`
	CreatedAt   time.Time `bson:"created_at"`
}

// progressDoc keys best scores by the decimal level id; BSON documents only
// take string keys.
type progressDoc struct {
	UserID         string         `bson:"_id"`
	UnlockedLevels []int          `bson:"unlocked_levels"`
	BestScores     map[string]int `bson:"best_scores"`
	UpdatedAt      time.Time      `bson:"updated_at"`
}

type sessionDoc struct {
	ID           string               `bson:"_id"`
	UserID       string               `bson:"user_id"`
	LevelID      int                  `bson:"level_id"`
	Messages     []domain.Message     `bson:"messages"`
	CurrentRound int                  `bson:"current_round"`
	MaxRounds    int                  `bson:"max_rounds"`
	Status       string               `bson:"status"`
	Report       *domain.BattleReport `bson:"report,omitempty"`
	Version      int64                `bson:"state_version"`
	LastEventSeq int64                `bson:"last_event_seq"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

type eventDoc struct {
	ID          string `bson:"_id"`
	SessionID   string `bson:"session_id"`
	SeqNo       int64  `bson:"seq_no"`
	EventType   string `bson:"event_type"`
	PayloadJSON string `bson:"payload_json"`
	CreatedAt   int64  `bson:"created_at"`
}

type noteDoc struct {
	ID        string `bson:"_id"`
	UserID    string `bson:"user_id"`
	SessionID string `bson:"session_id"`
	Title     string `bson:"title"`
	Content   string `bson:"content"`
	CreatedAt int64  `bson:"created_at"`
}

// Mongo is a Repository backed by MongoDB. WithinTx uses a multi-document
// transaction, which needs a replica set or sharded cluster.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects, pings and ensures indexes.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(database)}
	if err := m.ensureIndexes(cctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colSessions: {{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		colEvents: {{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "seq_no", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		colNotes: {{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}}},
	}
	for col, models := range indexes {
		if _, err := m.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", col, err)
		}
	}
	return nil
}

// Database exposes the underlying database handle.
func (m *Mongo) Database() *mongo.Database { return m.db }

// WithinTx runs fn in a multi-document transaction. The transaction is not
// retried automatically; callers see the error and decide. A write conflict
// with another transaction is reported as ErrOptimisticLock.
func (m *Mongo) WithinTx(ctx context.Context, fn func(Tx) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(); err != nil {
			return fmt.Errorf("start transaction: %w", err)
		}
		if err := fn(&mongoTx{m: m, sc: sc}); err != nil {
			sess.AbortTransaction(context.Background())
			return asConflict("transaction write", err)
		}
		if err := sess.CommitTransaction(sc); err != nil {
			return asConflict("commit transaction", fmt.Errorf("commit transaction: %w", err))
		}
		return nil
	})
}

// Server error code for a write conflict between concurrent transactions.
const codeWriteConflict = 112

// asConflict turns a transaction write conflict into ErrOptimisticLock so
// the engine handles it like a stale state_version. Other errors pass through.
func asConflict(op string, err error) error {
	if errors.Is(err, domain.ErrOptimisticLock) {
		return err
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(codeWriteConflict)) {
		return domain.WrapEngineError(domain.ErrOptimisticLock.Code, op, err)
	}
	return err
}

func (m *Mongo) direct() *mongoTx { return &mongoTx{m: m} }

func (m *Mongo) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return m.direct().GetUser(ctx, userID)
}

func (m *Mongo) SaveUser(ctx context.Context, u *domain.UserProfile) error {
	return m.direct().SaveUser(ctx, u)
}

func (m *Mongo) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	return m.direct().GetProgress(ctx, userID)
}

func (m *Mongo) SaveProgress(ctx context.Context, p *domain.UserProgress) error {
	return m.direct().SaveProgress(ctx, p)
}

func (m *Mongo) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.direct().GetSession(ctx, sessionID)
}

func (m *Mongo) SaveSession(ctx context.Context, s *domain.Session) error {
	return m.direct().SaveSession(ctx, s)
}

func (m *Mongo) AppendEvent(ctx context.Context, e domain.BattleEvent) error {
	return m.direct().AppendEvent(ctx, e)
}

func (m *Mongo) AddNote(ctx context.Context, n domain.StudyNote) error {
	return m.direct().AddNote(ctx, n)
}

// ListSessionsByUser returns the user's sessions, newest first.
func (m *Mongo) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := m.db.Collection(colSessions).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, queryErr("list sessions", err)
	}
	defer cursor.Close(ctx)

	var docs []sessionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	out := make([]domain.Session, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.toDomain())
	}
	return out, nil
}

// ListEvents returns events with seq_no > sinceSeq in ascending order.
func (m *Mongo) ListEvents(ctx context.Context, sessionID string, sinceSeq int64) ([]domain.BattleEvent, error) {
	filter := bson.M{"session_id": sessionID, "seq_no": bson.M{"$gt": sinceSeq}}
	opts := options.Find().SetSort(bson.D{{Key: "seq_no", Value: 1}})
	cursor, err := m.db.Collection(colEvents).Find(ctx, filter, opts)
	if err != nil {
		return nil, queryErr("list events", err)
	}
	defer cursor.Close(ctx)

	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	out := make([]domain.BattleEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.BattleEvent{
			ID:          d.SeqNo,
			SessionID:   d.SessionID,
			SeqNo:       d.SeqNo,
			EventType:   d.EventType,
			PayloadJSON: d.PayloadJSON,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out, nil
}

// ListNotes returns a user's study notes, oldest first.
func (m *Mongo) ListNotes(ctx context.Context, userID string) ([]domain.StudyNote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := m.db.Collection(colNotes).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, queryErr("list notes", err)
	}
	defer cursor.Close(ctx)

	var docs []noteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	out := make([]domain.StudyNote, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.StudyNote(d))
	}
	return out, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Disconnect(cctx)
}

// mongoTx routes every call through the transaction's session context when
// one is present.
type mongoTx struct {
	m  *Mongo
	sc mongo.SessionContext
}

func (t *mongoTx) ctx(ctx context.Context) context.Context {
	if t.sc != nil {
		return t.sc
	}
	return ctx
}

func (t *mongoTx) col(name string) *mongo.Collection { return t.m.db.Collection(name) }

func (t *mongoTx) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var d userDoc
	err := t.col(colUsers).FindOne(t.ctx(ctx), bson.M{"_id": userID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, queryErr("get user", err)
	}
	u := domain.UserProfile(d)
	return &u, nil
}

func (t *mongoTx) SaveUser(ctx context.Context, u *domain.UserProfile) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := t.col(colUsers).ReplaceOne(t.ctx(ctx), bson.M{"_id": u.ID}, userDoc(*u), opts); err != nil {
		return writeErr("save user", err)
	}
	return nil
}

func (t *mongoTx) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	var d progressDoc
	err := t.col(colProgress).FindOne(t.ctx(ctx), bson.M{"_id": userID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, queryErr("get progress", err)
	}
	p := &domain.UserProgress{
		UserID:         d.UserID,
		UnlockedLevels: d.UnlockedLevels,
		BestScores:     make(map[int]int, len(d.BestScores)),
		UpdatedAt:      d.UpdatedAt,
	}
	for k, v := range d.BestScores {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode best score key %q: %w", k, err)
		}
		p.BestScores[id] = v
	}
	return p, nil
}

func (t *mongoTx) SaveProgress(ctx context.Context, p *domain.UserProgress) error {
	d := progressDoc{
		UserID:         p.UserID,
		UnlockedLevels: p.UnlockedLevels,
		BestScores:     make(map[string]int, len(p.BestScores)),
		UpdatedAt:      p.UpdatedAt,
	}
	if d.UnlockedLevels == nil {
		d.UnlockedLevels = []int{}
	}
	for k, v := range p.BestScores {
		d.BestScores[strconv.Itoa(k)] = v
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := t.col(colProgress).ReplaceOne(t.ctx(ctx), bson.M{"_id": p.UserID}, d, opts); err != nil {
		return writeErr("save progress", err)
	}
	return nil
}

func (t *mongoTx) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var d sessionDoc
	err := t.col(colSessions).FindOne(t.ctx(ctx), bson.M{"_id": sessionID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, queryErr("get session", err)
	}
	return d.toDomain(), nil
}

func (t *mongoTx) SaveSession(ctx context.Context, s *domain.Session) error {
	d := newSessionDoc(s)
	if s.Version == 0 {
		d.Version = 1
		if _, err := t.col(colSessions).InsertOne(t.ctx(ctx), d); err != nil {
			return writeErr("create session", err)
		}
		s.Version = 1
		return nil
	}

	d.Version = s.Version + 1
	res, err := t.col(colSessions).ReplaceOne(t.ctx(ctx),
		bson.M{"_id": s.ID, "state_version": s.Version}, d)
	if err != nil {
		return writeErr("update session state", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrOptimisticLock
	}
	s.Version++
	return nil
}

func (t *mongoTx) AppendEvent(ctx context.Context, e domain.BattleEvent) error {
	d := eventDoc{
		ID:          e.SessionID + ":" + strconv.FormatInt(e.SeqNo, 10),
		SessionID:   e.SessionID,
		SeqNo:       e.SeqNo,
		EventType:   e.EventType,
		PayloadJSON: e.PayloadJSON,
		CreatedAt:   e.CreatedAt,
	}
	if _, err := t.col(colEvents).InsertOne(t.ctx(ctx), d); err != nil {
		return writeErr("append event", err)
	}
	return nil
}

func (t *mongoTx) AddNote(ctx context.Context, n domain.StudyNote) error {
	if _, err := t.col(colNotes).InsertOne(t.ctx(ctx), noteDoc(n)); err != nil {
		return writeErr("add note", err)
	}
	return nil
}

func newSessionDoc(s *domain.Session) sessionDoc {
	msgs := s.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return sessionDoc{
		ID:           s.ID,
		UserID:       s.UserID,
		LevelID:      s.LevelID,
		Messages:     msgs,
		CurrentRound: s.CurrentRound,
		MaxRounds:    s.MaxRounds,
		Status:       string(s.Status),
		Report:       s.Report,
		Version:      s.Version,
		LastEventSeq: s.LastEventSeq,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (d sessionDoc) toDomain() *domain.Session {
	return &domain.Session{
		ID:           d.ID,
		UserID:       d.UserID,
		LevelID:      d.LevelID,
		Messages:     d.Messages,
		CurrentRound: d.CurrentRound,
		MaxRounds:    d.MaxRounds,
		Status:       domain.SessionStatus(d.Status),
		Report:       d.Report,
		Version:      d.Version,
		LastEventSeq: d.LastEventSeq,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
