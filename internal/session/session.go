package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/livedb"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/pipeline"
	"github.com/sqlchat/sqlchat/internal/schema"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrNotConnected = errors.New("no database connection established")
	ErrEmptyMessage = errors.New("message is empty")
	ErrWrongVariant = errors.New("operation not supported for this session variant")
	ErrLimitReached = errors.New("session limit reached")
)

// LiveDatabase is the subset of *livedb.Database a session uses.
type LiveDatabase interface {
	DescribeSchema(ctx context.Context) (string, error)
	Execute(ctx context.Context, sqlText string) (livedb.Result, error)
	Dialect() livedb.Dialect
	Target() string
	Close() error
}

// Connector opens a live database from connection form values.
type Connector func(ctx context.Context, params livedb.ConnectionParams) (LiveDatabase, error)

// LiveConnector returns a Connector backed by livedb.Open.
func LiveConnector(opts livedb.Options) Connector {
	return func(ctx context.Context, params livedb.ConnectionParams) (LiveDatabase, error) {
		db, err := livedb.Open(ctx, params, opts)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

type Reply struct {
	SQL      string
	Response string
	Executed bool
	Text     string
}

type ConnectionInfo struct {
	Connected bool
	Dialect   livedb.Dialect
	Target    string
}

// Session is one user's conversation plus, for the live variant, the database
// connection it queries. Submit, Connect and Disconnect are serialized by mu;
// connMu only guards the connection handle so readers never wait on a
// pipeline run.
type Session struct {
	id        string
	owner     string
	variant   conversation.Variant
	createdAt time.Time
	now       func() time.Time

	mu        sync.Mutex
	state     *conversation.State
	pipeline  *pipeline.Pipeline
	connector Connector
	logger    *slog.Logger

	connMu     sync.RWMutex
	db         LiveDatabase
	closed     bool
	lastActive time.Time
}

func New(id, owner string, variant conversation.Variant, p *pipeline.Pipeline, connector Connector, logger *slog.Logger) *Session {
	if logger == nil {
		logger = observability.NopLogger()
	}
	now := time.Now().UTC()
	return &Session{
		id:         id,
		owner:      owner,
		variant:    variant,
		createdAt:  now,
		now:        time.Now,
		state:      conversation.NewState(variant),
		pipeline:   p,
		connector:  connector,
		logger:     logger,
		lastActive: now,
	}
}

func (s *Session) ID() string                    { return s.id }
func (s *Session) Owner() string                 { return s.owner }
func (s *Session) Variant() conversation.Variant { return s.variant }
func (s *Session) CreatedAt() time.Time          { return s.createdAt }

func (s *Session) Transcript() []conversation.Turn {
	return s.state.Turns()
}

// LastActive is the time of the most recent request that touched the session.
func (s *Session) LastActive() time.Time {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.connMu.Lock()
	s.lastActive = s.now().UTC()
	s.connMu.Unlock()
}

func (s *Session) liveDB() LiveDatabase {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.db
}

// Submit runs one question through the pipeline. The human and assistant
// turns are appended together and only when every stage succeeds.
func (s *Session) Submit(ctx context.Context, message string) (reply Reply, err error) {
	if strings.TrimSpace(message) == "" {
		return Reply{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	defer s.touch()
	defer func() { observability.ObserveSubmission(string(s.variant), err) }()

	ctx = observability.ContextWithSessionID(ctx, s.id)
	input := pipeline.Input{Question: message}
	switch s.variant {
	case conversation.VariantLive:
		db := s.liveDB()
		if db == nil {
			return Reply{}, ErrNotConnected
		}
		input.Schema = db
		input.Executor = pipeline.ExecutorFunc(func(ctx context.Context, sqlText string) (fmt.Stringer, error) {
			return db.Execute(ctx, sqlText)
		})
	default:
		input.Schema = schema.Mock{}
	}

	human := conversation.HumanTurn(message)
	input.History = s.state.With(human)

	out, err := s.pipeline.Run(ctx, input)
	if err != nil {
		return Reply{}, err
	}
	if err := s.state.Append(human, conversation.AssistantTurn(out.Reply)); err != nil {
		return Reply{}, err
	}
	return Reply{SQL: out.SQL, Response: out.Response, Executed: out.Executed, Text: out.Reply}, nil
}

// Connect opens a new live connection and swaps it in. A failed attempt keeps
// the previous connection. The conversation is never touched.
func (s *Session) Connect(ctx context.Context, params livedb.ConnectionParams) (info ConnectionInfo, err error) {
	if s.variant != conversation.VariantLive {
		return ConnectionInfo{}, ErrWrongVariant
	}
	if s.connector == nil {
		return ConnectionInfo{}, fmt.Errorf("no connector configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	db, err := s.connector(ctx, params)
	observability.ObserveLiveConnect(string(params.Dialect), err)
	if err != nil {
		s.logger.WarnContext(ctx, "live connect failed",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()),
		)
		return ConnectionInfo{}, err
	}

	s.connMu.Lock()
	if s.closed {
		s.connMu.Unlock()
		_ = db.Close()
		return ConnectionInfo{}, ErrNotFound
	}
	previous := s.db
	s.db = db
	info := connectionInfo(db)
	s.connMu.Unlock()

	if previous != nil {
		if closeErr := previous.Close(); closeErr != nil {
			s.logger.WarnContext(ctx, "close previous connection", slog.String("session_id", s.id), slog.String("error", closeErr.Error()))
		}
	}
	s.logger.InfoContext(ctx, "live database connected",
		slog.String("session_id", s.id),
		slog.String("target", db.Target()),
	)
	return info, nil
}

func (s *Session) Disconnect() error {
	if s.variant != conversation.VariantLive {
		return ErrWrongVariant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release(false)
}

func (s *Session) Connection() ConnectionInfo {
	return connectionInfo(s.liveDB())
}

func connectionInfo(db LiveDatabase) ConnectionInfo {
	if db == nil {
		return ConnectionInfo{}
	}
	return ConnectionInfo{Connected: true, Dialect: db.Dialect(), Target: db.Target()}
}

// Schema returns the schema text the next submission would use.
func (s *Session) Schema(ctx context.Context) (string, error) {
	if s.variant != conversation.VariantLive {
		return schema.Mock{}.DescribeSchema(ctx)
	}
	db := s.liveDB()
	if db == nil {
		return "", ErrNotConnected
	}
	return db.DescribeSchema(ctx)
}

// Close releases the live connection, if any, without waiting for an
// in-flight submission. A closed session refuses later connects.
func (s *Session) Close() error {
	return s.release(true)
}

func (s *Session) release(final bool) error {
	s.connMu.Lock()
	db := s.db
	s.db = nil
	if final {
		s.closed = true
	}
	s.connMu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}
