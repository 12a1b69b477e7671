// Package redisstore implements the schedule store adapter on Redis.
//
// Documents are JSON strings under per-user keys; every save publishes on a
// per-user channel so watchers reload the latest version.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/store"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password,omitempty"`
	DB          int           `yaml:"db"`
	Prefix      string        `yaml:"prefix"`
	PoolSize    int           `yaml:"pool_size"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// HistoryLimit caps the audit and scan lists per user.
	HistoryLimit int64 `yaml:"history_limit"`
}

// DefaultConfig returns a local, unauthenticated configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Prefix:       "classmate",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		HistoryLimit: 1000,
	}
}

// Store persists timetables and user state in Redis.
type Store struct {
	client *redis.Client
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	closers map[int]func()
	next    int
}

// New connects to Redis and checks the connection.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	d := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}
	if cfg.Prefix == "" {
		cfg.Prefix = d.Prefix
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = d.PoolSize
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = d.DialTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = d.HistoryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Store{
		client:  client,
		config:  cfg,
		logger:  logger.With("component", "redisstore"),
		closers: make(map[int]func()),
	}, nil
}

// Close cancels all watches and closes the client.
func (s *Store) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = make(map[int]func())
	s.mu.Unlock()
	for _, fn := range closers {
		fn()
	}
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// --- Keys ---

// DayKey is the key of one day of a user's timetable.
func DayKey(prefix, userID string, day models.Weekday) string {
	return fmt.Sprintf("%s:%s:day:%s", prefix, userID, day)
}

// StateKey is the key of a user's state document.
func StateKey(prefix, userID string) string {
	return fmt.Sprintf("%s:%s:state", prefix, userID)
}

// AuditKey is the list of a user's attendance audit records, newest first.
func AuditKey(prefix, userID string) string {
	return fmt.Sprintf("%s:%s:audit", prefix, userID)
}

// ScansKey is the list of a user's archived scans, newest first.
func ScansKey(prefix, userID string) string {
	return fmt.Sprintf("%s:%s:scans", prefix, userID)
}

// TimetableChannel is published to after a day is saved.
func TimetableChannel(prefix, userID string) string {
	return fmt.Sprintf("%s:%s:changed:timetable", prefix, userID)
}

// StateChannel is published to after the state document is saved.
func StateChannel(prefix, userID string) string {
	return fmt.Sprintf("%s:%s:changed:state", prefix, userID)
}

// --- Timetable ---

// SaveDay replaces one day of a user's timetable.
func (s *Store) SaveDay(ctx context.Context, userID string, day models.Weekday, entries []models.ScheduleEntry) error {
	if err := store.CheckSave(userID, day); err != nil {
		return err
	}
	if entries == nil {
		entries = []models.ScheduleEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}

	p := s.config.Prefix
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, DayKey(p, userID, day), data, 0)
		pipe.Publish(ctx, TimetableChannel(p, userID), string(day))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save day: %w", err)
	}
	return nil
}

// LoadWeek returns the user's timetable with all seven days present.
func (s *Store) LoadWeek(ctx context.Context, userID string) (models.WeeklySchedule, error) {
	keys := make([]string, len(models.Weekdays))
	for i, day := range models.Weekdays {
		keys[i] = DayKey(s.config.Prefix, userID, day)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load week: %w", err)
	}

	week := models.NewWeek()
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entries []models.ScheduleEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			s.logger.Warn("skipping undecodable day", "user", userID, "day", models.Weekdays[i], "error", err)
			continue
		}
		week[models.Weekdays[i]] = entries
	}
	return week.Sanitize(), nil
}

// --- User State ---

// SaveUserState replaces the user's state document.
func (s *Store) SaveUserState(ctx context.Context, userID string, state models.UserState) error {
	if userID == "" {
		return store.ErrEmptyUser
	}
	if state.Tasks == nil {
		state.Tasks = []models.Task{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode user state: %w", err)
	}

	p := s.config.Prefix
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, StateKey(p, userID), data, 0)
		pipe.Publish(ctx, StateChannel(p, userID), "state")
		return nil
	})
	if err != nil {
		return fmt.Errorf("save user state: %w", err)
	}
	return nil
}

// LoadUserState returns the user's state, empty when none was saved.
func (s *Store) LoadUserState(ctx context.Context, userID string) (models.UserState, error) {
	data, err := s.client.Get(ctx, StateKey(s.config.Prefix, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.UserState{Tasks: []models.Task{}}, nil
	}
	if err != nil {
		return models.UserState{}, fmt.Errorf("load user state: %w", err)
	}

	var state models.UserState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.UserState{}, fmt.Errorf("decode user state: %w", err)
	}
	if state.Tasks == nil {
		state.Tasks = []models.Task{}
	}
	return state, nil
}

// --- Watches ---

// WatchTimetable follows the user's timetable.
func (s *Store) WatchTimetable(ctx context.Context, userID string, fn func(models.WeeklySchedule)) (func(), error) {
	if userID == "" {
		return nil, store.ErrEmptyUser
	}
	return s.watch(ctx, TimetableChannel(s.config.Prefix, userID), func(ctx context.Context) error {
		week, err := s.LoadWeek(ctx, userID)
		if err != nil {
			return err
		}
		fn(week)
		return nil
	})
}

// WatchUserState follows the user's state document.
func (s *Store) WatchUserState(ctx context.Context, userID string, fn func(models.UserState)) (func(), error) {
	if userID == "" {
		return nil, store.ErrEmptyUser
	}
	return s.watch(ctx, StateChannel(s.config.Prefix, userID), func(ctx context.Context) error {
		state, err := s.LoadUserState(ctx, userID)
		if err != nil {
			return err
		}
		fn(state)
		return nil
	})
}

// watch subscribes before the first delivery so no change between the
// initial load and the subscription is missed.
func (s *Store) watch(ctx context.Context, channel string, deliver func(context.Context) error) (func(), error) {
	pubsub := s.client.Subscribe(context.Background(), channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	f := store.Follow(deliver, s.logger.With("channel", channel))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range pubsub.Channel() {
			f.Notify()
		}
	}()

	s.mu.Lock()
	id := s.next
	s.next++
	var once sync.Once
	stop := func() {
		once.Do(func() {
			pubsub.Close()
			<-done
			f.Stop()
		})
	}
	s.closers[id] = stop
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.closers, id)
		s.mu.Unlock()
		stop()
	}, nil
}

// --- Audit ---

// AppendAudit pushes an attendance audit record.
func (s *Store) AppendAudit(ctx context.Context, rec models.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	key := AuditKey(s.config.Prefix, rec.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, s.config.HistoryLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit records of a user first.
func (s *Store) ListAudit(ctx context.Context, userID string, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	vals, err := s.client.LRange(ctx, AuditKey(s.config.Prefix, userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	recs := make([]models.AuditRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.AuditRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// --- Scans ---

// SaveScan archives a committed scan.
func (s *Store) SaveScan(ctx context.Context, rec models.ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode scan: %w", err)
	}
	key := ScansKey(s.config.Prefix, rec.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, s.config.HistoryLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save scan: %w", err)
	}
	return nil
}

// ListScans returns the newest scans of a user first.
func (s *Store) ListScans(ctx context.Context, userID string, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	vals, err := s.client.LRange(ctx, ScansKey(s.config.Prefix, userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	recs := make([]models.ScanRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.ScanRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

var (
	_ store.Adapter     = (*Store)(nil)
	_ store.ScanArchive = (*Store)(nil)
	_ store.AuditLog    = (*Store)(nil)
)
