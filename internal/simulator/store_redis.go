package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/sentinel"
)

const (
	// Redis key layout for session records.
	recordKeyPrefix = "presence:session:"
	onlineSetKey    = "presence:online"

	// defaultRetention is the fallback key TTL when none is configured.
	defaultRetention = 30 * time.Minute
)

// recordJSON is the JSON-serializable representation of a SessionRecord.
// Timestamps travel as Unix nanoseconds.
type recordJSON struct {
	UserID       string `json:"user_id"`
	TenantID     string `json:"tenant_id"`
	TenantName   string `json:"tenant_name"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	IsOnline     bool   `json:"is_online"`
	SessionID    string `json:"session_id"`
	ConnectedAt  int64  `json:"connected_at"`   // Unix nano
	LastActivity int64  `json:"last_activity"`  // Unix nano
	UserAgent    string `json:"user_agent,omitempty"`
	IPAddress    string `json:"ip_address,omitempty"`
}

func recordToJSON(r *SessionRecord) *recordJSON {
	return &recordJSON{
		UserID:       r.UserID,
		TenantID:     r.TenantID,
		TenantName:   r.TenantName,
		Email:        r.Email,
		FullName:     r.FullName,
		IsOnline:     r.IsOnline,
		SessionID:    r.SessionID,
		ConnectedAt:  r.ConnectedAt.UnixNano(),
		LastActivity: r.LastActivity.UnixNano(),
		UserAgent:    r.UserAgent,
		IPAddress:    r.IPAddress,
	}
}

func recordFromJSON(j *recordJSON) *SessionRecord {
	return &SessionRecord{
		UserID:       j.UserID,
		TenantID:     j.TenantID,
		TenantName:   j.TenantName,
		Email:        j.Email,
		FullName:     j.FullName,
		IsOnline:     j.IsOnline,
		SessionID:    j.SessionID,
		ConnectedAt:  time.Unix(0, j.ConnectedAt),
		LastActivity: time.Unix(0, j.LastActivity),
		UserAgent:    j.UserAgent,
		IPAddress:    j.IPAddress,
	}
}

// deserializeRecordCmd extracts a record from a Redis string command result.
// Returns nil if the command failed or the data is malformed.
func deserializeRecordCmd(cmd *redis.StringCmd) *SessionRecord {
	data, err := cmd.Result()
	if err != nil {
		return nil
	}
	var j recordJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil
	}
	return recordFromJSON(&j)
}

// RedisStore persists session records in Redis so multiple simulator
// processes can share one population. Record keys carry the retention TTL;
// the online index set is kept consistent on every write.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &RedisStore{client: client, retention: retention}
}

func recordKey(userID string) string {
	return recordKeyPrefix + userID
}

func (s *RedisStore) Put(ctx context.Context, rec *SessionRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("session record requires a user id: %w", sentinel.ErrInvalidInput)
	}

	data, err := json.Marshal(recordToJSON(rec))
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, recordKey(rec.UserID), data, s.retention)
	if rec.IsOnline {
		pipe.SAdd(ctx, onlineSetKey, rec.UserID)
	} else {
		pipe.SRem(ctx, onlineSetKey, rec.UserID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put session record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*SessionRecord, error) {
	data, err := s.client.Get(ctx, recordKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session record not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session record: %w", err)
	}

	var j recordJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	return recordFromJSON(&j), nil
}

// List scans all record keys and fetches them in pipelined batches.
func (s *RedisStore) List(ctx context.Context) ([]*SessionRecord, error) {
	var records []*SessionRecord
	var cursor uint64

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, recordKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan session records: %w", err)
		}

		if len(keys) > 0 {
			pipe := s.client.Pipeline()
			cmds := make([]*redis.StringCmd, len(keys))
			for i, key := range keys {
				cmds[i] = pipe.Get(ctx, key)
			}
			if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
				return nil, fmt.Errorf("get session records: %w", err)
			}
			for _, cmd := range cmds {
				if rec := deserializeRecordCmd(cmd); rec != nil {
					records = append(records, rec)
				}
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records, nil
}

func (s *RedisStore) SetOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	return s.update(ctx, userID, func(rec *SessionRecord) {
		rec.SetOnline(online, at)
	})
}

func (s *RedisStore) Touch(ctx context.Context, userID string, at time.Time) error {
	return s.update(ctx, userID, func(rec *SessionRecord) {
		rec.Touch(at)
	})
}

func (s *RedisStore) MarkIdleOffline(ctx context.Context, cutoff time.Time) ([]string, error) {
	onlineIDs, err := s.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list online ids: %w", err)
	}
	if len(onlineIDs) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(onlineIDs))
	for i, id := range onlineIDs {
		cmds[i] = pipe.Get(ctx, recordKey(id))
	}
	// Individual misses are expected when a record key has hit its TTL.
	_, _ = pipe.Exec(ctx)

	var marked []string
	var expired []string
	for i, cmd := range cmds {
		if _, err := cmd.Result(); errors.Is(err, redis.Nil) {
			expired = append(expired, onlineIDs[i])
			continue
		}
		rec := deserializeRecordCmd(cmd)
		if rec == nil || !rec.IsOnline || !rec.LastActivity.Before(cutoff) {
			continue
		}
		if err := s.update(ctx, rec.UserID, func(r *SessionRecord) { r.IsOnline = false }); err != nil {
			return marked, err
		}
		marked = append(marked, rec.UserID)
	}

	// Stale index entries are cleaned up best effort.
	if len(expired) > 0 {
		s.client.SRem(ctx, onlineSetKey, expired)
	}

	sort.Strings(marked)
	return marked, nil
}

func (s *RedisStore) DeleteOffline(ctx context.Context, cutoff time.Time) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, rec := range records {
		if !rec.IsOnline && rec.LastActivity.Before(cutoff) {
			stale = append(stale, rec.UserID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	for _, id := range stale {
		pipe.Del(ctx, recordKey(id))
		pipe.SRem(ctx, onlineSetKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete offline records: %w", err)
	}
	return len(stale), nil
}

// update atomically mutates a record under optimistic lock and keeps the
// online index in step with the record's flag.
func (s *RedisStore) update(ctx context.Context, userID string, mutate func(*SessionRecord)) error {
	key := recordKey(userID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session record not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get session record for update: %w", err)
		}

		var j recordJSON
		if err := json.Unmarshal([]byte(data), &j); err != nil {
			return fmt.Errorf("unmarshal session record: %w", err)
		}
		rec := recordFromJSON(&j)

		mutate(rec)

		newData, err := json.Marshal(recordToJSON(rec))
		if err != nil {
			return fmt.Errorf("marshal session record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, s.retention)
			if rec.IsOnline {
				pipe.SAdd(ctx, onlineSetKey, rec.UserID)
			} else {
				pipe.SRem(ctx, onlineSetKey, rec.UserID)
			}
			return nil
		})
		return err
	}, key)

	return err
}
