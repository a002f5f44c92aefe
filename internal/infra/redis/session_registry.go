package redis

import (
	"context"
	"sync"
	"time"

	"assessment-session-service/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SessionRegistry is a Redis-aware implementation of app.SessionRegistry.
// Notes:
//   - Sessions themselves stay in a local map; their countdown goroutine lives in this process.
//   - Redis holds a liveness marker per live attempt (participant id as value) so operators
//     and other instances can see which attempts are running and where.
type SessionRegistry struct {
	client   *redis.Client
	ttl      time.Duration
	instance string
	log      logrus.FieldLogger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

var _ app.LivenessChecker = (*SessionRegistry)(nil)

func NewSessionRegistry(client *redis.Client, ttl time.Duration, instance string) *SessionRegistry {
	return &SessionRegistry{
		client:   client,
		ttl:      ttl,
		instance: instance,
		log:      logrus.WithField("component", "redis-session-registry"),
		sessions: make(map[string]*app.Session),
	}
}

func (r *SessionRegistry) Put(session *app.Session) {
	r.mu.Lock()
	r.sessions[session.AttemptID()] = session
	r.mu.Unlock()

	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key(session.AttemptID()), map[string]interface{}{
		"participant": session.ParticipantID(),
		"assessment":  session.AssessmentID(),
		"instance":    r.instance,
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key(session.AttemptID()), r.ttl)
	}
	// best-effort liveness marker
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.WithError(err).WithField("attempt", session.AttemptID()).Warn("liveness marker not written")
	}
}

func (r *SessionRegistry) Get(attemptID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[attemptID]
	return session, ok
}

func (r *SessionRegistry) Delete(attemptID string) {
	r.mu.Lock()
	delete(r.sessions, attemptID)
	r.mu.Unlock()
	if err := r.client.Del(context.Background(), r.key(attemptID)).Err(); err != nil {
		r.log.WithError(err).WithField("attempt", attemptID).Warn("liveness marker not removed")
	}
}

// Live reports whether any instance marked the attempt as running.
func (r *SessionRegistry) Live(ctx context.Context, attemptID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(attemptID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SessionRegistry) key(attemptID string) string {
	return "attempt:session:" + attemptID
}
