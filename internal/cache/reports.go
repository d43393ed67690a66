// Package cache keeps built attendance reports in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"madrasa/internal/attendance"
	"madrasa/internal/logger"
)

const (
	prefix    = "madrasa:report:"
	genPrefix = "madrasa:reportgen:"
	genAll    = genPrefix + "*all"
)

var errStale = errors.New("cache: report built before an invalidation")

// Reports caches reports per (class, date, teacher filter). A nil *Reports
// caches nothing.
//
// Every invalidation bumps a generation counter before deleting keys. Callers
// take a Generation before reading the store and hand it back to Set, which
// refuses to write once the counter has moved, so a report built from data
// older than the last invalidation is never cached.
type Reports struct {
	client *redis.Client
	ttl    time.Duration
}

// Generation identifies the invalidation state a report was built against.
type Generation struct {
	all   int64
	class int64
}

// NewReports returns a cache whose entries live for ttl.
func NewReports(client *redis.Client, ttl time.Duration) *Reports {
	return &Reports{client: client, ttl: ttl}
}

// Key returns the cache key of req.
func Key(req attendance.ReportRequest) string {
	teacher := req.TeacherID
	if teacher == "" {
		teacher = "*all"
	}
	return prefix + req.ClassID + ":" + req.Date.String() + ":" + teacher
}

func genKey(classID string) string { return genPrefix + classID }

// Get returns a cached report. Redis errors count as a miss.
func (c *Reports) Get(ctx context.Context, req attendance.ReportRequest) (*attendance.Report, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, Key(req)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn().Err(err).Msg("report cache read failed")
		}
		return nil, false
	}
	var rep attendance.Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, false
	}
	return &rep, true
}

// Generation reads the counters that guard classID's reports.
func (c *Reports) Generation(ctx context.Context, classID string) Generation {
	if c == nil {
		return Generation{}
	}
	g, err := readGeneration(ctx, c.client, classID)
	if err != nil {
		logger.Warn().Err(err).Msg("report cache generation read failed")
	}
	return g
}

func readGeneration(ctx context.Context, r redis.Cmdable, classID string) (Generation, error) {
	vals, err := r.MGet(ctx, genAll, genKey(classID)).Result()
	if err != nil {
		return Generation{}, err
	}
	var g Generation
	g.all = counter(vals[0])
	g.class = counter(vals[1])
	return g, nil
}

func counter(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// Set stores rep unless an invalidation happened since gen was taken.
func (c *Reports) Set(ctx context.Context, req attendance.ReportRequest, rep *attendance.Report, gen Generation) {
	if c == nil || rep == nil {
		return
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		return
	}
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx, req.ClassID)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, Key(req), raw, c.ttl)
			return nil
		})
		return err
	}, genAll, genKey(req.ClassID))

	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		logger.Debug().Str("class_id", req.ClassID).Str("date", req.Date.String()).Msg("stale report not cached")
	default:
		logger.Warn().Err(err).Msg("report cache write failed")
	}
}

// Invalidate drops every cached report of a class-day, whatever the teacher filter.
func (c *Reports) Invalidate(ctx context.Context, classID string, date attendance.Date) error {
	if c == nil {
		return nil
	}
	if err := c.bump(ctx, genKey(classID)); err != nil {
		return err
	}
	return c.drop(ctx, prefix+classID+":"+date.String()+":*")
}

// InvalidateClass drops the reports of every date of classID. Roster changes
// call it.
func (c *Reports) InvalidateClass(ctx context.Context, classID string) error {
	if c == nil || classID == "" {
		return nil
	}
	if err := c.bump(ctx, genKey(classID)); err != nil {
		return err
	}
	return c.drop(ctx, prefix+classID+":*")
}

// InvalidateAll drops every cached report. Teacher renames and deletes call
// it since teacher names appear in every report.
func (c *Reports) InvalidateAll(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.bump(ctx, genAll); err != nil {
		return err
	}
	return c.drop(ctx, prefix+"*")
}

func (c *Reports) bump(ctx context.Context, key string) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, key)
		// outlives every entry it guards
		p.Expire(ctx, key, c.ttl+time.Hour)
		return nil
	})
	return err
}

func (c *Reports) drop(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
