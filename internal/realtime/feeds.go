package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errUnroutedTable = errors.New("no feed serves table")

// MongoFeed watches MongoDB collections with change streams.
type MongoFeed struct {
	DB *mongo.Database
}

type changeDocument struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
	DocumentKey   bson.M `bson:"documentKey"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
}

func (f *MongoFeed) Open(ctx context.Context, tables []string) (Channel, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "ns.coll", Value: bson.D{{Key: "$in", Value: tables}}},
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
		}}},
	}
	cs, err := f.DB.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("mongo watch: %w", err)
	}

	s, sctx := newStream(ctx)
	go func() {
		defer cs.Close(context.Background())
		for cs.Next(sctx) {
			var doc changeDocument
			if err := cs.Decode(&doc); err != nil {
				log.WithError(err).Warn("undecodable change stream document")
				continue
			}
			raw, ok := doc.rawChange()
			if !ok {
				continue
			}
			if !s.send(sctx, raw) {
				break
			}
		}
		s.finish(sctx, cs.Err())
	}()
	return s, nil
}

func (d changeDocument) rawChange() (entity.RawChange, bool) {
	raw := entity.RawChange{Table: d.NS.Coll}
	switch d.OperationType {
	case "insert":
		raw.EventType = entity.Insert
	case "update", "replace":
		raw.EventType = entity.Update
	case "delete":
		raw.EventType = entity.Delete
		raw.Old = map[string]any(d.DocumentKey)
		return raw, d.DocumentKey != nil
	default:
		return raw, false
	}
	// an update whose document was deleted before the lookup has no body
	if d.FullDocument == nil {
		return raw, false
	}
	raw.New = map[string]any(d.FullDocument)
	return raw, true
}

// PostgresFeed listens on the NOTIFY channel fed by the change trigger.
type PostgresFeed struct {
	Pool    *pgxpool.Pool
	Channel string
}

func (f *PostgresFeed) Open(ctx context.Context, tables []string) (Channel, error) {
	pooled, err := f.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	// LISTEN state must never go back to the pool
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.Channel}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", f.Channel, err)
	}

	want := wanted(tables)
	s, sctx := newStream(ctx)
	go func() {
		defer conn.Close(context.Background())
		for {
			n, err := conn.WaitForNotification(sctx)
			if err != nil {
				s.finish(sctx, err)
				return
			}
			var raw entity.RawChange
			if err := json.Unmarshal([]byte(n.Payload), &raw); err != nil {
				log.WithError(err).Warn("undecodable notify payload")
				continue
			}
			if !want[raw.Table] {
				continue
			}
			if !s.send(sctx, raw) {
				s.finish(sctx, nil)
				return
			}
		}
	}()
	return s, nil
}

// RedisChannelPrefix prefixes the pub/sub channel of every table.
const RedisChannelPrefix = "changes:"

// RedisFeed subscribes to changes:<table> pub/sub channels.
type RedisFeed struct {
	Client *redis.Client
}

func (f *RedisFeed) Open(ctx context.Context, tables []string) (Channel, error) {
	channels := make([]string, len(tables))
	for i, t := range tables {
		channels[i] = RedisChannelPrefix + t
	}
	ps := f.Client.Subscribe(ctx, channels...)
	// the first reply confirms the subscription
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	s, sctx := newStream(ctx)
	go func() {
		defer ps.Close()
		for {
			msg, err := ps.ReceiveMessage(sctx)
			if err != nil {
				s.finish(sctx, err)
				return
			}
			var raw entity.RawChange
			if err := json.Unmarshal([]byte(msg.Payload), &raw); err != nil {
				log.WithError(err).Warn("undecodable pub/sub payload")
				continue
			}
			if raw.Table == "" {
				raw.Table = strings.TrimPrefix(msg.Channel, RedisChannelPrefix)
			}
			if !s.send(sctx, raw) {
				s.finish(sctx, nil)
				return
			}
		}
	}()
	return s, nil
}

// MultiFeed routes each table to the feed that serves it and merges the
// resulting channels into one. The merged channel fails as soon as any part does.
type MultiFeed struct {
	Routes map[string]Feed
}

// Tables lists the routed tables, sorted.
func (f *MultiFeed) Tables() []string {
	out := make([]string, 0, len(f.Routes))
	for t := range f.Routes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (f *MultiFeed) Open(ctx context.Context, tables []string) (Channel, error) {
	groups := make(map[Feed][]string)
	var order []Feed
	for _, t := range tables {
		feed, ok := f.Routes[t]
		if !ok {
			return nil, fmt.Errorf("%w %q", errUnroutedTable, t)
		}
		if _, seen := groups[feed]; !seen {
			order = append(order, feed)
		}
		groups[feed] = append(groups[feed], t)
	}

	s, sctx := newStream(ctx)
	parts := make([]Channel, 0, len(order))
	for _, feed := range order {
		ch, err := feed.Open(sctx, groups[feed])
		if err != nil {
			for _, p := range parts {
				p.Close()
			}
			s.cancel()
			return nil, err
		}
		parts = append(parts, ch)
	}

	var wg sync.WaitGroup
	failed := make(chan error, len(parts))
	for _, part := range parts {
		wg.Add(1)
		go func(part Channel) {
			defer wg.Done()
			for raw := range part.Events() {
				if !s.send(sctx, raw) {
					break
				}
			}
			err := part.Err()
			if err == nil && sctx.Err() == nil {
				err = errChannelClosed
			}
			failed <- err
		}(part)
	}

	go func() {
		var err error
		select {
		case err = <-failed:
		case <-sctx.Done():
		}
		if sctx.Err() != nil {
			err = nil
		}
		// forwarders must be gone before Events is closed
		s.cancel()
		for _, p := range parts {
			p.Close()
		}
		wg.Wait()
		s.closeWith(err)
	}()
	return s, nil
}
