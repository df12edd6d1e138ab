// Package mongosink archives latency-monitor reports and outage
// transitions to MongoDB, wiring the example pack's
// go.mongodb.org/mongo-driver dependency.
package mongosink

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LatencyDoc is one persisted latency report (§4.J).
type LatencyDoc struct {
	Stream    string    `bson:"stream"`
	Time      time.Time `bson:"time"`
	Mean      float64   `bson:"mean"`
	Min       float64   `bson:"min"`
	Max       float64   `bson:"max"`
	RMS       float64   `bson:"rms"`
	Gaps      int       `bson:"gaps"`
}

// TransitionDoc is one outage-state-machine transition (§4.J).
type TransitionDoc struct {
	Stream     string    `bson:"stream"`
	Time       time.Time `bson:"time"`
	Transition string    `bson:"transition"`
}

// Sink is a thin wrapper over a mongo.Client bound to one database.
type Sink struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri and selects database.
func New(ctx context.Context, uri, database string) (*Sink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return &Sink{client: client, db: client.Database(database)}, nil
}

// WriteLatency persists one latency report.
func (s *Sink) WriteLatency(ctx context.Context, doc LatencyDoc) error {
	_, err := s.db.Collection("latency_reports").InsertOne(ctx, doc)
	return err
}

// WriteTransition persists one outage-state-machine transition.
func (s *Sink) WriteTransition(ctx context.Context, doc TransitionDoc) error {
	_, err := s.db.Collection("outage_transitions").InsertOne(ctx, doc)
	return err
}

// RecentOutages returns the most recent outage-related transitions for
// stream, newest first.
func (s *Sink) RecentOutages(ctx context.Context, stream string, limit int64) ([]TransitionDoc, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}}).SetLimit(limit)
	cur, err := s.db.Collection("outage_transitions").Find(ctx, bson.M{"stream": stream}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []TransitionDoc
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close disconnects the underlying client.
func (s *Sink) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }
