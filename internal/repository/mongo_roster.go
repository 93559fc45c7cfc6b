package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

const (
	countersCollection = "roster_counters"
	positionCounterID  = "staff_position"
	appendAttempts     = 3
)

type staffDocument struct {
	ID               string         `bson:"_id"`
	Name             string         `bson:"name"`
	MaxDuties        int            `bson:"max_duties"`
	AssignedDuties   int            `bson:"assigned_duties"`
	UnavailableDates []time.Time    `bson:"unavailable_dates"`
	Duties           []dutyDocument `bson:"duty_assignments"`
	Position         int64          `bson:"position"`
}

type dutyDocument struct {
	Date    time.Time `bson:"date"`
	Session string    `bson:"session"`
}

func (d staffDocument) record() (domain.StaffRecord, error) {
	rec := domain.StaffRecord{
		ID:             d.ID,
		Name:           d.Name,
		MaxDuties:      d.MaxDuties,
		AssignedDuties: d.AssignedDuties,
		Position:       d.Position,
	}
	for _, day := range d.UnavailableDates {
		rec.UnavailableDates = append(rec.UnavailableDates, dates.Anchor(day))
	}
	for _, duty := range d.Duties {
		session, err := domain.ParseSession(duty.Session)
		if err != nil {
			return domain.StaffRecord{}, err
		}
		rec.Duties = append(rec.Duties, domain.DutyAssignment{Date: dates.Anchor(duty.Date), Session: session})
	}
	return rec, nil
}

func toDutyDocuments(duties []domain.DutyAssignment) bson.A {
	out := make(bson.A, 0, len(duties))
	for _, d := range duties {
		out = append(out, dutyDocument{Date: dates.Anchor(d.Date), Session: d.Session.String()})
	}
	return out
}

// MongoRoster keeps one document per staff member. Each mutation is a single
// conditional UpdateOne, so it is atomic per document.
type MongoRoster struct {
	c        *mongo.Collection
	counters *mongo.Collection
}

// NewMongoRoster binds the repository to a collection in db.
func NewMongoRoster(db *mongo.Database, collection string) *MongoRoster {
	if collection == "" {
		collection = "staff"
	}
	return &MongoRoster{c: db.Collection(collection), counters: db.Collection(countersCollection)}
}

var _ RosterRepository = (*MongoRoster)(nil)

// EnsureIndexes creates the indexes used by eligibility queries.
func (r *MongoRoster) EnsureIndexes(ctx context.Context) error {
	_, err := r.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "position", Value: 1}}},
		{Keys: bson.D{{Key: "duty_assignments.date", Value: 1}}},
	})
	return storeErr("ensure indexes", err)
}

func (r *MongoRoster) Ping(ctx context.Context) error {
	return storeErr("ping", r.c.Database().Client().Ping(ctx, nil))
}

func (r *MongoRoster) Get(ctx context.Context, id string) (*domain.StaffRecord, error) {
	var doc staffDocument
	err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, staffNotFound(id)
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	rec, err := doc.record()
	if err != nil {
		return nil, storeErr("get", err)
	}
	return &rec, nil
}

func (r *MongoRoster) List(ctx context.Context) ([]domain.StaffRecord, error) {
	return r.find(ctx, "list", bson.M{})
}

func (r *MongoRoster) FindEligible(ctx context.Context, q EligibilityQuery) ([]domain.StaffRecord, error) {
	day := dates.Anchor(q.Date)
	filter := bson.M{
		"max_duties":        bson.M{"$gt": 0},
		"unavailable_dates": bson.M{"$ne": day},
		"duty_assignments":  noConflict(day, q.Session, q.Policy),
	}
	if q.ExcludeID != "" {
		filter["_id"] = bson.M{"$ne": q.ExcludeID}
	}
	return r.find(ctx, "find eligible", filter)
}

func (r *MongoRoster) find(ctx context.Context, op string, filter bson.M) ([]domain.StaffRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr(op, err)
	}
	var docs []staffDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(op, err)
	}
	out := make([]domain.StaffRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.record()
		if err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// noConflict matches duty arrays holding nothing that policy would block.
func noConflict(day time.Time, session domain.Session, policy domain.ConflictPolicy) bson.M {
	match := bson.M{"date": day}
	if policy == domain.SameSession {
		match["session"] = session.String()
	}
	return bson.M{"$not": bson.M{"$elemMatch": match}}
}

func (r *MongoRoster) Commit(ctx context.Context, id string, duty domain.DutyAssignment, policy domain.ConflictPolicy) error {
	day := dates.Anchor(duty.Date)
	filter := bson.M{
		"_id":               id,
		"max_duties":        bson.M{"$gt": 0},
		"$expr":             bson.M{"$lt": bson.A{"$assigned_duties", "$max_duties"}},
		"unavailable_dates": bson.M{"$ne": day},
		"duty_assignments":  noConflict(day, duty.Session, policy),
	}
	update := bson.M{
		"$push": bson.M{"duty_assignments": dutyDocument{Date: day, Session: duty.Session.String()}},
		"$inc":  bson.M{"assigned_duties": 1},
	}
	res, err := r.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return storeErr("commit", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	return r.explainRejection(ctx, id, func(rec *domain.StaffRecord) error {
		return checkCommit(rec, duty, policy)
	})
}

// Append reads the record, validates the whole group, then writes it with a
// filter pinned to the counter it saw. A concurrent change makes the write
// miss and the read is retried.
func (r *MongoRoster) Append(ctx context.Context, id string, duties []domain.DutyAssignment, policy domain.ConflictPolicy) error {
	if len(duties) == 0 {
		_, err := r.Get(ctx, id)
		return err
	}
	for range appendAttempts {
		rec, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := checkAppend(rec, duties, policy); err != nil {
			return err
		}
		res, err := r.c.UpdateOne(ctx,
			bson.M{"_id": id, "assigned_duties": rec.AssignedDuties, "max_duties": rec.MaxDuties},
			bson.M{
				"$push": bson.M{"duty_assignments": bson.M{"$each": toDutyDocuments(duties)}},
				"$inc":  bson.M{"assigned_duties": len(duties)},
			})
		if err != nil {
			return storeErr("append", err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return apperrors.NewConflict("staff record changed during transfer", map[string]any{"staff_id": id})
}

// explainRejection turns a conditional update miss into the matching domain error.
func (r *MongoRoster) explainRejection(ctx context.Context, id string, check func(*domain.StaffRecord) error) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := check(rec); err != nil {
		return err
	}
	return apperrors.NewConflict("staff record changed concurrently", map[string]any{"staff_id": id})
}

func (r *MongoRoster) setOne(ctx context.Context, op, id string, set bson.M) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return storeErr(op, err)
	}
	if res.MatchedCount == 0 {
		return staffNotFound(id)
	}
	return nil
}

func (r *MongoRoster) Clear(ctx context.Context, id string) error {
	return r.setOne(ctx, "clear", id, bson.M{"duty_assignments": bson.A{}, "assigned_duties": 0})
}

func (r *MongoRoster) Reset(ctx context.Context, id string) error {
	return r.setOne(ctx, "reset", id, bson.M{
		"duty_assignments":  bson.A{},
		"assigned_duties":   0,
		"unavailable_dates": bson.A{},
	})
}

func (r *MongoRoster) ResetAll(ctx context.Context) error {
	_, err := r.c.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{
		"duty_assignments":  bson.A{},
		"assigned_duties":   0,
		"unavailable_dates": bson.A{},
	}})
	return storeErr("reset all", err)
}

func (r *MongoRoster) ClearPastDuties(ctx context.Context, cutoff time.Time) (int, error) {
	cutoff = dates.Anchor(cutoff)
	stale := bson.M{"$or": bson.A{
		bson.M{"duty_assignments.date": bson.M{"$lt": cutoff}},
		bson.M{"unavailable_dates": bson.M{"$lt": cutoff}},
	}}

	count := mongo.Pipeline{
		{{Key: "$match", Value: stale}},
		{{Key: "$project", Value: bson.M{"n": bson.M{"$size": bson.M{"$filter": bson.M{
			"input": bson.M{"$ifNull": bson.A{"$duty_assignments", bson.A{}}},
			"as":    "d",
			"cond":  bson.M{"$lt": bson.A{"$$d.date", cutoff}},
		}}}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "removed": bson.M{"$sum": "$n"}}}},
	}
	cur, err := r.c.Aggregate(ctx, count)
	if err != nil {
		return 0, storeErr("clear past duties", err)
	}
	var totals []struct {
		Removed int `bson:"removed"`
	}
	if err := cur.All(ctx, &totals); err != nil {
		return 0, storeErr("clear past duties", err)
	}

	prune := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"duty_assignments": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$duty_assignments", bson.A{}}},
				"as":    "d",
				"cond":  bson.M{"$gte": bson.A{"$$d.date", cutoff}},
			}},
			"unavailable_dates": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$unavailable_dates", bson.A{}}},
				"as":    "u",
				"cond":  bson.M{"$gte": bson.A{"$$u", cutoff}},
			}},
		}}},
		{{Key: "$set", Value: bson.M{"assigned_duties": bson.M{"$size": "$duty_assignments"}}}},
	}
	if _, err := r.c.UpdateMany(ctx, stale, prune); err != nil {
		return 0, storeErr("clear past duties", err)
	}
	if len(totals) == 0 {
		return 0, nil
	}
	return totals[0].Removed, nil
}

func (r *MongoRoster) Upsert(ctx context.Context, records []domain.StaffRecord) error {
	for _, rec := range records {
		res, err := r.c.UpdateOne(ctx, bson.M{"_id": rec.ID}, bson.M{"$set": bson.M{
			"name":              rec.Name,
			"max_duties":        rec.MaxDuties,
			"assigned_duties":   0,
			"duty_assignments":  bson.A{},
			"unavailable_dates": bson.A{},
		}})
		if err != nil {
			return storeErr("upsert", err)
		}
		if res.MatchedCount == 1 {
			continue
		}
		pos, err := r.nextPosition(ctx)
		if err != nil {
			return err
		}
		_, err = r.c.InsertOne(ctx, staffDocument{
			ID:               rec.ID,
			Name:             rec.Name,
			MaxDuties:        rec.MaxDuties,
			UnavailableDates: []time.Time{},
			Duties:           []dutyDocument{},
			Position:         pos,
		})
		if err != nil {
			return storeErr("upsert", err)
		}
	}
	return nil
}

func (r *MongoRoster) nextPosition(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": positionCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, storeErr("next position", err)
	}
	return counter.Seq, nil
}

func (r *MongoRoster) SetUnavailable(ctx context.Context, id string, days []time.Time) error {
	return r.setOne(ctx, "set unavailable", id, bson.M{"unavailable_dates": mergeDays(nil, days)})
}

func (r *MongoRoster) AddUnavailable(ctx context.Context, id string, days []time.Time) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$addToSet": bson.M{"unavailable_dates": bson.M{"$each": mergeDays(nil, days)}},
	})
	if err != nil {
		return storeErr("add unavailable", err)
	}
	if res.MatchedCount == 0 {
		return staffNotFound(id)
	}
	return nil
}
