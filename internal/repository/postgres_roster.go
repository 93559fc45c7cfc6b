package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// PostgresRoster stores staff in three tables: staff, staff_unavailable_dates
// and duty_assignments. Mutations lock the staff row with SELECT ... FOR UPDATE.
type PostgresRoster struct {
	pool *pgxpool.Pool
}

// NewPostgresRoster constructs the repository.
func NewPostgresRoster(pool *pgxpool.Pool) *PostgresRoster {
	return &PostgresRoster{pool: pool}
}

var _ RosterRepository = (*PostgresRoster)(nil)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewStoreUnavailable(op, err)
}

func (r *PostgresRoster) Ping(ctx context.Context) error {
	return storeErr("ping", r.pool.Ping(ctx))
}

func (r *PostgresRoster) Get(ctx context.Context, id string) (*domain.StaffRecord, error) {
	recs, err := loadRecords(ctx, r.pool, `WHERE s.id = $1`, id)
	if err != nil {
		return nil, storeErr("get", err)
	}
	if len(recs) == 0 {
		return nil, staffNotFound(id)
	}
	return &recs[0], nil
}

func (r *PostgresRoster) List(ctx context.Context) ([]domain.StaffRecord, error) {
	recs, err := loadRecords(ctx, r.pool, ``)
	return recs, storeErr("list", err)
}

func (r *PostgresRoster) FindEligible(ctx context.Context, q EligibilityQuery) ([]domain.StaffRecord, error) {
	const filter = `
        WHERE s.max_duties > 0 AND s.id <> $1
          AND NOT EXISTS (
              SELECT 1 FROM staff_unavailable_dates u
              WHERE u.staff_id = s.id AND u.unavailable_on = $2)
          AND NOT EXISTS (
              SELECT 1 FROM duty_assignments d
              WHERE d.staff_id = s.id AND d.duty_date = $2 AND ($3 = 'same_day' OR d.session = $4))`
	recs, err := loadRecords(ctx, r.pool, filter,
		q.ExcludeID, dates.Anchor(q.Date), string(policyOrDefault(q.Policy)), q.Session.String())
	return recs, storeErr("find eligible", err)
}

func (r *PostgresRoster) Commit(ctx context.Context, id string, duty domain.DutyAssignment, policy domain.ConflictPolicy) error {
	return r.withLocked(ctx, "commit", id, func(tx pgx.Tx, rec *domain.StaffRecord) error {
		if err := checkCommit(rec, duty, policy); err != nil {
			return err
		}
		return insertDuties(ctx, tx, id, []domain.DutyAssignment{duty})
	})
}

func (r *PostgresRoster) Append(ctx context.Context, id string, duties []domain.DutyAssignment, policy domain.ConflictPolicy) error {
	return r.withLocked(ctx, "append", id, func(tx pgx.Tx, rec *domain.StaffRecord) error {
		if err := checkAppend(rec, duties, policy); err != nil {
			return err
		}
		return insertDuties(ctx, tx, id, duties)
	})
}

func (r *PostgresRoster) Clear(ctx context.Context, id string) error {
	return r.withLocked(ctx, "clear", id, func(tx pgx.Tx, _ *domain.StaffRecord) error {
		if _, err := tx.Exec(ctx, `DELETE FROM duty_assignments WHERE staff_id=$1`, id); err != nil {
			return err
		}
		return syncCounter(ctx, tx, id)
	})
}

func (r *PostgresRoster) Reset(ctx context.Context, id string) error {
	return r.withLocked(ctx, "reset", id, func(tx pgx.Tx, _ *domain.StaffRecord) error {
		if _, err := tx.Exec(ctx, `DELETE FROM staff_unavailable_dates WHERE staff_id=$1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM duty_assignments WHERE staff_id=$1`, id); err != nil {
			return err
		}
		return syncCounter(ctx, tx, id)
	})
}

func (r *PostgresRoster) ResetAll(ctx context.Context) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT id FROM staff FOR UPDATE`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM staff_unavailable_dates`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM duty_assignments`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE staff SET assigned_duties=0, updated_at=NOW()`)
		return err
	})
	return storeErr("reset all", err)
}

func (r *PostgresRoster) ClearPastDuties(ctx context.Context, cutoff time.Time) (int, error) {
	cutoff = dates.Anchor(cutoff)
	var removed int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            SELECT s.id FROM staff s
            WHERE EXISTS (SELECT 1 FROM duty_assignments d WHERE d.staff_id = s.id AND d.duty_date < $1)
            FOR UPDATE`, cutoff); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM duty_assignments WHERE duty_date < $1`, cutoff)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		if _, err := tx.Exec(ctx, `DELETE FROM staff_unavailable_dates WHERE unavailable_on < $1`, cutoff); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
            UPDATE staff s SET assigned_duties = c.n, updated_at = NOW()
            FROM (
                SELECT s2.id, COUNT(d.duty_date) AS n
                FROM staff s2 LEFT JOIN duty_assignments d ON d.staff_id = s2.id
                GROUP BY s2.id
            ) c
            WHERE c.id = s.id AND s.assigned_duties <> c.n`)
		return err
	})
	if err != nil {
		return 0, storeErr("clear past duties", err)
	}
	return int(removed), nil
}

func (r *PostgresRoster) Upsert(ctx context.Context, records []domain.StaffRecord) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			if _, err := tx.Exec(ctx, `
                INSERT INTO staff (id, name, max_duties, assigned_duties)
                VALUES ($1,$2,$3,0)
                ON CONFLICT (id) DO UPDATE
                SET name=EXCLUDED.name, max_duties=EXCLUDED.max_duties, assigned_duties=0, updated_at=NOW()`,
				rec.ID, rec.Name, rec.MaxDuties); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `DELETE FROM duty_assignments WHERE staff_id=$1`, rec.ID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `DELETE FROM staff_unavailable_dates WHERE staff_id=$1`, rec.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return storeErr("upsert", err)
}

func (r *PostgresRoster) SetUnavailable(ctx context.Context, id string, days []time.Time) error {
	return r.withLocked(ctx, "set unavailable", id, func(tx pgx.Tx, _ *domain.StaffRecord) error {
		if _, err := tx.Exec(ctx, `DELETE FROM staff_unavailable_dates WHERE staff_id=$1`, id); err != nil {
			return err
		}
		return insertUnavailable(ctx, tx, id, days)
	})
}

func (r *PostgresRoster) AddUnavailable(ctx context.Context, id string, days []time.Time) error {
	return r.withLocked(ctx, "add unavailable", id, func(tx pgx.Tx, _ *domain.StaffRecord) error {
		return insertUnavailable(ctx, tx, id, days)
	})
}

// withLocked runs fn in a transaction holding the staff row lock.
func (r *PostgresRoster) withLocked(ctx context.Context, op, id string, fn func(tx pgx.Tx, rec *domain.StaffRecord) error) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM staff WHERE id=$1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return staffNotFound(id)
			}
			return err
		}
		recs, err := loadRecords(ctx, tx, `WHERE s.id = $1`, id)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return staffNotFound(id)
		}
		return fn(tx, &recs[0])
	})
	return storeErr(op, err)
}

func insertDuties(ctx context.Context, tx pgx.Tx, id string, duties []domain.DutyAssignment) error {
	for _, d := range duties {
		if _, err := tx.Exec(ctx, `
            INSERT INTO duty_assignments (staff_id, duty_date, session)
            VALUES ($1,$2,$3)`, id, dates.Anchor(d.Date), d.Session.String()); err != nil {
			return err
		}
	}
	return syncCounter(ctx, tx, id)
}

func insertUnavailable(ctx context.Context, tx pgx.Tx, id string, days []time.Time) error {
	for _, d := range days {
		if _, err := tx.Exec(ctx, `
            INSERT INTO staff_unavailable_dates (staff_id, unavailable_on)
            VALUES ($1,$2) ON CONFLICT DO NOTHING`, id, dates.Anchor(d)); err != nil {
			return err
		}
	}
	return nil
}

func syncCounter(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `
        UPDATE staff SET assigned_duties = (SELECT COUNT(*) FROM duty_assignments WHERE staff_id=$1),
            updated_at = NOW()
        WHERE id=$1`, id)
	return err
}

// loadRecords reads staff rows matching filter plus their child rows.
func loadRecords(ctx context.Context, q querier, filter string, args ...any) ([]domain.StaffRecord, error) {
	rows, err := q.Query(ctx, `
        SELECT s.id, s.name, s.max_duties, s.assigned_duties, s.roster_position
        FROM staff s `+filter+`
        ORDER BY s.roster_position, s.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []domain.StaffRecord
		ids    []string
		index  = map[string]int{}
	)
	for rows.Next() {
		var rec domain.StaffRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.MaxDuties, &rec.AssignedDuties, &rec.Position); err != nil {
			return nil, err
		}
		index[rec.ID] = len(result)
		ids = append(ids, rec.ID)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	unavailable, err := q.Query(ctx, `
        SELECT staff_id, unavailable_on FROM staff_unavailable_dates
        WHERE staff_id = ANY($1) ORDER BY unavailable_on`, ids)
	if err != nil {
		return nil, err
	}
	defer unavailable.Close()
	for unavailable.Next() {
		var (
			staffID string
			day     time.Time
		)
		if err := unavailable.Scan(&staffID, &day); err != nil {
			return nil, err
		}
		rec := &result[index[staffID]]
		rec.UnavailableDates = append(rec.UnavailableDates, dates.Anchor(day))
	}
	if err := unavailable.Err(); err != nil {
		return nil, err
	}

	duties, err := q.Query(ctx, `
        SELECT staff_id, duty_date, session FROM duty_assignments
        WHERE staff_id = ANY($1) ORDER BY assigned_at, duty_date`, ids)
	if err != nil {
		return nil, err
	}
	defer duties.Close()
	for duties.Next() {
		var (
			staffID string
			day     time.Time
			token   string
		)
		if err := duties.Scan(&staffID, &day, &token); err != nil {
			return nil, err
		}
		session, err := domain.ParseSession(token)
		if err != nil {
			return nil, err
		}
		rec := &result[index[staffID]]
		rec.Duties = append(rec.Duties, domain.DutyAssignment{Date: dates.Anchor(day), Session: session})
	}
	return result, duties.Err()
}

func policyOrDefault(p domain.ConflictPolicy) domain.ConflictPolicy {
	if p.Valid() {
		return p
	}
	return domain.SameDay
}
