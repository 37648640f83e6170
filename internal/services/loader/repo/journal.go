package repo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"modloader/internal/platform/logger"
	"modloader/internal/platform/store"
	dom "modloader/internal/services/loader/domain"

	"github.com/google/uuid"
)

// DefaultJournalTable is the clickhouse table mutations are recorded in
const DefaultJournalTable = "loader_journal"

// Journal operations
const (
	OpBind     = "bind"
	OpDelete   = "delete"
	OpRegister = "register"
	OpAlias    = "alias"
)

// JournalSchema returns the DDL for the journal table
func JournalSchema(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	event_id  UUID,
	at        DateTime64(3, 'UTC'),
	op        LowCardinality(String),
	specifier String,
	target    String,
	module_id Int64,
	ok        UInt8,
	error     String
) ENGINE = MergeTree
ORDER BY (at, event_id)`, table)
}

// Event is one journal row
type Event struct {
	EventID   uuid.UUID
	At        time.Time
	Op        string
	Specifier dom.Specifier
	Target    dom.Specifier
	ModuleID  dom.ID
	OK        bool
	Error     string
}

func (e Event) row() []any {
	var ok uint8
	if e.OK {
		ok = 1
	}
	return []any{e.EventID, e.At, e.Op, string(e.Specifier), string(e.Target), int64(e.ModuleID), ok, e.Error}
}

// JournalOption configures a Journal
type JournalOption func(*Journal)

// tableName is a plain or database qualified clickhouse identifier
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidJournalTable reports whether table is safe to splice into journal statements
func ValidJournalTable(table string) bool { return tableName.MatchString(table) }

// WithJournalTable overrides the table name; names ValidJournalTable rejects are ignored
func WithJournalTable(table string) JournalOption {
	return func(j *Journal) {
		if ValidJournalTable(table) {
			j.table = table
		}
	}
}

// WithJournalClock overrides the event clock
func WithJournalClock(now func() time.Time) JournalOption {
	return func(j *Journal) { j.now = now }
}

// WithJournalIDs overrides event id generation
func WithJournalIDs(next func() uuid.UUID) JournalOption {
	return func(j *Journal) { j.newID = next }
}

// Journal decorates a backend and records every mutation in clickhouse
// reads pass straight through; journal write failures are logged and never returned
type Journal struct {
	dom.Backend
	ch    store.Clickhouse
	table string
	now   func() time.Time
	newID func() uuid.UUID
	log   *logger.Logger
}

// JournalStore is a Journal over a backend that also registers records
type JournalStore struct {
	*Journal
	reg dom.Registrar
}

var (
	_ dom.Backend = (*Journal)(nil)
	_ dom.Store   = (*JournalStore)(nil)
)

// NewJournal wraps inner; the result keeps inner's Registrar capability
func NewJournal(inner dom.Backend, ch store.Clickhouse, opts ...JournalOption) dom.Backend {
	j := &Journal{
		Backend: inner,
		ch:      ch,
		table:   DefaultJournalTable,
		now:     time.Now,
		newID:   uuid.New,
		log:     logger.Named("loader.journal"),
	}
	for _, o := range opts {
		o(j)
	}
	if reg, ok := inner.(dom.Registrar); ok {
		return &JournalStore{Journal: j, reg: reg}
	}
	return j
}

// Table returns the clickhouse table name
func (j *Journal) Table() string { return j.table }

// EnsureSchema creates the journal table when missing
func (j *Journal) EnsureSchema(ctx context.Context) error {
	return j.ch.Exec(ctx, JournalSchema(j.table))
}

// Bind implements domain.Backend
func (j *Journal) Bind(ctx context.Context, s dom.Specifier, id dom.ID) error {
	err := j.Backend.Bind(ctx, s, id)
	j.record(ctx, Event{Op: OpBind, Specifier: s, ModuleID: id}, err)
	return err
}

// Delete implements domain.Backend
func (j *Journal) Delete(ctx context.Context, s dom.Specifier) (bool, error) {
	ok, err := j.Backend.Delete(ctx, s)
	ev := Event{Op: OpDelete, Specifier: s}
	if err == nil && !ok {
		ev.Error = "not cached"
	}
	j.record(ctx, ev, err)
	return ok, err
}

// Register implements domain.Registrar
func (j *JournalStore) Register(ctx context.Context, rec dom.Record) (dom.ID, error) {
	id, err := j.reg.Register(ctx, rec)
	j.record(ctx, Event{Op: OpRegister, Specifier: rec.Specifier, ModuleID: id}, err)
	return id, err
}

// Alias implements domain.Registrar
func (j *JournalStore) Alias(ctx context.Context, alias, target dom.Specifier) error {
	err := j.reg.Alias(ctx, alias, target)
	j.record(ctx, Event{Op: OpAlias, Specifier: alias, Target: target}, err)
	return err
}

func (j *Journal) record(ctx context.Context, ev Event, opErr error) {
	ev.EventID = j.newID()
	ev.At = j.now().UTC()
	ev.OK = opErr == nil && ev.Error == ""
	if opErr != nil {
		ev.Error = opErr.Error()
	}
	if err := j.ch.Insert(ctx, j.table, [][]any{ev.row()}); err != nil {
		j.log.Warn().Err(err).
			Str("op", ev.Op).
			Str("specifier", string(ev.Specifier)).
			Str("event_id", ev.EventID.String()).
			Msg("journal write failed")
	}
}

// Recent returns the latest events, newest first, optionally for one specifier
func (j *Journal) Recent(ctx context.Context, s dom.Specifier, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := fmt.Sprintf(`
SELECT event_id, at, op, specifier, target, module_id, ok, error
FROM %s
WHERE (? = '' OR specifier = ?)
ORDER BY at DESC, event_id DESC
LIMIT %d`, j.table, limit)

	rows, err := j.ch.Query(ctx, q, string(s), string(s))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev      Event
			spec    string
			target  string
			id      int64
			okFlag  uint8
			errText string
		)
		if err := rows.Scan(&ev.EventID, &ev.At, &ev.Op, &spec, &target, &id, &okFlag, &errText); err != nil {
			return nil, err
		}
		ev.Specifier, ev.Target, ev.ModuleID = dom.Specifier(spec), dom.Specifier(target), dom.ID(id)
		ev.OK, ev.Error = okFlag == 1, errText
		out = append(out, ev)
	}
	return out, rows.Err()
}
