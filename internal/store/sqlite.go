package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/intake-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS inbound_messages (
	id                 TEXT PRIMARY KEY,
	provider_id        TEXT,
	thread_id          TEXT,
	sender             TEXT NOT NULL,
	recipients         TEXT NOT NULL DEFAULT '[]',
	subject            TEXT NOT NULL DEFAULT '',
	text_body          TEXT NOT NULL DEFAULT '',
	html_body          TEXT NOT NULL DEFAULT '',
	received_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	processed          INTEGER NOT NULL DEFAULT 0,
	processed_at       DATETIME,
	linkage            TEXT NOT NULL DEFAULT '{}',
	extracted          TEXT,
	classification     TEXT,
	routing_method     TEXT NOT NULL DEFAULT '',
	routing_confidence REAL NOT NULL DEFAULT 0,
	routing_attempts   INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_inbound_messages_provider_id ON inbound_messages(provider_id) WHERE provider_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_inbound_messages_unprocessed ON inbound_messages(processed, received_at);
CREATE INDEX IF NOT EXISTS idx_inbound_messages_thread ON inbound_messages(thread_id, processed);

CREATE TABLE IF NOT EXISTS message_audit (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL REFERENCES inbound_messages(id),
	status     TEXT NOT NULL,
	message    TEXT NOT NULL,
	details    TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_message_audit_message_id ON message_audit(message_id, id);

CREATE TABLE IF NOT EXISTS organizations (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'active',
	created_by    TEXT NOT NULL,
	provenance    TEXT,
	salesforce_id TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_organizations_name ON organizations(name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS deals (
	id                  TEXT PRIMARY KEY,
	organization_id     TEXT NOT NULL REFERENCES organizations(id),
	name                TEXT NOT NULL,
	stage               TEXT NOT NULL,
	owner               TEXT NOT NULL,
	amount              REAL,
	expected_close_date DATETIME,
	provenance          TEXT,
	salesforce_id       TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deals_organization_id ON deals(organization_id);

CREATE TABLE IF NOT EXISTS notes (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	deal_id         TEXT NOT NULL REFERENCES deals(id),
	message_id      TEXT NOT NULL,
	title           TEXT NOT NULL,
	body            TEXT NOT NULL,
	html            TEXT NOT NULL DEFAULT '',
	sender          TEXT NOT NULL,
	created_by      TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	deal_id         TEXT NOT NULL REFERENCES deals(id),
	message_id      TEXT NOT NULL,
	title           TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'open',
	due_date        DATETIME,
	assigned_to     TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_deal_id ON tasks(deal_id);

CREATE TABLE IF NOT EXISTS settings (
	scope      TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (scope, key)
);
`

const messageColumns = `id, provider_id, thread_id, sender, recipients, subject, text_body, html_body,
	received_at, processed, processed_at, linkage, extracted, classification,
	routing_method, routing_confidence, routing_attempts`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Messages ---

func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *model.InboundMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = nowUTC()
	}

	sender, err := json.Marshal(msg.From)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sender")
	}
	recipients, err := json.Marshal(nonNil(msg.To))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recipients")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO inbound_messages (id, provider_id, thread_id, sender, recipients, subject, text_body, html_body, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, nullString(msg.ProviderID), nullString(msg.ThreadID), string(sender), string(recipients),
		msg.Subject, msg.TextBody, msg.HTMLBody, msg.ReceivedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert message %s", msg.ID)
}

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*model.InboundMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM inbound_messages WHERE id = ?`, id,
	)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: message %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get message %s", id)
	}

	trail, err := s.ListAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.Audit = trail
	return msg, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, filter MessageFilter) ([]model.InboundMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM inbound_messages WHERE 1=1`
	var args []any

	if filter.Processed != nil {
		query += ` AND processed = ?`
		args = append(args, *filter.Processed)
	}
	if filter.ThreadID != "" {
		query += ` AND thread_id = ?`
		args = append(args, filter.ThreadID)
	}
	query += ` ORDER BY received_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages")
	}
	defer rows.Close()

	var msgs []model.InboundMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		msgs = append(msgs, *msg)
	}
	return msgs, eris.Wrap(rows.Err(), "sqlite: list messages iterate")
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, id string, analysis model.Analysis) error {
	extracted, classification, err := marshalAnalysis(analysis)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE inbound_messages SET extracted = ?, classification = ?, routing_method = ?, routing_confidence = ? WHERE id = ?`,
		textOrNil(extracted), textOrNil(classification), string(analysis.Method), analysis.Confidence, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save analysis %s", id)
	}
	return checkRowsAffected(res, "message", id)
}

func (s *SQLiteStore) IncrementRoutingAttempts(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inbound_messages SET routing_attempts = routing_attempts + 1 WHERE id = ?`, id,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: increment routing attempts %s", id)
	}
	if err := checkRowsAffected(res, "message", id); err != nil {
		return 0, err
	}

	var n int
	err = s.db.QueryRowContext(ctx,
		`SELECT routing_attempts FROM inbound_messages WHERE id = ?`, id,
	).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: read routing attempts %s", id)
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, id string, completion model.Completion) error {
	extracted, classification, err := marshalAnalysis(completion.Analysis)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}
	linkage, err := json.Marshal(completion.Linkage)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal linkage")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE inbound_messages
		 SET processed = 1, processed_at = ?, linkage = ?, extracted = ?, classification = ?,
		     routing_method = ?, routing_confidence = ?
		 WHERE id = ? AND processed = 0`,
		nowUTC(), string(linkage), textOrNil(extracted), textOrNil(classification),
		string(completion.Method), completion.Confidence, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark processed %s", id)
	}
	return checkRowsAffected(res, "unprocessed message", id)
}

func (s *SQLiteStore) MarkSkipped(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inbound_messages SET processed = 1, processed_at = ? WHERE id = ? AND processed = 0`,
		nowUTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark skipped %s", id)
	}
	return checkRowsAffected(res, "unprocessed message", id)
}

// --- Audit ---

func (s *SQLiteStore) AppendAudit(ctx context.Context, messageID string, entry model.AuditEntry) error {
	details, err := marshalDetails(entry.Details)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit details")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = nowUTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO message_audit (message_id, status, message, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		messageID, string(entry.Status), entry.Message, textOrNil(details), entry.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append audit %s", messageID)
}

func (s *SQLiteStore) ListAudit(ctx context.Context, messageID string) (model.AuditTrail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, message, details, created_at FROM message_audit WHERE message_id = ? ORDER BY id`,
		messageID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list audit %s", messageID)
	}
	defer rows.Close()

	var trail model.AuditTrail
	for rows.Next() {
		var e model.AuditEntry
		var details sql.NullString
		if err := rows.Scan(&e.Status, &e.Message, &details, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal audit details")
			}
		}
		trail = append(trail, e)
	}
	return trail, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

// --- Organizations ---

const organizationColumns = `id, name, email, status, created_by, provenance, salesforce_id, created_at`

func (s *SQLiteStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = nowUTC()
	}
	if org.Status == "" {
		org.Status = "active"
	}
	prov, err := marshalProvenance(org.Provenance)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal provenance")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO organizations (`+organizationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Email, org.Status, org.CreatedBy, textOrNil(prov), org.SalesforceID, org.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert organization %s", org.Name)
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id,
	)
	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: organization %s", id)
	}
	return org, eris.Wrapf(err, "sqlite: get organization %s", id)
}

func (s *SQLiteStore) FindOrganizationByName(ctx context.Context, name string) (*model.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE lower(name) = lower(?) ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(name),
	)
	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return org, eris.Wrap(err, "sqlite: find organization by name")
}

func (s *SQLiteStore) FindOrganizationByEmail(ctx context.Context, email string) (*model.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE email != '' AND lower(email) = lower(?) ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(email),
	)
	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return org, eris.Wrap(err, "sqlite: find organization by email")
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		orgs = append(orgs, *org)
	}
	return orgs, eris.Wrap(rows.Err(), "sqlite: list organizations iterate")
}

func (s *SQLiteStore) SetOrganizationSalesforceID(ctx context.Context, id, sfID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET salesforce_id = ? WHERE id = ?`, sfID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set organization salesforce id %s", id)
	}
	return checkRowsAffected(res, "organization", id)
}

// --- Deals ---

const dealColumns = `id, organization_id, name, stage, owner, amount, expected_close_date, provenance, salesforce_id, created_at`

func (s *SQLiteStore) CreateDeal(ctx context.Context, deal *model.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = nowUTC()
	}
	prov, err := marshalProvenance(deal.Provenance)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal provenance")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deals (`+dealColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deal.ID, deal.OrganizationID, deal.Name, deal.Stage, deal.Owner,
		deal.Amount, deal.ExpectedCloseDate, textOrNil(prov), deal.SalesforceID, deal.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert deal %s", deal.Name)
}

func (s *SQLiteStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = ?`, id)
	deal, err := scanDeal(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: deal %s", id)
	}
	return deal, eris.Wrapf(err, "sqlite: get deal %s", id)
}

func (s *SQLiteStore) ListDealsByOrganization(ctx context.Context, orgID string) ([]model.Deal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE organization_id = ? ORDER BY created_at, id`, orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list deals for %s", orgID)
	}
	defer rows.Close()

	var deals []model.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deal")
		}
		deals = append(deals, *deal)
	}
	return deals, eris.Wrap(rows.Err(), "sqlite: list deals iterate")
}

func (s *SQLiteStore) UpdateDealAmount(ctx context.Context, id string, amount float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deals SET amount = ? WHERE id = ?`, amount, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update deal amount %s", id)
	}
	return checkRowsAffected(res, "deal", id)
}

func (s *SQLiteStore) SetDealSalesforceID(ctx context.Context, id, sfID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deals SET salesforce_id = ? WHERE id = ?`, sfID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set deal salesforce id %s", id)
	}
	return checkRowsAffected(res, "deal", id)
}

// --- Notes and tasks ---

const noteColumns = `id, organization_id, deal_id, message_id, title, body, html, sender, created_by, created_at`

func (s *SQLiteStore) CreateNote(ctx context.Context, note *model.Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = nowUTC()
	}
	sender, err := json.Marshal(note.Sender)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal note sender")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.OrganizationID, note.DealID, note.MessageID, note.Title,
		note.Body, note.HTML, string(sender), note.CreatedBy, note.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert note for message %s", note.MessageID)
}

func (s *SQLiteStore) GetNotesByIDs(ctx context.Context, ids []string) ([]model.Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxNoteBatch {
		return nil, eris.Errorf("sqlite: get notes: %d ids exceeds batch size %d", len(ids), MaxNoteBatch)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get notes")
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		var sender string
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.DealID, &n.MessageID, &n.Title,
			&n.Body, &n.HTML, &sender, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		if err := json.Unmarshal([]byte(sender), &n.Sender); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal note sender")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "sqlite: get notes iterate")
}

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = nowUTC()
	}
	if task.Status == "" {
		task.Status = model.TaskOpen
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, organization_id, deal_id, message_id, title, status, due_date, assigned_to, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.OrganizationID, task.DealID, task.MessageID, task.Title,
		string(task.Status), task.DueDate, task.AssignedTo, task.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert task for message %s", task.MessageID)
}

func (s *SQLiteStore) ListTasksByDeal(ctx context.Context, dealID string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, deal_id, message_id, title, status, due_date, assigned_to, created_at
		 FROM tasks WHERE deal_id = ? ORDER BY created_at, id`, dealID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list tasks for deal %s", dealID)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var due sql.NullTime
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.DealID, &t.MessageID, &t.Title,
			&t.Status, &due, &t.AssignedTo, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task")
		}
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: list tasks iterate")
}

// --- Settings ---

func (s *SQLiteStore) GetSetting(ctx context.Context, scope, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE scope = ? AND key = ?`, scope, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get setting %s/%s", scope, key)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, scope, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, key, string(value), nowUTC(),
	)
	return eris.Wrapf(err, "sqlite: set setting %s/%s", scope, key)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMessage(row scannable) (*model.InboundMessage, error) {
	var m model.InboundMessage
	var providerID, threadID, extracted, classification sql.NullString
	var sender, recipients, linkage, method string
	var processedAt sql.NullTime

	err := row.Scan(&m.ID, &providerID, &threadID, &sender, &recipients, &m.Subject, &m.TextBody, &m.HTMLBody,
		&m.ReceivedAt, &m.Processed, &processedAt, &linkage, &extracted, &classification,
		&method, &m.Confidence, &m.RoutingAttempts)
	if err != nil {
		return nil, err
	}

	m.ProviderID = providerID.String
	m.ThreadID = threadID.String
	m.RoutingMethod = model.RoutingMethod(method)
	if processedAt.Valid {
		t := processedAt.Time
		m.ProcessedAt = &t
	}
	if err := decodeMessageJSON(&m, []byte(sender), []byte(recipients), []byte(linkage),
		nullBytes(extracted), nullBytes(classification)); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanOrganization(row scannable) (*model.Organization, error) {
	var o model.Organization
	var prov sql.NullString
	if err := row.Scan(&o.ID, &o.Name, &o.Email, &o.Status, &o.CreatedBy, &prov, &o.SalesforceID, &o.CreatedAt); err != nil {
		return nil, err
	}
	p, err := unmarshalProvenance(nullBytes(prov))
	if err != nil {
		return nil, err
	}
	o.Provenance = p
	return &o, nil
}

func scanDeal(row scannable) (*model.Deal, error) {
	var d model.Deal
	var amount sql.NullFloat64
	var closeDate sql.NullTime
	var prov sql.NullString
	if err := row.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Stage, &d.Owner,
		&amount, &closeDate, &prov, &d.SalesforceID, &d.CreatedAt); err != nil {
		return nil, err
	}
	if amount.Valid {
		a := amount.Float64
		d.Amount = &a
	}
	if closeDate.Valid {
		c := closeDate.Time
		d.ExpectedCloseDate = &c
	}
	p, err := unmarshalProvenance(nullBytes(prov))
	if err != nil {
		return nil, err
	}
	d.Provenance = p
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func textOrNil(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}
