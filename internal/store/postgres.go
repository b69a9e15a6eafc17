package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/db"
	"github.com/sells-group/intake-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return eris.Wrap(db.Migrate(ctx, s.pool), "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Messages ---

func (s *PostgresStore) InsertMessage(ctx context.Context, msg *model.InboundMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = nowUTC()
	}

	sender, err := json.Marshal(msg.From)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sender")
	}
	recipients, err := json.Marshal(nonNil(msg.To))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal recipients")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO inbound_messages (id, provider_id, thread_id, sender, recipients, subject, text_body, html_body, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, nilIfEmpty(msg.ProviderID), nilIfEmpty(msg.ThreadID), sender, recipients,
		msg.Subject, msg.TextBody, msg.HTMLBody, msg.ReceivedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert message %s", msg.ID)
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*model.InboundMessage, error) {
	msg, err := pgScanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM inbound_messages WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: message %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get message %s", id)
	}

	trail, err := s.ListAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.Audit = trail
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, filter MessageFilter) ([]model.InboundMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM inbound_messages WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Processed != nil {
		query += fmt.Sprintf(` AND processed = $%d`, argIdx)
		args = append(args, *filter.Processed)
		argIdx++
	}
	if filter.ThreadID != "" {
		query += fmt.Sprintf(` AND thread_id = $%d`, argIdx)
		args = append(args, filter.ThreadID)
		argIdx++
	}
	query += ` ORDER BY received_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()

	var msgs []model.InboundMessage
	for rows.Next() {
		msg, err := pgScanMessage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		msgs = append(msgs, *msg)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: list messages iterate")
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, id string, analysis model.Analysis) error {
	extracted, classification, err := marshalAnalysis(analysis)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE inbound_messages SET extracted = $1, classification = $2, routing_method = $3, routing_confidence = $4 WHERE id = $5`,
		extracted, classification, string(analysis.Method), analysis.Confidence, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "message %s", id)
	}
	return nil
}

func (s *PostgresStore) IncrementRoutingAttempts(ctx context.Context, id string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`UPDATE inbound_messages SET routing_attempts = routing_attempts + 1 WHERE id = $1 RETURNING routing_attempts`,
		id,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(ErrNotFound, "message %s", id)
	}
	return n, eris.Wrapf(err, "postgres: increment routing attempts %s", id)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id string, completion model.Completion) error {
	extracted, classification, err := marshalAnalysis(completion.Analysis)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}
	linkage, err := json.Marshal(completion.Linkage)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal linkage")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE inbound_messages
		 SET processed = true, processed_at = $1, linkage = $2, extracted = $3, classification = $4,
		     routing_method = $5, routing_confidence = $6
		 WHERE id = $7 AND processed = false`,
		nowUTC(), linkage, extracted, classification,
		string(completion.Method), completion.Confidence, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark processed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "unprocessed message %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkSkipped(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE inbound_messages SET processed = true, processed_at = $1 WHERE id = $2 AND processed = false`,
		nowUTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark skipped %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "unprocessed message %s", id)
	}
	return nil
}

// --- Audit ---

func (s *PostgresStore) AppendAudit(ctx context.Context, messageID string, entry model.AuditEntry) error {
	details, err := marshalDetails(entry.Details)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit details")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = nowUTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO message_audit (message_id, status, message, details, created_at) VALUES ($1, $2, $3, $4, $5)`,
		messageID, string(entry.Status), entry.Message, details, entry.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "postgres: append audit %s", messageID)
}

func (s *PostgresStore) ListAudit(ctx context.Context, messageID string) (model.AuditTrail, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, message, details, created_at FROM message_audit WHERE message_id = $1 ORDER BY id`,
		messageID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list audit %s", messageID)
	}
	defer rows.Close()

	var trail model.AuditTrail
	for rows.Next() {
		var e model.AuditEntry
		var status string
		var details []byte
		if err := rows.Scan(&status, &e.Message, &details, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		e.Status = model.AuditStatus(status)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal audit details")
			}
		}
		trail = append(trail, e)
	}
	return trail, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}

// --- Organizations ---

func (s *PostgresStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
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
		return eris.Wrap(err, "postgres: marshal provenance")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO organizations (`+organizationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		org.ID, org.Name, org.Email, org.Status, org.CreatedBy, prov, org.SalesforceID, org.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert organization %s", org.Name)
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	org, err := pgScanOrganization(s.pool.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: organization %s", id)
	}
	return org, eris.Wrapf(err, "postgres: get organization %s", id)
}

func (s *PostgresStore) FindOrganizationByName(ctx context.Context, name string) (*model.Organization, error) {
	org, err := pgScanOrganization(s.pool.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE lower(name) = lower($1) ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(name),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return org, eris.Wrap(err, "postgres: find organization by name")
}

func (s *PostgresStore) FindOrganizationByEmail(ctx context.Context, email string) (*model.Organization, error) {
	org, err := pgScanOrganization(s.pool.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE email <> '' AND lower(email) = lower($1) ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(email),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return org, eris.Wrap(err, "postgres: find organization by email")
}

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		org, err := pgScanOrganization(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan organization")
		}
		orgs = append(orgs, *org)
	}
	return orgs, eris.Wrap(rows.Err(), "postgres: list organizations iterate")
}

func (s *PostgresStore) SetOrganizationSalesforceID(ctx context.Context, id, sfID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE organizations SET salesforce_id = $1 WHERE id = $2`, sfID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set organization salesforce id %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "organization %s", id)
	}
	return nil
}

// --- Deals ---

func (s *PostgresStore) CreateDeal(ctx context.Context, deal *model.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = nowUTC()
	}
	prov, err := marshalProvenance(deal.Provenance)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal provenance")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO deals (`+dealColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		deal.ID, deal.OrganizationID, deal.Name, deal.Stage, deal.Owner,
		deal.Amount, deal.ExpectedCloseDate, prov, deal.SalesforceID, deal.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert deal %s", deal.Name)
}

func (s *PostgresStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	deal, err := pgScanDeal(s.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: deal %s", id)
	}
	return deal, eris.Wrapf(err, "postgres: get deal %s", id)
}

func (s *PostgresStore) ListDealsByOrganization(ctx context.Context, orgID string) ([]model.Deal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE organization_id = $1 ORDER BY created_at, id`, orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list deals for %s", orgID)
	}
	defer rows.Close()

	var deals []model.Deal
	for rows.Next() {
		deal, err := pgScanDeal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan deal")
		}
		deals = append(deals, *deal)
	}
	return deals, eris.Wrap(rows.Err(), "postgres: list deals iterate")
}

func (s *PostgresStore) UpdateDealAmount(ctx context.Context, id string, amount float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE deals SET amount = $1 WHERE id = $2`, amount, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update deal amount %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "deal %s", id)
	}
	return nil
}

func (s *PostgresStore) SetDealSalesforceID(ctx context.Context, id, sfID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE deals SET salesforce_id = $1 WHERE id = $2`, sfID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set deal salesforce id %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "deal %s", id)
	}
	return nil
}

// --- Notes and tasks ---

func (s *PostgresStore) CreateNote(ctx context.Context, note *model.Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = nowUTC()
	}
	sender, err := json.Marshal(note.Sender)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal note sender")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		note.ID, note.OrganizationID, note.DealID, note.MessageID, note.Title,
		note.Body, note.HTML, sender, note.CreatedBy, note.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert note for message %s", note.MessageID)
}

func (s *PostgresStore) GetNotesByIDs(ctx context.Context, ids []string) ([]model.Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxNoteBatch {
		return nil, eris.Errorf("postgres: get notes: %d ids exceeds batch size %d", len(ids), MaxNoteBatch)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get notes")
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		var sender []byte
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.DealID, &n.MessageID, &n.Title,
			&n.Body, &n.HTML, &sender, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		if err := json.Unmarshal(sender, &n.Sender); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal note sender")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "postgres: get notes iterate")
}

func (s *PostgresStore) CreateTask(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = nowUTC()
	}
	if task.Status == "" {
		task.Status = model.TaskOpen
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, organization_id, deal_id, message_id, title, status, due_date, assigned_to, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.OrganizationID, task.DealID, task.MessageID, task.Title,
		string(task.Status), task.DueDate, task.AssignedTo, task.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert task for message %s", task.MessageID)
}

func (s *PostgresStore) ListTasksByDeal(ctx context.Context, dealID string) ([]model.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, deal_id, message_id, title, status, due_date, assigned_to, created_at
		 FROM tasks WHERE deal_id = $1 ORDER BY created_at, id`, dealID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list tasks for deal %s", dealID)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var status string
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.DealID, &t.MessageID, &t.Title,
			&status, &t.DueDate, &t.AssignedTo, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		t.Status = model.TaskStatus(status)
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: list tasks iterate")
}

// --- Settings ---

func (s *PostgresStore) GetSetting(ctx context.Context, scope, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE scope = $1 AND key = $2`, scope, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get setting %s/%s", scope, key)
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, scope, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (scope, key, value, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (scope, key) DO UPDATE SET value = $3, updated_at = $4`,
		scope, key, value, nowUTC(),
	)
	return eris.Wrapf(err, "postgres: set setting %s/%s", scope, key)
}

// helpers

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func pgScanMessage(row pgx.Row) (*model.InboundMessage, error) {
	var m model.InboundMessage
	var providerID, threadID *string
	var sender, recipients, linkage, extracted, classification []byte
	var method string

	err := row.Scan(&m.ID, &providerID, &threadID, &sender, &recipients, &m.Subject, &m.TextBody, &m.HTMLBody,
		&m.ReceivedAt, &m.Processed, &m.ProcessedAt, &linkage, &extracted, &classification,
		&method, &m.Confidence, &m.RoutingAttempts)
	if err != nil {
		return nil, err
	}
	if providerID != nil {
		m.ProviderID = *providerID
	}
	if threadID != nil {
		m.ThreadID = *threadID
	}
	m.RoutingMethod = model.RoutingMethod(method)
	if err := decodeMessageJSON(&m, sender, recipients, linkage, extracted, classification); err != nil {
		return nil, err
	}
	return &m, nil
}

func pgScanOrganization(row pgx.Row) (*model.Organization, error) {
	var o model.Organization
	var prov []byte
	if err := row.Scan(&o.ID, &o.Name, &o.Email, &o.Status, &o.CreatedBy, &prov, &o.SalesforceID, &o.CreatedAt); err != nil {
		return nil, err
	}
	p, err := unmarshalProvenance(prov)
	if err != nil {
		return nil, err
	}
	o.Provenance = p
	return &o, nil
}

func pgScanDeal(row pgx.Row) (*model.Deal, error) {
	var d model.Deal
	var prov []byte
	if err := row.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Stage, &d.Owner,
		&d.Amount, &d.ExpectedCloseDate, &prov, &d.SalesforceID, &d.CreatedAt); err != nil {
		return nil, err
	}
	p, err := unmarshalProvenance(prov)
	if err != nil {
		return nil, err
	}
	d.Provenance = p
	return &d, nil
}
