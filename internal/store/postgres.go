// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kaya-concierge/internal/common/database"
	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// transcriptSchema and answersSchema guard the serialized columns: a bug in
// the engine must not write an unreadable payload.
const transcriptSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["role", "content"],
		"properties": {
			"role": {"type": "string", "enum": ["user", "assistant"]},
			"content": {"type": "string"}
		},
		"additionalProperties": false
	}
}`

const answersSchema = `{
	"type": "object",
	"required": ["unit", "purpose", "budget", "area"],
	"properties": {
		"unit": {"type": ["string", "null"]},
		"purpose": {"type": ["string", "null"]},
		"budget": {"type": ["string", "null"]},
		"area": {"type": ["string", "null"]}
	},
	"additionalProperties": false
}`

// PostgresLeadStore persists leads in a single table mirroring the original
// chat_history schema: contact columns plus JSON transcript and answers.
type PostgresLeadStore struct {
	client *database.PostgresClient
	logger logger.Logger
}

func NewPostgresLeadStore(client *database.PostgresClient, log logger.Logger) *PostgresLeadStore {
	return &PostgresLeadStore{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "lead-store"}),
	}
}

// Migrate creates the leads table if it does not exist.
func (s *PostgresLeadStore) Migrate(ctx context.Context) error {
	_, err := s.client.Exec(ctx, `CREATE TABLE IF NOT EXISTS leads (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		mobile TEXT NOT NULL,
		transcript JSONB NOT NULL,
		answers JSONB NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("migrate leads table: %w", err)
	}
	return nil
}

func (s *PostgresLeadStore) Create(ctx context.Context, contact models.Contact) (*models.Lead, error) {
	lead := &models.Lead{
		Contact:    contact,
		Transcript: []models.Message{},
		Answers:    models.Answers{},
		Status:     models.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	transcriptJSON, answersJSON, err := marshalPayload(lead.Transcript, lead.Answers)
	if err != nil {
		return nil, err
	}

	err = s.client.QueryRow(ctx,
		`INSERT INTO leads (name, email, mobile, transcript, answers, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		contact.Name, contact.Email, contact.Mobile,
		transcriptJSON, answersJSON, string(lead.Status), lead.CreatedAt,
	).Scan(&lead.ID)
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}

	s.logger.Info("lead created", map[string]interface{}{
		"leadId": lead.ID,
		"email":  contact.Email,
	})
	return lead, nil
}

func (s *PostgresLeadStore) Update(ctx context.Context, id int64, transcript []models.Message, answers models.Answers) error {
	transcriptJSON, answersJSON, err := marshalPayload(transcript, answers)
	if err != nil {
		return err
	}

	res, err := s.client.Exec(ctx,
		`UPDATE leads SET transcript = $1, answers = $2 WHERE id = $3`,
		transcriptJSON, answersJSON, id,
	)
	if err != nil {
		return fmt.Errorf("update lead %d: %w", id, err)
	}
	return checkAffected(res, id)
}

func (s *PostgresLeadStore) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	res, err := s.client.Exec(ctx,
		`UPDATE leads SET status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update lead %d status: %w", id, err)
	}
	return checkAffected(res, id)
}

func (s *PostgresLeadStore) Get(ctx context.Context, id int64) (*models.Lead, error) {
	row := s.client.QueryRow(ctx,
		`SELECT id, name, email, mobile, transcript, answers, status, created_at FROM leads WHERE id = $1`,
		id,
	)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("get lead %d: %w", id, err)
	}
	return lead, nil
}

func (s *PostgresLeadStore) ListAll(ctx context.Context) ([]*models.Lead, error) {
	rows, err := s.client.Query(ctx,
		`SELECT id, name, email, mobile, transcript, answers, status, created_at FROM leads ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var (
		lead           models.Lead
		transcriptJSON []byte
		answersJSON    []byte
		status         string
	)
	err := row.Scan(
		&lead.ID, &lead.Contact.Name, &lead.Contact.Email, &lead.Contact.Mobile,
		&transcriptJSON, &answersJSON, &status, &lead.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(transcriptJSON, &lead.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if err := json.Unmarshal(answersJSON, &lead.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	lead.Status = models.Status(status)
	return &lead, nil
}

// marshalPayload serializes and schema-checks the JSON columns.
func marshalPayload(transcript []models.Message, answers models.Answers) ([]byte, []byte, error) {
	transcriptJSON, err := json.Marshal(transcript)
	if err != nil {
		return nil, nil, fmt.Errorf("encode transcript: %w", err)
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, nil, fmt.Errorf("encode answers: %w", err)
	}

	if err := validateAgainst(transcriptSchema, transcriptJSON); err != nil {
		return nil, nil, fmt.Errorf("transcript payload: %w", err)
	}
	if err := validateAgainst(answersSchema, answersJSON); err != nil {
		return nil, nil, fmt.Errorf("answers payload: %w", err)
	}
	return transcriptJSON, answersJSON, nil
}

func validateAgainst(schema string, doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("payload validation failed: %v", errs)
	}
	return nil
}

func checkAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for lead %d: %w", id, err)
	}
	if affected == 0 {
		return ErrLeadNotFound
	}
	return nil
}
