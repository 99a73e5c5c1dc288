package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, organization_id, list_id, name, subject, from_name, from_email,
       COALESCE(reply_to,''), COALESCE(html_content,''), status,
       total_recipients, sent_count, delivered_count, failed_count,
       started_at, completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.ListID, &c.Name, &c.Subject, &c.FromName, &c.FromEmail,
		&c.ReplyTo, &c.HTMLContent, &c.Status,
		&c.TotalRecipients, &c.SentCount, &c.DeliveredCount, &c.FailedCount,
		&c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM campaigns WHERE organization_id = $1`
	countArgs := []interface{}{orgID}
	if f.Status != "" {
		countQ += " AND status = $2"
		countArgs = append(countArgs, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE organization_id = $1`
	args := []interface{}{orgID}
	idx := 2
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		q += fmt.Sprintf(" AND (name ILIKE $%d OR subject ILIKE $%d)", idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, organization_id, list_id, name, subject, from_name, from_email,
			 reply_to, html_content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, c.ID, c.OrganizationID, c.ListID, c.Name, c.Subject,
		c.FromName, c.FromEmail, c.ReplyTo, c.HTMLContent, c.Status)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Update(ctx context.Context, orgID, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.FromName != nil {
		add("from_name", *u.FromName)
	}
	if u.FromEmail != nil {
		add("from_email", *u.FromEmail)
	}
	if u.ReplyTo != nil {
		add("reply_to", *u.ReplyTo)
	}
	if u.HTMLContent != nil {
		add("html_content", *u.HTMLContent)
	}
	if u.ListID != nil {
		add("list_id", *u.ListID)
	}

	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf(
		"UPDATE campaigns SET %s, updated_at = NOW() WHERE id = $%d AND organization_id = $%d AND status = 'draft'",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Missing or no longer editable; disambiguate for the caller.
		if _, err := r.Get(ctx, orgID, id); err != nil {
			return err
		}
		return campaign.ErrNotDraft
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns
		WHERE id = $1 AND organization_id = $2 AND status = 'draft'
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := r.Get(ctx, orgID, id); err != nil {
			return err
		}
		return campaign.ErrNotDraft
	}
	return nil
}

// ClaimForSending performs the atomic draft -> sending transition. The
// conditional WHERE clause makes concurrent claims race on the database
// row: exactly one request affects a row, every other gets
// ErrAlreadySending.
func (r *CampaignRepo) ClaimForSending(ctx context.Context, orgID, id string, totalRecipients int, startedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'sending', total_recipients = $1, started_at = $2, updated_at = NOW()
		WHERE id = $3 AND organization_id = $4 AND status = 'draft'
	`, totalRecipients, startedAt, id, orgID)
	if err != nil {
		return fmt.Errorf("claim campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		if _, err := r.Get(ctx, orgID, id); err != nil {
			return err
		}
		return campaign.ErrAlreadySending
	}
	return nil
}

func (r *CampaignRepo) FinalizeDispatch(ctx context.Context, orgID, id string, status domain.CampaignStatus, sent, delivered, failed int, completedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, sent_count = $2, delivered_count = $3, failed_count = $4,
		    completed_at = $5, updated_at = NOW()
		WHERE id = $6 AND organization_id = $7
	`, status, sent, delivered, failed, completedAt, id, orgID)
	if err != nil {
		return fmt.Errorf("finalize dispatch: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
