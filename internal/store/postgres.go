package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrCategoryNotFound = errors.New("store: category not found")
	ErrTemplateNotFound = errors.New("store: no template configured for category")
	ErrListingNotFound  = errors.New("store: listing not found")
)

// PostgresStore implements the storer interfaces using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

// --- CategoryStorer Implementation ---

func (s *PostgresStore) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	query := `
		SELECT id, name, slug, description, is_restricted, created_at, updated_at
		FROM marketplace.categories
		WHERE id = $1;
	`
	var category domain.Category
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Description,
		&category.IsRestricted,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: GetCategoryByID failed to scan row: %w", err)
	}
	return &category, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `
		SELECT id, name, slug, description, is_restricted, created_at, updated_at
		FROM marketplace.categories
		ORDER BY name ASC;
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsRestricted, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, nil
}

// --- TemplateStorer Implementation ---

// GetTemplate loads the first template owned by the category, its steps in
// step_order and every step's fields in a single fan-out query.
func (s *PostgresStore) GetTemplate(ctx context.Context, categoryID int64) (*domain.ResolvedTemplate, error) {
	templateQuery := `
		SELECT id, category_id, name, created_at
		FROM marketplace.templates
		WHERE category_id = $1
		ORDER BY id ASC
		LIMIT 1;
	`
	var tpl domain.Template
	err := s.db.QueryRowContext(ctx, templateQuery, categoryID).Scan(&tpl.ID, &tpl.CategoryID, &tpl.Name, &tpl.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("store: GetTemplate failed to scan template row: %w", err)
	}

	stepsQuery := `
		SELECT id, template_id, title, description, step_order
		FROM marketplace.template_steps
		WHERE template_id = $1
		ORDER BY step_order ASC, id ASC;
	`
	rows, err := s.db.QueryContext(ctx, stepsQuery, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("store: GetTemplate failed to query steps: %w", err)
	}
	steps := []domain.Step{}
	for rows.Next() {
		var st domain.Step
		if err := rows.Scan(&st.ID, &st.TemplateID, &st.Title, &st.Description, &st.StepOrder); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: GetTemplate failed to scan step row: %w", err)
		}
		st.Fields = []domain.Field{}
		steps = append(steps, st)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("store: GetTemplate steps iteration error: %w", err)
	}
	rows.Close()

	resolved := &domain.ResolvedTemplate{Template: &tpl, Steps: steps}
	if len(steps) == 0 {
		return resolved, nil
	}

	stepIDs := make([]int64, len(steps))
	index := make(map[int64]int, len(steps))
	for i, st := range steps {
		stepIDs[i] = st.ID
		index[st.ID] = i
	}

	fieldsQuery := `
		SELECT id, step_id, field_name, field_label, field_type, is_required, is_visible,
			options, width, section, help_text, placeholder, field_order
		FROM marketplace.template_fields
		WHERE step_id = ANY($1)
		ORDER BY step_id ASC, field_order ASC, id ASC;
	`
	fieldRows, err := s.db.QueryContext(ctx, fieldsQuery, pq.Array(stepIDs))
	if err != nil {
		return nil, fmt.Errorf("store: GetTemplate failed to query fields: %w", err)
	}
	defer fieldRows.Close()

	for fieldRows.Next() {
		var (
			f       domain.Field
			label   sql.NullString
			options []byte
			width   sql.NullString
			section sql.NullString
		)
		if err := fieldRows.Scan(
			&f.ID, &f.StepID, &f.FieldName, &label, &f.FieldType, &f.IsRequired, &f.IsVisible,
			&options, &width, &section, &f.HelpText, &f.Placeholder, &f.FieldOrder,
		); err != nil {
			return nil, fmt.Errorf("store: GetTemplate failed to scan field row: %w", err)
		}
		f.FieldLabel = label.String
		f.Width = domain.Width(width.String)
		f.Section = section.String
		if len(options) > 0 && string(options) != "null" {
			if err := json.Unmarshal(options, &f.Options); err != nil {
				s.logger.Warn("ignoring malformed field options",
					zap.Int64("field_id", f.ID), zap.String("field_name", f.FieldName), zap.Error(err))
				f.Options = nil
			}
		}
		i, ok := index[f.StepID]
		if !ok {
			continue
		}
		resolved.Steps[i].Fields = append(resolved.Steps[i].Fields, f)
	}
	if err = fieldRows.Err(); err != nil {
		return nil, fmt.Errorf("store: GetTemplate fields iteration error: %w", err)
	}
	return resolved, nil
}

// --- ListingStorer Implementation ---

const listingColumns = `id, user_id, category_id, template_id, title, COALESCE(description, ''), price, type,
			status, is_premium, views, custom_fields, media_urls, details, image_url, image, images,
			created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var (
		l            domain.Listing
		customFields []byte
		mediaURLs    []byte
		details      []byte
		images       []byte
	)
	if err := row.Scan(
		&l.ID, &l.UserID, &l.CategoryID, &l.TemplateID, &l.Title, &l.Description, &l.Price, &l.Type,
		&l.Status, &l.IsPremium, &l.Views, &customFields, &mediaURLs, &details, &l.ImageURL, &l.Image, &images,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.CustomFields = domain.Values{}
	if err := unmarshalJSONB(customFields, &l.CustomFields); err != nil {
		return nil, fmt.Errorf("custom_fields: %w", err)
	}
	if err := unmarshalJSONB(mediaURLs, &l.MediaURLs); err != nil {
		return nil, fmt.Errorf("media_urls: %w", err)
	}
	if err := unmarshalJSONB(details, &l.Details); err != nil {
		return nil, fmt.Errorf("details: %w", err)
	}
	if err := unmarshalJSONB(images, &l.Images); err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	if l.MediaURLs == nil {
		l.MediaURLs = []domain.MediaURL{}
	}
	return &l, nil
}

func unmarshalJSONB(raw []byte, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func marshalPayloadJSON(payload *domain.ListingPayload) (customFields, mediaURLs []byte, err error) {
	values := payload.CustomFields
	if values == nil {
		values = domain.Values{}
	}
	customFields, err = json.Marshal(values)
	if err != nil {
		return nil, nil, fmt.Errorf("store: failed to encode custom_fields: %w", err)
	}
	media := payload.MediaURLs
	if media == nil {
		media = []domain.MediaURL{}
	}
	mediaURLs, err = json.Marshal(media)
	if err != nil {
		return nil, nil, fmt.Errorf("store: failed to encode media_urls: %w", err)
	}
	return customFields, mediaURLs, nil
}

func (s *PostgresStore) GetListingByID(ctx context.Context, id int64) (*domain.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM marketplace.listings
		WHERE id = $1 AND deleted_at IS NULL;
	`
	listing, err := scanListing(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("store: GetListingByID failed to scan row: %w", err)
	}
	return listing, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, params ListListingsParams) ([]domain.Listing, int, error) {
	var queryArgs []interface{}
	whereClauses := []string{"deleted_at IS NULL"}
	argID := 1

	if params.CategoryID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("category_id = $%d", argID))
		queryArgs = append(queryArgs, *params.CategoryID)
		argID++
	}
	if params.UserID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("user_id = $%d", argID))
		queryArgs = append(queryArgs, *params.UserID)
		argID++
	}
	if params.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argID))
		queryArgs = append(queryArgs, *params.Status)
		argID++
	}
	whereCondition := " WHERE " + strings.Join(whereClauses, " AND ")

	countQuery := "SELECT COUNT(*) FROM marketplace.listings" + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListListings failed to count listings: %w", err)
	}
	if totalCount == 0 {
		return []domain.Listing{}, 0, nil
	}

	dataQuery := fmt.Sprintf("SELECT %s FROM marketplace.listings%s ORDER BY is_premium DESC, created_at DESC LIMIT $%d OFFSET $%d",
		listingColumns, whereCondition, argID, argID+1)
	finalQueryArgs := append(queryArgs, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, dataQuery, finalQueryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListListings failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := make([]domain.Listing, 0, params.Limit)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListListings failed to scan listing row: %w", err)
		}
		listings = append(listings, *l)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListListings iteration error: %w", err)
	}
	return listings, totalCount, nil
}

func (s *PostgresStore) CreateListing(ctx context.Context, payload *domain.ListingPayload) (int64, error) {
	query := `
		INSERT INTO marketplace.listings
			(user_id, category_id, template_id, title, description, price, type, status, custom_fields, media_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;
	`
	customFields, mediaURLs, err := marshalPayloadJSON(payload)
	if err != nil {
		return 0, err
	}
	status := domain.StatusPending
	if payload.Status != nil {
		status = *payload.Status
	}

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		payload.UserID, payload.CategoryID, payload.TemplateID, payload.Title, payload.Description,
		payload.Price, payload.Type, status, customFields, mediaURLs,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: CreateListing failed to scan row: %w", err)
	}
	return id, nil
}

// UpdateListing never writes status, user_id or created_at: those belong to
// the moderation flow, not to an owner's edit.
func (s *PostgresStore) UpdateListing(ctx context.Context, id int64, payload *domain.ListingPayload) error {
	query := `
		UPDATE marketplace.listings
		SET category_id = $1, template_id = $2, title = $3, description = $4, price = $5, type = $6,
			custom_fields = $7, media_urls = $8, updated_at = CURRENT_TIMESTAMP
		WHERE id = $9 AND deleted_at IS NULL;
	`
	customFields, mediaURLs, err := marshalPayloadJSON(payload)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, query,
		payload.CategoryID, payload.TemplateID, payload.Title, payload.Description, payload.Price, payload.Type,
		customFields, mediaURLs, id,
	)
	if err != nil {
		return fmt.Errorf("store: UpdateListing failed to execute update: %w", err)
	}
	return requireAffected(result, "UpdateListing")
}

// DeleteListing soft-removes the listing.
func (s *PostgresStore) DeleteListing(ctx context.Context, id int64) error {
	query := `UPDATE marketplace.listings SET deleted_at = CURRENT_TIMESTAMP WHERE id = $1 AND deleted_at IS NULL;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: DeleteListing failed to execute delete: %w", err)
	}
	return requireAffected(result, "DeleteListing")
}

func (s *PostgresStore) UpdateListingStatus(ctx context.Context, id int64, status string, isPremium *bool) error {
	var (
		result sql.Result
		err    error
	)
	if isPremium == nil {
		query := `UPDATE marketplace.listings SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND deleted_at IS NULL;`
		result, err = s.db.ExecContext(ctx, query, status, id)
	} else {
		query := `UPDATE marketplace.listings SET status = $1, is_premium = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3 AND deleted_at IS NULL;`
		result, err = s.db.ExecContext(ctx, query, status, *isPremium, id)
	}
	if err != nil {
		return fmt.Errorf("store: UpdateListingStatus failed to execute update: %w", err)
	}
	return requireAffected(result, "UpdateListingStatus")
}

func requireAffected(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s failed to get rows affected: %w", op, err)
	}
	if rowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}

// --- SubscriptionChecker Implementation ---

func (s *PostgresStore) CheckSubscriptionAccess(ctx context.Context, userID string) (*domain.SubscriptionAccess, error) {
	query := `
		SELECT category_slug, remaining
		FROM marketplace.user_post_quotas
		WHERE user_id = $1;
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: CheckSubscriptionAccess failed to query quotas: %w", err)
	}
	defer rows.Close()

	access := &domain.SubscriptionAccess{CanPost: map[string]int{}}
	for rows.Next() {
		var (
			slug      string
			remaining int
		)
		if err := rows.Scan(&slug, &remaining); err != nil {
			return nil, fmt.Errorf("store: CheckSubscriptionAccess failed to scan quota row: %w", err)
		}
		access.CanPost[slug] = remaining
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: CheckSubscriptionAccess iteration error: %w", err)
	}
	return access, nil
}

// Ping verifies the connection; used by the health check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		s.logger.Info("Closing database connection pool...")
		err := s.db.Close()
		if err != nil {
			s.logger.Error("Failed to close database connection pool", zap.Error(err))
			return err
		}
		s.logger.Info("Database connection pool closed successfully.")
		return nil
	}
	return nil
}
