package template

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/domain/template"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// MostUsedLimit is the size of the most used ranking in stats
const MostUsedLimit = 5

// TemplateService handles ticket template business operations
type TemplateService struct {
	repo            template.TicketTemplateRepository
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(repo template.TicketTemplateRepository, logger *zap.Logger) *TemplateService {
	return &TemplateService{repo: repo, logger: logger}
}

// SetBusinessMetrics sets the business metrics collector
func (s *TemplateService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create creates a new template
func (s *TemplateService) Create(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, req CreateTemplateRequest) (*TemplateResponse, error) {
	t, err := template.NewTicketTemplate(tenantID, userID, req.Name, req.Category)
	if err != nil {
		return nil, err
	}
	t.CustomerCompanyID = req.CustomerCompanyID
	t.Description = req.Description
	t.Subcategory = strings.TrimSpace(req.Subcategory)
	if req.DefaultType != "" {
		t.DefaultType = req.DefaultType
	}
	if req.DefaultPriority != "" {
		if err := t.SetPriority(template.Priority(req.DefaultPriority)); err != nil {
			return nil, err
		}
	}
	if req.DefaultStatus != "" {
		t.DefaultStatus = req.DefaultStatus
	}
	t.DefaultAssigneeID = req.DefaultAssigneeID
	t.DefaultGroupID = req.DefaultGroupID
	t.DefaultTags = cleanTags(req.DefaultTags)
	if len(req.CustomFields) > 0 {
		if err := validateCustomFields(req.CustomFields); err != nil {
			return nil, err
		}
		t.CustomFields = req.CustomFields
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, s.internal(ctx, "Failed to create ticket template", err)
	}
	s.log(ctx).Info("Ticket template created",
		zap.String("template_id", t.ID.String()),
		zap.Bool("global", t.IsGlobal()))

	resp := ToTemplateResponse(t)
	return &resp, nil
}

// GetByID retrieves a template
func (s *TemplateService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*TemplateResponse, error) {
	t, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, s.translate(ctx, "Failed to load ticket template", err)
	}
	resp := ToTemplateResponse(t)
	return &resp, nil
}

// List retrieves a page of templates with the total count
func (s *TemplateService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[TemplateResponse], error) {
	filter = filter.Normalize()
	items, err := s.repo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, s.internal(ctx, "Failed to list ticket templates", err)
	}
	total, err := s.repo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, s.internal(ctx, "Failed to count ticket templates", err)
	}
	page := shared.NewPaginated(ToTemplateResponses(items), total, filter.Page, filter.PageSize)
	return &page, nil
}

// Update applies a partial update. A request with no field set writes
// nothing and returns the current template.
func (s *TemplateService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateTemplateRequest) (*TemplateResponse, error) {
	patch, err := buildPatch(req)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.Update(ctx, tenantID, id, patch)
	if err != nil {
		return nil, s.translate(ctx, "Failed to update ticket template", err)
	}
	resp := ToTemplateResponse(t)
	return &resp, nil
}

func buildPatch(req UpdateTemplateRequest) (shared.Patch, error) {
	if req.UsageCount != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "usageCount cannot be updated")
	}
	patch := shared.Patch{}

	if req.Name != nil {
		if err := template.ValidateName(*req.Name); err != nil {
			return nil, err
		}
		patch.Set("name", strings.TrimSpace(*req.Name))
	}
	if req.Description != nil {
		patch.Set("description", *req.Description)
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return nil, shared.NewDomainError("INVALID_CATEGORY", "Category cannot be empty")
		}
		patch.Set("category", category)
	}
	if req.Subcategory != nil {
		patch.Set("subcategory", strings.TrimSpace(*req.Subcategory))
	}
	if req.DefaultType != nil {
		patch.Set("defaultType", *req.DefaultType)
	}
	if req.DefaultPriority != nil {
		if !template.Priority(*req.DefaultPriority).IsValid() {
			return nil, shared.NewDomainError("INVALID_PRIORITY", "Priority must be one of low, medium, high, urgent")
		}
		patch.Set("defaultPriority", *req.DefaultPriority)
	}
	if req.DefaultStatus != nil {
		patch.Set("defaultStatus", *req.DefaultStatus)
	}
	if req.DefaultTags != nil {
		patch.Set("defaultTags", cleanTags(*req.DefaultTags))
	}
	if len(req.CustomFields) > 0 {
		if err := validateCustomFields(req.CustomFields); err != nil {
			return nil, err
		}
		patch.Set("customFields", req.CustomFields)
	}
	if req.IsActive != nil {
		patch.Set("isActive", *req.IsActive)
	}

	setNullable(patch, "customerCompanyId", req.CustomerCompanyID)
	setNullable(patch, "defaultAssigneeId", req.DefaultAssigneeID)
	setNullable(patch, "defaultGroupId", req.DefaultGroupID)
	return patch, nil
}

func setNullable(patch shared.Patch, field string, v shared.Nullable[uuid.UUID]) {
	if !v.Set {
		return
	}
	if p := v.Ptr(); p != nil {
		patch.Set(field, *p)
		return
	}
	patch.Set(field, (*uuid.UUID)(nil))
}

// Delete removes a template
func (s *TemplateService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.DeleteForTenant(ctx, tenantID, id); err != nil {
		return s.translate(ctx, "Failed to delete ticket template", err)
	}
	return nil
}

// Apply produces the ticket defaults of a template and counts the use.
// A company-specific template is invisible to other companies.
func (s *TemplateService) Apply(ctx context.Context, tenantID, id uuid.UUID, req ApplyTemplateRequest) (_ *ApplyTemplateResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ticket_template", "apply", tenantID, telemetry.TemplateID(id))
	defer telemetry.EndSpan(span, &err)

	t, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, s.translate(ctx, "Failed to load ticket template", err)
	}
	if !t.VisibleTo(req.CompanyID) {
		return nil, template.ErrTemplateNotFound
	}
	if err := t.CanApply(); err != nil {
		return nil, err
	}

	count, err := s.repo.IncrementUsage(ctx, tenantID, id)
	if err != nil {
		return nil, s.translate(ctx, "Failed to record template usage", err)
	}
	s.businessMetrics.RecordTemplateApplied()

	return &ApplyTemplateResponse{
		Draft:      toDraftResponse(t.Draft()),
		UsageCount: count,
	}, nil
}

// Stats returns template counts and the most used templates
func (s *TemplateService) Stats(ctx context.Context, tenantID uuid.UUID) (*StatsResponse, error) {
	stats, err := s.repo.Stats(ctx, tenantID, MostUsedLimit)
	if err != nil {
		return nil, s.internal(ctx, "Failed to compute ticket template stats", err)
	}
	resp := toStatsResponse(stats)
	return &resp, nil
}

// validateCustomFields requires a JSON object
func validateCustomFields(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if !json.Valid(trimmed) || len(trimmed) == 0 || trimmed[0] != '{' {
		return shared.NewDomainError("INVALID_CUSTOM_FIELDS", "customFields must be a JSON object")
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func (s *TemplateService) translate(ctx context.Context, msg string, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return template.ErrTemplateNotFound
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return s.internal(ctx, msg, err)
}

func (s *TemplateService) internal(ctx context.Context, msg string, err error) error {
	s.log(ctx).Error(msg, zap.Error(err))
	return shared.NewDomainError("INTERNAL_ERROR", msg)
}

func (s *TemplateService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}
