package template

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// Priority is the default ticket priority carried by a template
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether the priority is known
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Template-specific domain errors
var (
	ErrTemplateNotFound = shared.NewDomainError("NOT_FOUND", "Ticket template not found")
	ErrTemplateInactive = shared.NewDomainError("INVALID_STATE", "Inactive templates cannot be applied")
)

// TicketTemplate holds default values applied to new tickets.
// A nil CustomerCompanyID makes the template global: visible to every
// company of the tenant.
type TicketTemplate struct {
	shared.TenantEntity
	CustomerCompanyID *uuid.UUID
	Name              string
	Description       string
	Category          string
	Subcategory       string
	DefaultType       string
	DefaultPriority   Priority
	DefaultStatus     string
	DefaultAssigneeID *uuid.UUID
	DefaultGroupID    *uuid.UUID
	DefaultTags       []string
	CustomFields      json.RawMessage
	IsActive          bool
	UsageCount        int64
	LastUsedAt        *time.Time
}

// NewTicketTemplate creates an active template
func NewTicketTemplate(tenantID uuid.UUID, createdBy *uuid.UUID, name, category string) (*TicketTemplate, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Category cannot be empty")
	}

	return &TicketTemplate{
		TenantEntity:    shared.NewTenantEntity(tenantID, createdBy),
		Name:            strings.TrimSpace(name),
		Category:        category,
		DefaultType:     "incident",
		DefaultPriority: PriorityMedium,
		DefaultStatus:   "open",
		DefaultTags:     []string{},
		CustomFields:    json.RawMessage(`{}`),
		IsActive:        true,
	}, nil
}

// IsGlobal reports whether the template is shared by all companies
func (t *TicketTemplate) IsGlobal() bool {
	return t.CustomerCompanyID == nil
}

// VisibleTo reports whether a company may see and apply the template.
// A nil company sees every template.
func (t *TicketTemplate) VisibleTo(companyID *uuid.UUID) bool {
	if companyID == nil || t.IsGlobal() {
		return true
	}
	return *t.CustomerCompanyID == *companyID
}

// CanApply checks that the template may be applied
func (t *TicketTemplate) CanApply() error {
	if !t.IsActive {
		return ErrTemplateInactive
	}
	return nil
}

// SetPriority changes the default priority
func (t *TicketTemplate) SetPriority(p Priority) error {
	if !p.IsValid() {
		return shared.NewDomainError("INVALID_PRIORITY", "Priority must be one of low, medium, high, urgent")
	}
	t.DefaultPriority = p
	return nil
}

// ValidateName checks a template name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Template name cannot be empty")
	}
	if utf8.RuneCountInString(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Template name cannot exceed 200 characters")
	}
	return nil
}

// TicketDraft is the set of ticket field values produced by applying a template
type TicketDraft struct {
	TemplateID   uuid.UUID
	Category     string
	Subcategory  string
	Type         string
	Priority     Priority
	Status       string
	AssigneeID   *uuid.UUID
	GroupID      *uuid.UUID
	Tags         []string
	CustomFields json.RawMessage
}

// Draft builds the ticket defaults of the template
func (t *TicketTemplate) Draft() TicketDraft {
	return TicketDraft{
		TemplateID:   t.ID,
		Category:     t.Category,
		Subcategory:  t.Subcategory,
		Type:         t.DefaultType,
		Priority:     t.DefaultPriority,
		Status:       t.DefaultStatus,
		AssigneeID:   t.DefaultAssigneeID,
		GroupID:      t.DefaultGroupID,
		Tags:         t.DefaultTags,
		CustomFields: t.CustomFields,
	}
}
