package template

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/domain/template"
)

// CreateTemplateRequest represents a request to create a ticket template
type CreateTemplateRequest struct {
	CustomerCompanyID *uuid.UUID      `json:"customerCompanyId"`
	Name              string          `json:"name" binding:"required,min=1,max=200"`
	Description       string          `json:"description" binding:"max=2000"`
	Category          string          `json:"category" binding:"required,min=1,max=100"`
	Subcategory       string          `json:"subcategory" binding:"max=100"`
	DefaultType       string          `json:"defaultType" binding:"max=50"`
	DefaultPriority   string          `json:"defaultPriority" binding:"omitempty,oneof=low medium high urgent"`
	DefaultStatus     string          `json:"defaultStatus" binding:"max=50"`
	DefaultAssigneeID *uuid.UUID      `json:"defaultAssigneeId"`
	DefaultGroupID    *uuid.UUID      `json:"defaultGroupId"`
	DefaultTags       []string        `json:"defaultTags" binding:"omitempty,max=50,dive,max=50"`
	CustomFields      json.RawMessage `json:"customFields"`
	IsActive          *bool           `json:"isActive"`
}

// UpdateTemplateRequest is a partial update. Nullable references may be
// cleared with an explicit null; clearing customerCompanyId makes the
// template global.
type UpdateTemplateRequest struct {
	CustomerCompanyID shared.Nullable[uuid.UUID] `json:"customerCompanyId"`
	Name              *string                    `json:"name" binding:"omitempty,min=1,max=200"`
	Description       *string                    `json:"description" binding:"omitempty,max=2000"`
	Category          *string                    `json:"category" binding:"omitempty,min=1,max=100"`
	Subcategory       *string                    `json:"subcategory" binding:"omitempty,max=100"`
	DefaultType       *string                    `json:"defaultType" binding:"omitempty,max=50"`
	DefaultPriority   *string                    `json:"defaultPriority" binding:"omitempty,oneof=low medium high urgent"`
	DefaultStatus     *string                    `json:"defaultStatus" binding:"omitempty,max=50"`
	DefaultAssigneeID shared.Nullable[uuid.UUID] `json:"defaultAssigneeId"`
	DefaultGroupID    shared.Nullable[uuid.UUID] `json:"defaultGroupId"`
	DefaultTags       *[]string                  `json:"defaultTags" binding:"omitempty,max=50,dive,max=50"`
	CustomFields      json.RawMessage            `json:"customFields"`
	IsActive          *bool                      `json:"isActive"`
	// UsageCount is accepted only to reject it; the counter changes by applying
	UsageCount *int64 `json:"usageCount"`
}

// TemplateListFilter represents the list query string
type TemplateListFilter struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"orderBy"`
	OrderDir    string `form:"orderDir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search      string `form:"search" binding:"max=200"`
	Category    string `form:"category" binding:"max=100"`
	Subcategory string `form:"subcategory" binding:"max=100"`
	IsActive    *bool  `form:"isActive"`
	CompanyID   string `form:"companyId" binding:"omitempty,uuid"`
	Scope       string `form:"scope" binding:"omitempty,oneof=all global"`
}

// ToSharedFilter converts the query into a repository filter
func (f TemplateListFilter) ToSharedFilter() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
		Filters:  map[string]interface{}{},
	}
	if f.Category != "" {
		filter.Filters["category"] = f.Category
	}
	if f.Subcategory != "" {
		filter.Filters["subcategory"] = f.Subcategory
	}
	if f.IsActive != nil {
		filter.Filters["is_active"] = *f.IsActive
	}
	if f.Scope == "global" {
		filter.Filters[template.FilterGlobalOnly] = true
	} else if f.CompanyID != "" {
		if id, err := uuid.Parse(f.CompanyID); err == nil {
			filter.Filters[template.FilterCompanyID] = id
		}
	}
	return filter.Normalize()
}

// ApplyTemplateRequest names the company a ticket is opened for
type ApplyTemplateRequest struct {
	CompanyID *uuid.UUID `json:"companyId"`
}

// TemplateResponse represents a ticket template in API responses
type TemplateResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenantId"`
	CustomerCompanyID *uuid.UUID      `json:"customerCompanyId"`
	IsGlobal          bool            `json:"isGlobal"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Subcategory       string          `json:"subcategory"`
	DefaultType       string          `json:"defaultType"`
	DefaultPriority   string          `json:"defaultPriority"`
	DefaultStatus     string          `json:"defaultStatus"`
	DefaultAssigneeID *uuid.UUID      `json:"defaultAssigneeId"`
	DefaultGroupID    *uuid.UUID      `json:"defaultGroupId"`
	DefaultTags       []string        `json:"defaultTags"`
	CustomFields      json.RawMessage `json:"customFields"`
	IsActive          bool            `json:"isActive"`
	UsageCount        int64           `json:"usageCount"`
	LastUsedAt        *time.Time      `json:"lastUsedAt"`
	CreatedBy         *uuid.UUID      `json:"createdBy,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// TicketDraftResponse is the set of ticket defaults produced by a template
type TicketDraftResponse struct {
	TemplateID   uuid.UUID       `json:"templateId"`
	Category     string          `json:"category"`
	Subcategory  string          `json:"subcategory"`
	Type         string          `json:"type"`
	Priority     string          `json:"priority"`
	Status       string          `json:"status"`
	AssigneeID   *uuid.UUID      `json:"assigneeId"`
	GroupID      *uuid.UUID      `json:"groupId"`
	Tags         []string        `json:"tags"`
	CustomFields json.RawMessage `json:"customFields"`
}

// ApplyTemplateResponse carries the draft and the new usage count
type ApplyTemplateResponse struct {
	Draft      TicketDraftResponse `json:"draft"`
	UsageCount int64               `json:"usageCount"`
}

// UsageStatResponse is one entry of the most used ranking
type UsageStatResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	UsageCount int64     `json:"usageCount"`
}

// StatsResponse aggregates template counts
type StatsResponse struct {
	Total      int64               `json:"total"`
	Active     int64               `json:"active"`
	ByCategory map[string]int64    `json:"byCategory"`
	MostUsed   []UsageStatResponse `json:"mostUsed"`
}

// ToTemplateResponse converts a domain template to a response
func ToTemplateResponse(t *template.TicketTemplate) TemplateResponse {
	tags := t.DefaultTags
	if tags == nil {
		tags = []string{}
	}
	return TemplateResponse{
		ID:                t.ID,
		TenantID:          t.TenantID,
		CustomerCompanyID: t.CustomerCompanyID,
		IsGlobal:          t.IsGlobal(),
		Name:              t.Name,
		Description:       t.Description,
		Category:          t.Category,
		Subcategory:       t.Subcategory,
		DefaultType:       t.DefaultType,
		DefaultPriority:   string(t.DefaultPriority),
		DefaultStatus:     t.DefaultStatus,
		DefaultAssigneeID: t.DefaultAssigneeID,
		DefaultGroupID:    t.DefaultGroupID,
		DefaultTags:       tags,
		CustomFields:      customFieldsOrEmpty(t.CustomFields),
		IsActive:          t.IsActive,
		UsageCount:        t.UsageCount,
		LastUsedAt:        t.LastUsedAt,
		CreatedBy:         t.CreatedBy,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// ToTemplateResponses converts a slice of templates
func ToTemplateResponses(templates []template.TicketTemplate) []TemplateResponse {
	out := make([]TemplateResponse, len(templates))
	for i := range templates {
		out[i] = ToTemplateResponse(&templates[i])
	}
	return out
}

func toDraftResponse(d template.TicketDraft) TicketDraftResponse {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return TicketDraftResponse{
		TemplateID:   d.TemplateID,
		Category:     d.Category,
		Subcategory:  d.Subcategory,
		Type:         d.Type,
		Priority:     string(d.Priority),
		Status:       d.Status,
		AssigneeID:   d.AssigneeID,
		GroupID:      d.GroupID,
		Tags:         tags,
		CustomFields: customFieldsOrEmpty(d.CustomFields),
	}
}

func toStatsResponse(s *template.Stats) StatsResponse {
	resp := StatsResponse{
		Total:      s.Total,
		Active:     s.Active,
		ByCategory: s.ByCategory,
		MostUsed:   make([]UsageStatResponse, len(s.MostUsed)),
	}
	if resp.ByCategory == nil {
		resp.ByCategory = map[string]int64{}
	}
	for i, u := range s.MostUsed {
		resp.MostUsed[i] = UsageStatResponse{ID: u.ID, Name: u.Name, Category: u.Category, UsageCount: u.UsageCount}
	}
	return resp
}

func customFieldsOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
