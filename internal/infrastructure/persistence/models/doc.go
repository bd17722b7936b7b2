// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags or column types
// 2. Persistence models own the table mapping and jsonb encoding
// 3. ToDomain / FromDomain convert between the two
//
// Table names are unqualified: repositories place them inside the tenant
// schema through tenant.TenantDB. Only TenantRegistryModel lives in public.
//
// Structure:
// - base.go: BaseModel, TenantModel
// - tenant.go: public.tenants registry
// - location.go: locations
// - template.go: ticket_templates
// - chatbot.go: chatbots, chatbot_flows, chatbot_nodes, chatbot_edges
// - omnibridge.go: omnibridge_settings
package models
