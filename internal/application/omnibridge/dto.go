package omnibridge

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/omnibridge"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// Secret actions accepted on the wire
const (
	SecretActionUnchanged = "unchanged"
	SecretActionReplace   = "replace"
)

// SecretField decodes the write side of a secret.
// Absent, null and {"action":"unchanged"} keep the stored value;
// {"action":"replace","value":"..."} stores value, an empty value clears it.
type SecretField struct {
	update omnibridge.SecretUpdate
}

// UnmarshalJSON implements json.Unmarshaler
func (f *SecretField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.update = omnibridge.Unchanged{}
		return nil
	}
	var raw struct {
		Action string  `json:"action"`
		Value  *string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return shared.NewDomainError("INVALID_SECRET", "Secret must be an object with an action")
	}
	switch raw.Action {
	case SecretActionUnchanged:
		f.update = omnibridge.Unchanged{}
	case SecretActionReplace:
		if raw.Value == nil {
			return shared.NewDomainError("INVALID_SECRET", "Replacing a secret requires a value")
		}
		f.update = omnibridge.Replace{Value: *raw.Value}
	default:
		return shared.NewDomainError("INVALID_SECRET", "Secret action must be unchanged or replace")
	}
	return nil
}

// Update returns the decoded instruction; nil means unchanged
func (f SecretField) Update() omnibridge.SecretUpdate {
	return f.update
}

// EmailRequest carries email channel changes
type EmailRequest struct {
	Enabled  *bool       `json:"enabled"`
	IMAPHost *string     `json:"imapHost" binding:"omitempty,max=255"`
	IMAPPort *int        `json:"imapPort" binding:"omitempty,min=1,max=65535"`
	SMTPHost *string     `json:"smtpHost" binding:"omitempty,max=255"`
	SMTPPort *int        `json:"smtpPort" binding:"omitempty,min=1,max=65535"`
	Username *string     `json:"username" binding:"omitempty,max=255"`
	Password SecretField `json:"password"`
}

// TelegramRequest carries Telegram channel changes
type TelegramRequest struct {
	Enabled     *bool       `json:"enabled"`
	BotUsername *string     `json:"botUsername" binding:"omitempty,max=100"`
	BotToken    SecretField `json:"botToken"`
}

// WhatsAppRequest carries WhatsApp channel changes
type WhatsAppRequest struct {
	Enabled           *bool       `json:"enabled"`
	PhoneNumberID     *string     `json:"phoneNumberId" binding:"omitempty,max=100"`
	BusinessAccountID *string     `json:"businessAccountId" binding:"omitempty,max=100"`
	AccessToken       SecretField `json:"accessToken"`
}

// ChannelsRequest carries channel section changes
type ChannelsRequest struct {
	Email    *EmailRequest    `json:"email"`
	Telegram *TelegramRequest `json:"telegram"`
	WhatsApp *WhatsAppRequest `json:"whatsapp"`
}

// FiltersRequest carries filter section changes
type FiltersRequest struct {
	BlockedSenders    *[]string `json:"blockedSenders" binding:"omitempty,max=1000,dive,max=320"`
	SpamKeywords      *[]string `json:"spamKeywords" binding:"omitempty,max=1000,dive,max=200"`
	AutoArchiveDays   *int      `json:"autoArchiveDays" binding:"omitempty,min=0,max=3650"`
	IgnoreAutoReplies *bool     `json:"ignoreAutoReplies"`
}

// SearchRequest carries search section changes
type SearchRequest struct {
	DefaultChannel  *string `json:"defaultChannel" binding:"omitempty,oneof=all email telegram whatsapp"`
	ResultsPerPage  *int    `json:"resultsPerPage" binding:"omitempty,min=1,max=100"`
	IncludeArchived *bool   `json:"includeArchived"`
}

// UpdateSettingsRequest is a partial settings update
type UpdateSettingsRequest struct {
	Channels *ChannelsRequest `json:"channels"`
	Filters  *FiltersRequest  `json:"filters"`
	Search   *SearchRequest   `json:"search"`
}

// ToPatch converts the request into a domain patch
func (r UpdateSettingsRequest) ToPatch() omnibridge.SettingsPatch {
	var p omnibridge.SettingsPatch
	if c := r.Channels; c != nil {
		p.Channels = &omnibridge.ChannelsPatch{}
		if e := c.Email; e != nil {
			p.Channels.Email = &omnibridge.EmailPatch{
				Enabled:  e.Enabled,
				IMAPHost: e.IMAPHost,
				IMAPPort: e.IMAPPort,
				SMTPHost: e.SMTPHost,
				SMTPPort: e.SMTPPort,
				Username: e.Username,
				Password: e.Password.Update(),
			}
		}
		if t := c.Telegram; t != nil {
			p.Channels.Telegram = &omnibridge.TelegramPatch{
				Enabled:     t.Enabled,
				BotUsername: t.BotUsername,
				BotToken:    t.BotToken.Update(),
			}
		}
		if w := c.WhatsApp; w != nil {
			p.Channels.WhatsApp = &omnibridge.WhatsAppPatch{
				Enabled:           w.Enabled,
				PhoneNumberID:     w.PhoneNumberID,
				BusinessAccountID: w.BusinessAccountID,
				AccessToken:       w.AccessToken.Update(),
			}
		}
	}
	if f := r.Filters; f != nil {
		p.Filters = &omnibridge.FiltersPatch{
			BlockedSenders:    f.BlockedSenders,
			SpamKeywords:      f.SpamKeywords,
			AutoArchiveDays:   f.AutoArchiveDays,
			IgnoreAutoReplies: f.IgnoreAutoReplies,
		}
	}
	if s := r.Search; s != nil {
		p.Search = &omnibridge.SearchPatch{
			DefaultChannel:  s.DefaultChannel,
			ResultsPerPage:  s.ResultsPerPage,
			IncludeArchived: s.IncludeArchived,
		}
	}
	return p
}

// SecretView is the read side of a secret: never the value itself
type SecretView struct {
	Configured bool   `json:"configured"`
	Hint       string `json:"hint,omitempty"`
}

// EmailView is the email channel as returned to clients
type EmailView struct {
	Enabled  bool       `json:"enabled"`
	IMAPHost string     `json:"imapHost"`
	IMAPPort int        `json:"imapPort"`
	SMTPHost string     `json:"smtpHost"`
	SMTPPort int        `json:"smtpPort"`
	Username string     `json:"username"`
	Password SecretView `json:"password"`
}

// TelegramView is the Telegram channel as returned to clients
type TelegramView struct {
	Enabled     bool       `json:"enabled"`
	BotUsername string     `json:"botUsername"`
	BotToken    SecretView `json:"botToken"`
}

// WhatsAppView is the WhatsApp channel as returned to clients
type WhatsAppView struct {
	Enabled           bool       `json:"enabled"`
	PhoneNumberID     string     `json:"phoneNumberId"`
	BusinessAccountID string     `json:"businessAccountId"`
	AccessToken       SecretView `json:"accessToken"`
}

// ChannelsView groups the channel views
type ChannelsView struct {
	Email    EmailView    `json:"email"`
	Telegram TelegramView `json:"telegram"`
	WhatsApp WhatsAppView `json:"whatsapp"`
}

// SettingsResponse represents the settings in API responses
type SettingsResponse struct {
	ID        uuid.UUID          `json:"id"`
	TenantID  uuid.UUID          `json:"tenantId"`
	Channels  ChannelsView       `json:"channels"`
	Filters   omnibridge.Filters `json:"filters"`
	Search    omnibridge.Search  `json:"search"`
	UpdatedBy *uuid.UUID         `json:"updatedBy,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func secretView(s omnibridge.Secret) SecretView {
	return SecretView{Configured: s.Configured(), Hint: s.Masked()}
}

// ToSettingsResponse renders settings with every secret masked
func ToSettingsResponse(s *omnibridge.Settings) SettingsResponse {
	c := s.Channels
	filters := s.Filters
	if filters.BlockedSenders == nil {
		filters.BlockedSenders = []string{}
	}
	if filters.SpamKeywords == nil {
		filters.SpamKeywords = []string{}
	}
	return SettingsResponse{
		ID:       s.ID,
		TenantID: s.TenantID,
		Channels: ChannelsView{
			Email: EmailView{
				Enabled:  c.Email.Enabled,
				IMAPHost: c.Email.IMAPHost,
				IMAPPort: c.Email.IMAPPort,
				SMTPHost: c.Email.SMTPHost,
				SMTPPort: c.Email.SMTPPort,
				Username: c.Email.Username,
				Password: secretView(c.Email.Password),
			},
			Telegram: TelegramView{
				Enabled:     c.Telegram.Enabled,
				BotUsername: c.Telegram.BotUsername,
				BotToken:    secretView(c.Telegram.BotToken),
			},
			WhatsApp: WhatsAppView{
				Enabled:           c.WhatsApp.Enabled,
				PhoneNumberID:     c.WhatsApp.PhoneNumberID,
				BusinessAccountID: c.WhatsApp.BusinessAccountID,
				AccessToken:       secretView(c.WhatsApp.AccessToken),
			},
		},
		Filters:   filters,
		Search:    s.Search,
		UpdatedBy: s.UpdatedBy,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
