package omnibridge

import (
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// Search channel values
const (
	SearchChannelAll      = "all"
	SearchChannelEmail    = "email"
	SearchChannelTelegram = "telegram"
	SearchChannelWhatsApp = "whatsapp"
)

// EmailChannel configures the IMAP/SMTP mailbox integration
type EmailChannel struct {
	Enabled  bool   `json:"enabled"`
	IMAPHost string `json:"imapHost"`
	IMAPPort int    `json:"imapPort"`
	SMTPHost string `json:"smtpHost"`
	SMTPPort int    `json:"smtpPort"`
	Username string `json:"username"`
	Password Secret `json:"password"`
}

// TelegramChannel configures the Telegram bot integration
type TelegramChannel struct {
	Enabled     bool   `json:"enabled"`
	BotUsername string `json:"botUsername"`
	BotToken    Secret `json:"botToken"`
}

// WhatsAppChannel configures the WhatsApp Business integration
type WhatsAppChannel struct {
	Enabled           bool   `json:"enabled"`
	PhoneNumberID     string `json:"phoneNumberId"`
	BusinessAccountID string `json:"businessAccountId"`
	AccessToken       Secret `json:"accessToken"`
}

// Channels groups the per-channel configurations
type Channels struct {
	Email    EmailChannel    `json:"email"`
	Telegram TelegramChannel `json:"telegram"`
	WhatsApp WhatsAppChannel `json:"whatsapp"`
}

// Filters controls which inbound messages become tickets
type Filters struct {
	BlockedSenders    []string `json:"blockedSenders"`
	SpamKeywords      []string `json:"spamKeywords"`
	AutoArchiveDays   int      `json:"autoArchiveDays"`
	IgnoreAutoReplies bool     `json:"ignoreAutoReplies"`
}

// Search holds the unified inbox search preferences
type Search struct {
	DefaultChannel  string `json:"defaultChannel"`
	ResultsPerPage  int    `json:"resultsPerPage"`
	IncludeArchived bool   `json:"includeArchived"`
}

// Settings is the single omnichannel configuration row of a tenant
type Settings struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Channels  Channels
	Filters   Filters
	Search    Search
	UpdatedBy *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultSettings returns the configuration a tenant starts with
func DefaultSettings(tenantID uuid.UUID) *Settings {
	now := time.Now().UTC()
	return &Settings{
		ID:       uuid.New(),
		TenantID: tenantID,
		Channels: Channels{
			Email: EmailChannel{
				IMAPPort: 993,
				SMTPPort: 587,
			},
		},
		Filters: Filters{
			BlockedSenders:    []string{},
			SpamKeywords:      []string{},
			AutoArchiveDays:   30,
			IgnoreAutoReplies: true,
		},
		Search: Search{
			DefaultChannel: SearchChannelAll,
			ResultsPerPage: 25,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the non-secret fields
func (s *Settings) Validate() error {
	email := s.Channels.Email
	if !validPort(email.IMAPPort) || !validPort(email.SMTPPort) {
		return shared.NewDomainError("INVALID_INPUT", "Mail ports must be between 1 and 65535")
	}
	if email.Enabled && (email.IMAPHost == "" || email.SMTPHost == "") {
		return shared.NewDomainError("INVALID_INPUT", "Enabled email channel needs IMAP and SMTP hosts")
	}
	if s.Filters.AutoArchiveDays < 0 || s.Filters.AutoArchiveDays > 3650 {
		return shared.NewDomainError("INVALID_INPUT", "Auto archive days must be between 0 and 3650")
	}
	if s.Search.ResultsPerPage < 1 || s.Search.ResultsPerPage > 100 {
		return shared.NewDomainError("INVALID_INPUT", "Results per page must be between 1 and 100")
	}
	switch s.Search.DefaultChannel {
	case SearchChannelAll, SearchChannelEmail, SearchChannelTelegram, SearchChannelWhatsApp:
	default:
		return shared.NewDomainError("INVALID_INPUT", "Default search channel is unknown")
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}
