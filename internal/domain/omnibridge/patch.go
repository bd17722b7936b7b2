package omnibridge

import (
	"time"

	"github.com/google/uuid"
)

// EmailPatch carries the email channel fields to change
type EmailPatch struct {
	Enabled  *bool
	IMAPHost *string
	IMAPPort *int
	SMTPHost *string
	SMTPPort *int
	Username *string
	Password SecretUpdate
}

// TelegramPatch carries the Telegram channel fields to change
type TelegramPatch struct {
	Enabled     *bool
	BotUsername *string
	BotToken    SecretUpdate
}

// WhatsAppPatch carries the WhatsApp channel fields to change
type WhatsAppPatch struct {
	Enabled           *bool
	PhoneNumberID     *string
	BusinessAccountID *string
	AccessToken       SecretUpdate
}

// ChannelsPatch carries the channel sections to change
type ChannelsPatch struct {
	Email    *EmailPatch
	Telegram *TelegramPatch
	WhatsApp *WhatsAppPatch
}

// FiltersPatch carries the filter fields to change
type FiltersPatch struct {
	BlockedSenders    *[]string
	SpamKeywords      *[]string
	AutoArchiveDays   *int
	IgnoreAutoReplies *bool
}

// SearchPatch carries the search fields to change
type SearchPatch struct {
	DefaultChannel  *string
	ResultsPerPage  *int
	IncludeArchived *bool
}

// SettingsPatch is a partial update: absent sections and fields keep
// their persisted values.
type SettingsPatch struct {
	Channels *ChannelsPatch
	Filters  *FiltersPatch
	Search   *SearchPatch
}

// Apply merges the patch over the settings, sealing replaced secrets,
// and validates the result.
func (s *Settings) Apply(p SettingsPatch, updatedBy *uuid.UUID, sealer Sealer) error {
	if c := p.Channels; c != nil {
		if err := s.applyChannels(c, sealer); err != nil {
			return err
		}
	}
	if f := p.Filters; f != nil {
		set(&s.Filters.BlockedSenders, f.BlockedSenders)
		set(&s.Filters.SpamKeywords, f.SpamKeywords)
		set(&s.Filters.AutoArchiveDays, f.AutoArchiveDays)
		set(&s.Filters.IgnoreAutoReplies, f.IgnoreAutoReplies)
	}
	if q := p.Search; q != nil {
		set(&s.Search.DefaultChannel, q.DefaultChannel)
		set(&s.Search.ResultsPerPage, q.ResultsPerPage)
		set(&s.Search.IncludeArchived, q.IncludeArchived)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	s.UpdatedBy = updatedBy
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Settings) applyChannels(c *ChannelsPatch, sealer Sealer) error {
	var err error
	if e := c.Email; e != nil {
		ch := &s.Channels.Email
		set(&ch.Enabled, e.Enabled)
		set(&ch.IMAPHost, e.IMAPHost)
		set(&ch.IMAPPort, e.IMAPPort)
		set(&ch.SMTPHost, e.SMTPHost)
		set(&ch.SMTPPort, e.SMTPPort)
		set(&ch.Username, e.Username)
		if ch.Password, err = ApplySecret(ch.Password, e.Password, sealer); err != nil {
			return err
		}
	}
	if t := c.Telegram; t != nil {
		ch := &s.Channels.Telegram
		set(&ch.Enabled, t.Enabled)
		set(&ch.BotUsername, t.BotUsername)
		if ch.BotToken, err = ApplySecret(ch.BotToken, t.BotToken, sealer); err != nil {
			return err
		}
	}
	if w := c.WhatsApp; w != nil {
		ch := &s.Channels.WhatsApp
		set(&ch.Enabled, w.Enabled)
		set(&ch.PhoneNumberID, w.PhoneNumberID)
		set(&ch.BusinessAccountID, w.BusinessAccountID)
		if ch.AccessToken, err = ApplySecret(ch.AccessToken, w.AccessToken, sealer); err != nil {
			return err
		}
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
