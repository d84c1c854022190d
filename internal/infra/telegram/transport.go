package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-commerce-bot/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.Transport = (*Transport)(nil)

// Transport implements adapter.Transport on top of the Bot API client.
type Transport struct {
	bot *tgbotapi.BotAPI
}

func NewTransport(bot *tgbotapi.BotAPI) *Transport {
	return &Transport{bot: bot}
}

func (t *Transport) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := t.bot.Send(msg)
	return err
}

func (t *Transport) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb := buildKeyboard(rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := t.bot.Send(msg)
	return err
}

func (t *Transport) SendPhotoWithButtons(ctx context.Context, chatID int64, fileID, caption string, rows [][]adapter.InlineButton) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	if kb := buildKeyboard(rows); kb != nil {
		photo.ReplyMarkup = *kb
	}
	_, err := t.bot.Send(photo)
	return err
}

// CreateSingleUseInvite issues a one-member invite link. member_limit=1
// makes the link unusable after the first join; the expiry bounds how long
// an unused link stays live.
func (t *Transport) CreateSingleUseInvite(ctx context.Context, channelID int64, name string, expiresIn time.Duration) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: channelID},
		Name:        name,
		MemberLimit: 1,
		ExpireDate:  int(time.Now().Add(expiresIn).Unix()),
	}
	resp, err := t.bot.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("create invite link: %w", err)
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	return link.InviteLink, nil
}

// RevokeMembership removes the user from the channel. Ban kicks them out,
// the immediate unban lifts the blacklist so a future invite works again.
func (t *Transport) RevokeMembership(ctx context.Context, channelID, tgUserID int64) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: channelID, UserID: tgUserID},
	}
	if _, err := t.bot.Request(ban); err != nil {
		return fmt.Errorf("ban member: %w", err)
	}
	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: channelID, UserID: tgUserID},
		OnlyIfBanned:     true,
	}
	if _, err := t.bot.Request(unban); err != nil {
		return fmt.Errorf("unban member: %w", err)
	}
	return nil
}

func (t *Transport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func buildKeyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		kb = append(kb, btns)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kb...)
	return &markup
}
