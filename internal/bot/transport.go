package bot

import (
	stderrors "errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grabbot/pkg/deliver"
	"grabbot/pkg/errors"
	"grabbot/pkg/logger"
	"grabbot/pkg/ratelimit"
)

// Button is one inline control attached to a prompt
type Button struct {
	Label string
	Data  string
}

// Transport abstracts the chat surface the pipeline talks to. The real
// implementation sits on the Telegram Bot API; tests substitute a fake
type Transport interface {
	// SendMessage sends a plain text message and returns its message ID
	SendMessage(chatID int64, text string) (int, error)

	// SendPrompt sends a text message with an inline keyboard row
	SendPrompt(chatID int64, text string, buttons []Button) (int, error)

	// EditMessage replaces the text of a previously sent message
	EditMessage(chatID int64, messageID int, text string) error

	// DeleteMessage removes a message from the chat
	DeleteMessage(chatID int64, messageID int) error

	// SendUnits delivers shaped media units in order
	SendUnits(chatID int64, units []deliver.Unit) error

	// AnswerCallback acknowledges a callback query
	AnswerCallback(id string, text string) error
}

type telegramTransport struct {
	api     *tgbotapi.BotAPI
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// NewTelegramTransport wraps a Bot API client in the Transport interface.
// Every outbound call waits on the limiter so bursts of units stay under
// Telegram's send rate
func NewTelegramTransport(api *tgbotapi.BotAPI, limiter ratelimit.Limiter, log logger.Logger) Transport {
	return &telegramTransport{
		api:     api,
		limiter: limiter,
		logger:  log,
	}
}

func (t *telegramTransport) pace() {
	if t.limiter != nil {
		t.limiter.Wait()
	}
}

func (t *telegramTransport) SendMessage(chatID int64, text string) (int, error) {
	t.pace()
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("failed to send message: %v", err))
	}
	return sent.MessageID, nil
}

func (t *telegramTransport) SendPrompt(chatID int64, text string, buttons []Button) (int, error) {
	t.pace()
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("failed to send prompt: %v", err))
	}
	return sent.MessageID, nil
}

func (t *telegramTransport) EditMessage(chatID int64, messageID int, text string) error {
	t.pace()
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := t.api.Send(edit)
	if err != nil && !isMessageNotModified(err) {
		return errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("failed to edit message: %v", err))
	}
	return nil
}

func (t *telegramTransport) DeleteMessage(chatID int64, messageID int) error {
	t.pace()
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	if err != nil {
		return errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("failed to delete message: %v", err))
	}
	return nil
}

func (t *telegramTransport) AnswerCallback(id string, text string) error {
	t.pace()
	_, err := t.api.Request(tgbotapi.NewCallback(id, text))
	if err != nil {
		return errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("failed to answer callback: %v", err))
	}
	return nil
}

func (t *telegramTransport) SendUnits(chatID int64, units []deliver.Unit) error {
	for _, unit := range units {
		if err := t.sendUnit(chatID, unit); err != nil {
			return err
		}
	}
	return nil
}

func (t *telegramTransport) sendUnit(chatID int64, unit deliver.Unit) error {
	t.pace()
	switch unit.Kind {
	case deliver.UnitSingleImage:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(unit.Files[0]))
		photo.Caption = unit.Caption
		photo.ReplyMarkup = deleteMarkup(unit.DeleteToken)
		_, err := t.api.Send(photo)
		return wrapSend(err, unit)

	case deliver.UnitGroupedBatch:
		// Media groups cannot carry a reply markup, so grouped sends go
		// out without the delete control
		group := make([]interface{}, 0, len(unit.Files))
		for i, file := range unit.Files {
			media := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(file))
			if i == 0 {
				media.Caption = unit.Caption
			}
			group = append(group, media)
		}
		_, err := t.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, group))
		return wrapSend(err, unit)

	case deliver.UnitSingleVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(unit.Files[0]))
		video.Caption = unit.Caption
		video.SupportsStreaming = unit.Streaming
		video.ReplyMarkup = deleteMarkup(unit.DeleteToken)
		_, err := t.api.Send(video)
		return wrapSend(err, unit)

	case deliver.UnitSingleAudio:
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(unit.Files[0]))
		audio.Caption = unit.Caption
		audio.ReplyMarkup = deleteMarkup(unit.DeleteToken)
		_, err := t.api.Send(audio)
		return wrapSend(err, unit)

	case deliver.UnitOversizedDocument:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(unit.Files[0]))
		doc.Caption = unit.Caption
		doc.ReplyMarkup = deleteMarkup(unit.DeleteToken)
		_, err := t.api.Send(doc)
		return wrapSend(err, unit)

	default:
		return errors.New(errors.ErrorTypeUnknown, "unknown delivery unit kind")
	}
}

func wrapSend(err error, unit deliver.Unit) error {
	if err == nil {
		return nil
	}
	return errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("failed to send %s: %v", unit.Kind, err))
}

func deleteMarkup(token string) interface{} {
	if token == "" {
		return nil
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Delete", callbackDelete+token),
		),
	)
}

// isMessageNotModified reports whether err is Telegram rejecting an edit
// that would leave the text unchanged. The library returns its API errors
// as *tgbotapi.Error; the value form is matched too for wrapped copies
func isMessageNotModified(err error) bool {
	var apiErrPtr *tgbotapi.Error
	if stderrors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == 400 && strings.Contains(apiErrPtr.Message, "message is not modified")
	}
	var apiErr tgbotapi.Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "message is not modified")
	}
	return false
}
