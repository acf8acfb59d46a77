// Package bot wires the acquisition pipeline to Telegram: it long-polls for
// updates, routes each inbound URL through the extraction chain inside a
// per-request staging scope, and delivers the shaped units back to the chat.
package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grabbot/pkg/auth"
	"grabbot/pkg/classify"
	"grabbot/pkg/config"
	"grabbot/pkg/correlate"
	"grabbot/pkg/deliver"
	"grabbot/pkg/errors"
	"grabbot/pkg/extract"
	"grabbot/pkg/fetch"
	"grabbot/pkg/logger"
	"grabbot/pkg/ratelimit"
	"grabbot/pkg/staging"
)

const (
	callbackFormat = "fmt:"
	callbackDelete = "del:"

	statusDownloading = "Downloading..."
	statusUploading   = "Uploading..."

	promptText  = "How should this be fetched?"
	expiredText = "That choice expired. Send the link again."
	usageText   = "Send me a link and I will fetch the media and post it back here.\n" +
		"YouTube links offer a video or audio choice, image posts come back as albums."
)

// Callback is a normalized inline keyboard press
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	Data      string
}

// Bot runs the acquisition and delivery pipeline over a Transport
type Bot struct {
	cfg        *config.Config
	logger     logger.Logger
	transport  Transport
	classifier *classify.Classifier
	store      *correlate.Store
	shaper     *deliver.Shaper

	gallery  extract.Strategy
	rendered extract.Strategy
	ytdlp    func(extract.Kind) extract.Strategy

	api *tgbotapi.BotAPI
}

// New creates a Bot connected to the Telegram Bot API
func New(cfg *config.Config, log logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, "failed to connect to Telegram: "+err.Error())
	}
	api.Debug = cfg.Telegram.Debug

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	transport := NewTelegramTransport(api, limiter, log)

	b := newBot(cfg, transport, log)
	b.api = api

	client := fetch.NewClient(&cfg.Scrape, log)
	cookies := cookieSource(cfg, log)
	b.gallery = extract.NewGalleryStrategy(client, &cfg.Scrape, &cfg.Download, log)
	b.rendered = extract.NewRenderedStrategy(client, &cfg.Scrape, &cfg.Download, log)
	b.ytdlp = func(kind extract.Kind) extract.Strategy {
		return extract.NewYTDLPStrategy(&cfg.Download, kind, cookies, log)
	}

	return b, nil
}

// newBot builds the pipeline core without a Telegram connection. Strategies
// are left for the caller to install
func newBot(cfg *config.Config, transport Transport, log logger.Logger) *Bot {
	return &Bot{
		cfg:        cfg,
		logger:     log,
		transport:  transport,
		classifier: classify.New(&cfg.Classify),
		store:      correlate.NewStore(),
		shaper:     deliver.NewShaper(&cfg.Delivery),
	}
}

// cookieSource resolves the cookie file handed to every downloader run. An
// explicitly configured file wins; otherwise the stored cookie jar is
// materialized on demand. No cookies anywhere is a normal outcome
func cookieSource(cfg *config.Config, log logger.Logger) extract.CookieSource {
	if cfg.Download.CookiesFile != "" {
		path := cfg.Download.CookiesFile
		return func() string { return path }
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential stores unavailable, downloads run without cookies")
		return func() string { return "" }
	}

	return func() string {
		path, err := manager.MaterializeDefault("")
		if err != nil {
			log.WithError(err).Warn("Failed to materialize cookies, downloading without them")
			return ""
		}
		return path
	}
}

// Run long-polls Telegram until the context is cancelled. Each update is
// handled in its own goroutine
func (b *Bot) Run(ctx context.Context) error {
	logger.LogComponentStart(b.logger, "bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.Telegram.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			logger.LogComponentStop(b.logger, "bot", "context cancelled")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				logger.LogComponentStop(b.logger, "bot", "updates channel closed")
				return nil
			}
			switch {
			case update.CallbackQuery != nil:
				cb := Callback{
					ID:   update.CallbackQuery.ID,
					Data: update.CallbackQuery.Data,
				}
				if update.CallbackQuery.Message != nil {
					cb.ChatID = update.CallbackQuery.Message.Chat.ID
					cb.MessageID = update.CallbackQuery.Message.MessageID
				}
				go b.handleCallback(ctx, cb)
			case update.Message != nil:
				msg := update.Message
				go b.handleMessage(ctx, msg.Chat.ID, msg.MessageID, msg.Text)
			}
		}
	}
}

// handleMessage routes one inbound chat message
func (b *Bot) handleMessage(ctx context.Context, chatID int64, messageID int, text string) {
	if strings.HasPrefix(strings.TrimSpace(text), "/start") {
		if _, err := b.transport.SendMessage(chatID, usageText); err != nil {
			b.logger.WithError(err).Warn("Failed to send usage message")
		}
		return
	}

	url, category := b.classifier.Classify(text)
	if url == "" {
		return
	}

	b.logger.InfoWithFields("URL accepted", map[string]interface{}{
		"chat_id":  chatID,
		"url":      url,
		"category": category.String(),
	})

	if category == classify.CategoryFormatChoice {
		token := b.store.PutChoice(correlate.PendingChoice{
			URL:       url,
			ChatID:    chatID,
			MessageID: messageID,
		})
		buttons := []Button{
			{Label: "Video", Data: callbackFormat + token + ":" + extract.KindVideo.String()},
			{Label: "Audio", Data: callbackFormat + token + ":" + extract.KindAudio.String()},
		}
		if _, err := b.transport.SendPrompt(chatID, promptText, buttons); err != nil {
			b.logger.WithError(err).Warn("Failed to send format prompt")
		}
		return
	}

	b.process(ctx, chatID, messageID, url, category, extract.KindVideo)
}

// handleCallback routes one inline keyboard press
func (b *Bot) handleCallback(ctx context.Context, cb Callback) {
	if err := b.transport.AnswerCallback(cb.ID, ""); err != nil {
		b.logger.WithError(err).Debug("Failed to answer callback")
	}

	switch {
	case strings.HasPrefix(cb.Data, callbackFormat):
		b.resumeChoice(ctx, cb)
	case strings.HasPrefix(cb.Data, callbackDelete):
		b.applyDelete(cb)
	default:
		b.logger.WithField("data", cb.Data).Debug("Ignoring unknown callback payload")
	}
}

// resumeChoice consumes a format-choice token and runs the suspended request
func (b *Bot) resumeChoice(ctx context.Context, cb Callback) {
	parts := strings.Split(strings.TrimPrefix(cb.Data, callbackFormat), ":")
	if len(parts) != 2 {
		return
	}
	token := parts[0]
	kind, ok := parseKind(parts[1])
	if !ok {
		return
	}

	pending, ok := b.store.TakeChoice(token)
	if !ok {
		// Already consumed or never existed. The prompt becomes a hint to
		// resend instead of silently dying
		if err := b.transport.EditMessage(cb.ChatID, cb.MessageID, expiredText); err != nil {
			b.logger.WithError(err).Debug("Failed to mark prompt expired")
		}
		return
	}

	if err := b.transport.DeleteMessage(cb.ChatID, cb.MessageID); err != nil {
		b.logger.WithError(err).Debug("Failed to remove format prompt")
	}

	b.process(ctx, pending.ChatID, pending.MessageID, pending.URL, classify.CategoryFormatChoice, kind)
}

// applyDelete consumes a delete token and removes the inbound message plus
// the delivered message carrying the control. A second press is a no-op
func (b *Bot) applyDelete(cb Callback) {
	token := strings.TrimPrefix(cb.Data, callbackDelete)
	pending, ok := b.store.TakeDelete(token)
	if !ok {
		return
	}

	if err := b.transport.DeleteMessage(pending.ChatID, pending.MessageID); err != nil {
		b.logger.WithError(err).Debug("Failed to delete original message")
	}
	if err := b.transport.DeleteMessage(cb.ChatID, cb.MessageID); err != nil {
		b.logger.WithError(err).Debug("Failed to delete delivered message")
	}
}

// process runs one request end to end: stage, extract, shape, deliver.
// The staging scope is removed on every exit path
func (b *Bot) process(ctx context.Context, chatID int64, inboundID int, url string, category classify.Category, kind extract.Kind) {
	start := time.Now()

	statusID, err := b.transport.SendMessage(chatID, statusDownloading)
	if err != nil {
		b.logger.WithError(err).Warn("Failed to send status message")
		statusID = 0
	}

	scope, err := staging.NewScope(b.cfg.Staging.BaseDirectory, b.logger)
	if err != nil {
		b.fail(chatID, statusID, err)
		return
	}
	defer scope.Cleanup()

	chain := extract.ChainFor(category, kind, b.gallery, b.rendered, b.ytdlp, b.logger)
	result, err := chain.Run(ctx, url, scope)
	if err != nil {
		b.fail(chatID, statusID, err)
		return
	}

	deleteToken := b.store.PutDelete(correlate.PendingDelete{
		ChatID:    chatID,
		MessageID: inboundID,
	})

	units, err := b.shaper.Shape(result, deleteToken)
	if err != nil {
		b.fail(chatID, statusID, err)
		return
	}

	if statusID != 0 {
		if err := b.transport.EditMessage(chatID, statusID, statusUploading); err != nil {
			b.logger.WithError(err).Debug("Failed to update status message")
		}
	}

	if err := b.transport.SendUnits(chatID, units); err != nil {
		b.fail(chatID, statusID, err)
		return
	}

	if statusID != 0 {
		if err := b.transport.DeleteMessage(chatID, statusID); err != nil {
			b.logger.WithError(err).Debug("Failed to remove status message")
		}
	}

	asDocument := false
	for _, unit := range units {
		if unit.Kind == deliver.UnitOversizedDocument {
			asDocument = true
		}
	}
	logger.LogDelivery(b.logger, chatID, len(units), asDocument, time.Since(start))
}

// fail reports a request failure to the chat. The message is reused from the
// status message when one exists and auto-deletes after a short delay
func (b *Bot) fail(chatID int64, statusID int, err error) {
	b.logger.WithError(err).WithField("chat_id", chatID).Error("Request failed")

	text := b.userMessage(err)
	messageID := statusID
	if statusID != 0 {
		if editErr := b.transport.EditMessage(chatID, statusID, text); editErr != nil {
			messageID = 0
		}
	}
	if messageID == 0 {
		id, sendErr := b.transport.SendMessage(chatID, text)
		if sendErr != nil {
			b.logger.WithError(sendErr).Warn("Failed to send error message")
			return
		}
		messageID = id
	}

	time.AfterFunc(b.cfg.Delivery.EphemeralDelay, func() {
		if delErr := b.transport.DeleteMessage(chatID, messageID); delErr != nil {
			b.logger.WithError(delErr).Debug("Failed to expire error message")
		}
	})
}

// userMessage maps a pipeline error to a bounded chat-facing message
func (b *Bot) userMessage(err error) string {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeUnavailable, errors.ErrorTypeNotFound:
		return "Nothing could be fetched from that link. It may be private or removed."
	case errors.ErrorTypeNetwork:
		return "Network trouble while fetching that link. Try again in a moment."
	case errors.ErrorTypeServerError:
		return "The site is having trouble right now. Try again later."
	case errors.ErrorTypeSubprocess:
		return "The downloader could not be started."
	case errors.ErrorTypeFilesystem:
		return "Could not stage files for this request."
	default:
		return "Download failed: " + deliver.Truncate(err.Error(), b.cfg.Delivery.CaptionLimit)
	}
}

func parseKind(s string) (extract.Kind, bool) {
	switch s {
	case extract.KindVideo.String():
		return extract.KindVideo, true
	case extract.KindAudio.String():
		return extract.KindAudio, true
	default:
		return extract.KindVideo, false
	}
}
