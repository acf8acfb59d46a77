package bot

import (
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stretchr/testify/assert"
)

func TestMessageNotModifiedDetection(t *testing.T) {
	// The library hands back its API errors as pointers
	libErr := &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}
	assert.True(t, isMessageNotModified(libErr))

	// Wrapped copies still match
	assert.True(t, isMessageNotModified(fmt.Errorf("edit failed: %w", libErr)))

	// Value-shaped errors match too
	valErr := tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}
	assert.True(t, isMessageNotModified(fmt.Errorf("edit failed: %w", valErr)))

	// Other API faults stay errors
	assert.False(t, isMessageNotModified(&tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"}))
	assert.False(t, isMessageNotModified(&tgbotapi.Error{Code: 429, Message: "Too Many Requests"}))
	assert.False(t, isMessageNotModified(errors.New("connection reset")))
	assert.False(t, isMessageNotModified(nil))
}
