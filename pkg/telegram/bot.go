package telegram

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Bot отправляет владельцам талонов сообщения через Telegram Bot API.
// chat_id берется из telegram_id пользователя.
type Bot struct {
	baseURL string
	client  *http.Client
}

func NewBot(token string) *Bot {
	return NewBotWithEndpoint("https://api.telegram.org/bot" + token)
}

// NewBotWithEndpoint создает бота с произвольным адресом API,
// в тестах им служит локальный сервер.
func NewBotWithEndpoint(baseURL string) *Bot {
	return &Bot{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *Bot) SendMessage(chatID, text string) error {
	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("text", text)

	resp, err := b.client.PostForm(b.baseURL+"/sendMessage", params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}

	return nil
}
