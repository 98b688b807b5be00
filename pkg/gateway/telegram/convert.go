package telegram

import (
	"fmt"

	"github.com/dukex/botflow/pkg/gateway"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// toUpdate converts a raw update. The second result is false for updates the
// engine does not handle (edits, channel posts, joins).
func toUpdate(raw tgbotapi.Update) (gateway.Update, bool) {
	if query := raw.CallbackQuery; query != nil {
		update := gateway.Update{
			ID:           int64(raw.UpdateID),
			Kind:         gateway.UpdateCallback,
			CallbackID:   query.ID,
			CallbackData: query.Data,
		}

		if query.From != nil {
			update.From = toUser(query.From)
		}

		if query.Message != nil {
			update.Chat = toChat(query.Message.Chat)
			update.MessageID = int64(query.Message.MessageID)
		} else {
			update.Chat = gateway.Chat{ID: update.From.ID, Type: "private"}
		}

		return update, true
	}

	message := raw.Message
	if message == nil || message.Chat == nil {
		return gateway.Update{}, false
	}

	update := gateway.Update{
		ID:        int64(raw.UpdateID),
		Chat:      toChat(message.Chat),
		MessageID: int64(message.MessageID),
		Text:      message.Text,
		Caption:   message.Caption,
	}

	if message.From != nil {
		update.From = toUser(message.From)
	}

	switch {
	case message.IsCommand():
		update.Kind = gateway.UpdateCommand
	case len(message.Photo) > 0:
		update.Kind = gateway.UpdatePhoto
		update.FileID = message.Photo[len(message.Photo)-1].FileID
	case message.Video != nil:
		update.Kind = gateway.UpdateVideo
		update.FileID = message.Video.FileID
	case message.Voice != nil:
		update.Kind = gateway.UpdateVoice
		update.FileID = message.Voice.FileID
	case message.Animation != nil:
		update.Kind = gateway.UpdateAnimation
		update.FileID = message.Animation.FileID
	case message.Document != nil:
		update.Kind = gateway.UpdateDocument
		update.FileID = message.Document.FileID
	case message.Audio != nil:
		update.Kind = gateway.UpdateAudio
		update.FileID = message.Audio.FileID
	case message.Sticker != nil:
		update.Kind = gateway.UpdateSticker
		update.FileID = message.Sticker.FileID
	case message.VideoNote != nil:
		update.Kind = gateway.UpdateVideoNote
		update.FileID = message.VideoNote.FileID
	case message.Text != "":
		update.Kind = gateway.UpdateText
	default:
		return gateway.Update{}, false
	}

	return update, true
}

func toChat(chat *tgbotapi.Chat) gateway.Chat {
	if chat == nil {
		return gateway.Chat{}
	}

	title := chat.Title
	if title == "" {
		title = chat.UserName
	}

	return gateway.Chat{ID: chat.ID, Type: chat.Type, Title: title}
}

func toUser(user *tgbotapi.User) gateway.User {
	return gateway.User{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Username:     user.UserName,
		LanguageCode: user.LanguageCode,
		IsBot:        user.IsBot,
	}
}

func buildChattable(msg gateway.Outgoing) (tgbotapi.Chattable, error) {
	kind := msg.Kind
	if kind == "" {
		kind = gateway.MediaText
	}

	markup := keyboard(msg.Buttons)

	if kind == gateway.MediaText {
		config := tgbotapi.NewMessage(msg.ChatID, msg.Text)
		config.ParseMode = msg.ParseMode

		if markup != nil {
			config.ReplyMarkup = *markup
		}

		return config, nil
	}

	if msg.Media.Empty() {
		return nil, fmt.Errorf("%s message without media source", kind)
	}

	file := fileData(msg.Media)

	switch kind {
	case gateway.MediaPhoto:
		config := tgbotapi.NewPhoto(msg.ChatID, file)
		config.Caption, config.ParseMode = msg.Text, msg.ParseMode
		config.ReplyMarkup = replyMarkup(markup)

		return config, nil
	case gateway.MediaVideo:
		config := tgbotapi.NewVideo(msg.ChatID, file)
		config.Caption, config.ParseMode = msg.Text, msg.ParseMode
		config.ReplyMarkup = replyMarkup(markup)

		return config, nil
	case gateway.MediaVoice:
		config := tgbotapi.NewVoice(msg.ChatID, file)
		config.Caption, config.ParseMode = msg.Text, msg.ParseMode
		config.ReplyMarkup = replyMarkup(markup)

		return config, nil
	case gateway.MediaDocument:
		config := tgbotapi.NewDocument(msg.ChatID, file)
		config.Caption, config.ParseMode = msg.Text, msg.ParseMode
		config.ReplyMarkup = replyMarkup(markup)

		return config, nil
	case gateway.MediaAudio:
		config := tgbotapi.NewAudio(msg.ChatID, file)
		config.Caption, config.ParseMode = msg.Text, msg.ParseMode
		config.ReplyMarkup = replyMarkup(markup)

		return config, nil
	case gateway.MediaAnimation:
		config := tgbotapi.NewAnimation(msg.ChatID, file)
		config.Caption, config.ParseMode = msg.Text, msg.ParseMode
		config.ReplyMarkup = replyMarkup(markup)

		return config, nil
	default:
		return nil, fmt.Errorf("unsupported message kind %q", kind)
	}
}

func fileData(media *gateway.Media) tgbotapi.RequestFileData {
	switch {
	case media.Reader != nil:
		return tgbotapi.FileReader{Name: media.Name, Reader: media.Reader}
	case media.URL != "":
		return tgbotapi.FileURL(media.URL)
	default:
		return tgbotapi.FileID(media.FileID)
	}
}

func keyboard(rows [][]gateway.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))

	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))

		for _, button := range row {
			if button.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(button.Text, button.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
			}
		}

		keyboardRows = append(keyboardRows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(keyboardRows...)

	return &markup
}

func replyMarkup(markup *tgbotapi.InlineKeyboardMarkup) any {
	if markup == nil {
		return nil
	}

	return *markup
}

func sentFileID(message *tgbotapi.Message) string {
	switch {
	case len(message.Photo) > 0:
		return message.Photo[len(message.Photo)-1].FileID
	case message.Video != nil:
		return message.Video.FileID
	case message.Voice != nil:
		return message.Voice.FileID
	case message.Animation != nil:
		return message.Animation.FileID
	case message.Document != nil:
		return message.Document.FileID
	case message.Audio != nil:
		return message.Audio.FileID
	default:
		return ""
	}
}
