package message

import "github.com/dukex/botflow/pkg/gateway"

// Config is the decoded action-message config.
type Config struct {
	Type      string           `mapstructure:"type"      validate:"omitempty,oneof=text photo video voice audio document animation"`
	Text      string           `mapstructure:"text"`
	Caption   string           `mapstructure:"caption"`
	MediaURL  string           `mapstructure:"mediaUrl"`
	FileID    string           `mapstructure:"fileId"`
	FilePath  string           `mapstructure:"filePath"`
	ParseMode string           `mapstructure:"parseMode" validate:"omitempty,oneof=HTML Markdown MarkdownV2"`
	Buttons   [][]ButtonConfig `mapstructure:"buttons"   validate:"dive,dive"`
}

// ButtonConfig is one inline button.
type ButtonConfig struct {
	Text         string `mapstructure:"text"         validate:"required"`
	CallbackData string `mapstructure:"callbackData" validate:"required_without=URL,max=64"`
	URL          string `mapstructure:"url"          validate:"omitempty,url"`
}

// Kind returns the requested media kind, text when unset.
func (c *Config) Kind() gateway.MediaKind {
	if c.Type == "" {
		return gateway.MediaText
	}

	return gateway.MediaKind(c.Type)
}

// Body returns the text for the requested kind. Media prefer the caption.
func (c *Config) Body() string {
	if c.Kind() == gateway.MediaText {
		if c.Text != "" {
			return c.Text
		}

		return c.Caption
	}

	if c.Caption != "" {
		return c.Caption
	}

	return c.Text
}

func (c *Config) buttons() [][]gateway.Button {
	if len(c.Buttons) == 0 {
		return nil
	}

	rows := make([][]gateway.Button, 0, len(c.Buttons))

	for _, row := range c.Buttons {
		buttons := make([]gateway.Button, 0, len(row))
		for _, button := range row {
			buttons = append(buttons, gateway.Button{Text: button.Text, CallbackData: button.CallbackData, URL: button.URL})
		}

		rows = append(rows, buttons)
	}

	return rows
}
