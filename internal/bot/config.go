package bot

// BotConfig represents the configuration for the bot.
type BotConfig struct {
	// ChatID is the chat reminders are delivered to. Zero means "bind to
	// the first chat that sends /start".
	ChatID int64
	// MaxListItems caps how many topics a single /list message shows.
	MaxListItems int
}

// DefaultConfig returns the default bot configuration.
func DefaultConfig() *BotConfig {
	return &BotConfig{
		MaxListItems: 25,
	}
}
