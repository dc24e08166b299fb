package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdHello      = "hello"
	cmdPing       = "ping"
	cmdSetChannel = "setchannel"
	cmdEnable     = "enable"
	cmdDisable    = "disable"
	cmdFetch      = "fetch"
	cmdStatus     = "status"
)

// Commands is the command list published to Telegram.
var Commands = []tgbotapi.BotCommand{
	{Command: cmdHello, Description: "Say hello to the bot"},
	{Command: cmdPing, Description: "Check the bot's response time"},
	{Command: cmdSetChannel, Description: "Post events to this chat (or the given chat ID)"},
	{Command: cmdEnable, Description: "Post events every week"},
	{Command: cmdDisable, Description: "Stop posting events every week"},
	{Command: cmdFetch, Description: "Post the events of the next 7 days right now"},
	{Command: cmdStatus, Description: "Show the configuration of this chat"},
}

// RegisterCommands publishes the command list so clients can autocomplete it.
func RegisterCommands(api API) error {
	if _, err := api.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		return fmt.Errorf("set my commands: %w", err)
	}
	return nil
}
