package main

import (
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/bot"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/command"
)

func main() {
	commands := []bot.Command{
		&command.BulkCheckCommand{},
		&command.RecheckUserCommand{},
		&command.PingCommand{},
	}
	bot.Run(commands)
}
