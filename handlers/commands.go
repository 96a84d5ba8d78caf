package handlers

import (
	"log"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/bulk"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/database"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/rsi"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/utils"

	"github.com/bwmarrin/discordgo"
)

// Deps are the pipeline pieces command handlers operate on.
type Deps struct {
	DB      *database.VerificationDB
	Service *rsi.Service
	Queue   *bulk.Queue
}

var deps *Deps

// Init wires the handler package to the pipeline. Must be called before the
// session starts dispatching interactions.
func Init(d *Deps) {
	deps = d
}

// CommandDispatcher is the central handler for all application command
// interactions. It performs permission checks and then dispatches the
// interaction to the appropriate handler.
func CommandDispatcher(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	auth, err := utils.NewAuth()
	if err != nil {
		log.Printf("Failed to create auth instance: %v", err)
		return
	}

	commandPermissions := map[string]string{
		"bulkcheck":   "admin",
		"recheckuser": "admin",
		"ping":        "guest",
	}

	commandName := i.ApplicationCommandData().Name
	requiredLevel, ok := commandPermissions[commandName]

	if ok {
		if !auth.CheckPermission(i, requiredLevel) {
			s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: "🚫 你没有权限执行此命令",
					Flags:   discordgo.MessageFlagsEphemeral,
				},
			})
			return
		}
	}

	switch commandName {
	case "bulkcheck":
		HandleBulkCheck(s, i)
	case "recheckuser":
		HandleRecheckUser(s, i)
	case "ping":
		HandlePing(s, i)
	default:
		s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "🚫内部错误：Unknown command.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
	}
}

// HandlePing handles the logic for the /ping command.
func HandlePing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Pong!",
		},
	})
}
