package command

import "github.com/bwmarrin/discordgo"

// BulkCheckCommand defines the structure for the /bulkcheck command.
type BulkCheckCommand struct{}

// Definition returns the application command definition.
func (c *BulkCheckCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "bulkcheck",
		Description: "Queue a bulk re-verification of members",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "scope",
				Description: "How to select the target users",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{
						Name:  "All stored users",
						Value: "all",
					},
					{
						Name:  "Explicit ID list",
						Value: "ids",
					},
				},
			},
			{
				Name:        "user_ids",
				Description: "User IDs or mentions (required for scope: ids)",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    false,
			},
			{
				Name:        "recheck_rsi",
				Description: "Also re-fetch live RSI snapshots instead of reading stored ones",
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Required:    false,
			},
		},
	}
}

// RecheckUserCommand defines the structure for the /recheckuser command.
type RecheckUserCommand struct{}

// Definition returns the application command definition.
func (c *RecheckUserCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "recheckuser",
		Description: "Force a live re-verification of one user",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "user",
				Description: "The user to re-verify",
				Type:        discordgo.ApplicationCommandOptionUser,
				Required:    true,
			},
		},
	}
}

// PingCommand defines the structure for the /ping command.
type PingCommand struct{}

// Definition returns the application command definition.
func (c *PingCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "ping",
		Description: "Responds with Pong!",
	}
}
