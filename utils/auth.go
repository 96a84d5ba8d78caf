package utils

import (
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// Auth provides methods for authorization checks on slash commands.
type Auth struct {
	config models.CommandsConfig
}

// NewAuth creates a new Auth instance from the loaded configuration.
func NewAuth() (*Auth, error) {
	var commandsConfig models.CommandsConfig
	if err := viper.UnmarshalKey("commands", &commandsConfig); err != nil {
		return nil, err
	}
	return &Auth{config: commandsConfig}, nil
}

// IsDeveloper checks if a user is a developer.
func (a *Auth) IsDeveloper(userID string) bool {
	for _, devID := range a.config.Auth.Developers {
		if userID == devID {
			return true
		}
	}
	return false
}

// IsAdmin checks if a member carries one of the configured admin roles.
func (a *Auth) IsAdmin(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	for _, adminRoleID := range a.config.Auth.AdminsRoles {
		for _, userRoleID := range member.Roles {
			if userRoleID == adminRoleID {
				return true
			}
		}
	}
	return false
}

// CheckPermission checks if the interaction's invoker has the required level.
func (a *Auth) CheckPermission(i *discordgo.InteractionCreate, requiredLevel string) bool {
	if i.Member == nil || i.Member.User == nil {
		return false
	}
	switch requiredLevel {
	case "developer":
		return a.IsDeveloper(i.Member.User.ID)
	case "admin":
		return a.IsDeveloper(i.Member.User.ID) || a.IsAdmin(i.Member)
	case "guest":
		return true // Guests are allowed
	default:
		return false
	}
}
