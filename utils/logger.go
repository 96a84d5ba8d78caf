package utils

import (
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

var (
	session   *discordgo.Session
	channelID string
)

// InitLogger initializes the admin-channel logger with a Discord session.
// Operator-visible events (verification results, remediation, job outcomes)
// are mirrored to the channel named by bot.adminChannelId.
func InitLogger(s *discordgo.Session) {
	session = s
	channelID = viper.GetString("bot.adminChannelId")
	if channelID == "" {
		log.Println("Warning: bot.adminChannelId is not set. Logging to channel is disabled.")
	}
}

// Log writes to the process log and, when configured, sends an embed to the
// admin channel.
func Log(level, module, operation, details string) {
	log.Printf("[%s] %s/%s: %s", level, module, operation, details)
	if session == nil || channelID == "" {
		return
	}

	color := ColorInfo
	switch level {
	case "WARN":
		color = ColorWarn
	case "ERROR":
		color = ColorError
	}

	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", level),
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "模块", Value: module, Inline: true},
			{Name: "操作", Value: operation, Inline: true},
			{Name: "附加信息", Value: details},
		},
	}

	if _, err := session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		log.Printf("Error sending log message to Discord: %v", err)
	}
}

// Infof logs an informational message with formatting.
func Infof(module, operation, format string, args ...any) {
	Log("INFO", module, operation, fmt.Sprintf(format, args...))
}

// Warnf logs a warning with formatting.
func Warnf(module, operation, format string, args ...any) {
	Log("WARN", module, operation, fmt.Sprintf(format, args...))
}

// Errorf logs an error with formatting.
func Errorf(module, operation, format string, args ...any) {
	Log("ERROR", module, operation, fmt.Sprintf(format, args...))
}
