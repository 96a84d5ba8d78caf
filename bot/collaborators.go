package bot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/bulk"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/database"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/scheduler"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// DiscordMemberResolver resolves guilds and members through the session,
// preferring the state cache and falling back to the REST API.
type DiscordMemberResolver struct {
	Session *discordgo.Session
}

func (r *DiscordMemberResolver) GuildName(guildID string) (string, error) {
	if g, err := r.Session.State.Guild(guildID); err == nil {
		return g.Name, nil
	}
	g, err := r.Session.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve guild %s: %w", guildID, err)
	}
	return g.Name, nil
}

func (r *DiscordMemberResolver) ResolveMember(guildID, userID string) (*bulk.Member, error) {
	m, err := r.Session.State.Member(guildID, userID)
	if err != nil {
		m, err = r.Session.GuildMember(guildID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve member %s: %w", userID, err)
		}
	}
	name := m.User.Username
	if m.Nick != "" {
		name = m.Nick
	}
	return &bulk.Member{ID: m.User.ID, Username: name}, nil
}

// DiscordDelivery posts bulk job results to the admin channel.
type DiscordDelivery struct {
	Session *discordgo.Session
}

func (d *DiscordDelivery) adminChannel() string {
	return viper.GetString("bot.adminChannelId")
}

// PostSummary sends the summary embed with the CSV export attached and
// returns the name of the channel it was posted to.
func (d *DiscordDelivery) PostSummary(guildID, invokerID, scopeLabel string, embed *discordgo.MessageEmbed, export []byte, filename string) (string, error) {
	channelID := d.adminChannel()
	if channelID == "" {
		return "", fmt.Errorf("bot.adminChannelId is not configured")
	}

	_, err := d.Session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> 批量核查已完成（%s）", invokerID, scopeLabel),
		Embeds:  []*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{
			{Name: filename, ContentType: "text/csv", Reader: bytes.NewReader(export)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to post summary: %w", err)
	}

	if ch, err := d.Session.Channel(channelID); err == nil {
		return ch.Name, nil
	}
	return channelID, nil
}

func (d *DiscordDelivery) NotifyProgress(invokerID string, jobID int64, processed, total int) error {
	channelID := d.adminChannel()
	if channelID == "" {
		return nil
	}
	_, err := d.Session.ChannelMessageSend(channelID,
		fmt.Sprintf("批量核查任务 #%d：已处理 %d/%d", jobID, processed, total))
	return err
}

func (d *DiscordDelivery) ReportError(invokerID string, jobID int64, jobErr error) {
	utils.Errorf("bulk", "job", "任务 #%d 失败: %v", jobID, jobErr)
	channelID := d.adminChannel()
	if channelID == "" {
		return
	}
	d.Session.ChannelMessageSend(channelID,
		fmt.Sprintf("<@%s> 批量核查任务 #%d 失败: %v", invokerID, jobID, jobErr))
}

// DiscordRemediation cleans up after a handle that no longer exists on RSI:
// the stored verification row is removed and the user is notified by DM.
type DiscordRemediation struct {
	Session *discordgo.Session
	DB      *database.VerificationDB
}

func (r *DiscordRemediation) HandleNotFound(ctx context.Context, userID, handle string) error {
	utils.Warnf("auto-recheck", "remediation", "用户 %s 的 handle %q 在 RSI 上已不存在，清除验证记录", userID, handle)

	if err := r.DB.DeleteUser(userID); err != nil {
		return fmt.Errorf("failed to clear verification record: %w", err)
	}

	if ch, err := r.Session.UserChannelCreate(userID); err == nil {
		r.Session.ChannelMessageSend(ch.ID, fmt.Sprintf(
			"你的 RSI handle **%s** 已无法在官网找到，验证状态已被清除。请重新进行验证。", handle))
	}
	return nil
}

// LoggingGuildSync stands in for the role-synchronization system. It reports
// which guilds a snapshot would be applied to; actual role mutation is owned
// by an external component.
type LoggingGuildSync struct {
	Session *discordgo.Session
}

func (s *LoggingGuildSync) Apply(ctx context.Context, snap *models.VerificationSnapshot, batchSize, maxConcurrency int) []scheduler.SyncResult {
	var results []scheduler.SyncResult
	for _, g := range s.Session.State.Guilds {
		utils.Infof("guild-sync", "apply", "guild %s: user %s -> %s", g.ID, snap.UserID, snap.Status)
		results = append(results, scheduler.SyncResult{GuildID: g.ID, Changed: false})
	}
	return results
}
