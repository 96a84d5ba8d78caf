package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/database"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/rsi"

	"github.com/bwmarrin/discordgo"
)

// HandleBulkCheck handles the logic for the /bulkcheck command: it builds the
// target list and enqueues a bulk verification job.
func HandleBulkCheck(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	optionMap := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		optionMap[opt.Name] = opt
	}

	scope := "all"
	if opt, ok := optionMap["scope"]; ok {
		scope = opt.StringValue()
	}
	var idList string
	if opt, ok := optionMap["user_ids"]; ok {
		idList = opt.StringValue()
	}
	recheckRSI := false
	if opt, ok := optionMap["recheck_rsi"]; ok {
		recheckRSI = opt.BoolValue()
	}

	var (
		targets    []string
		scopeLabel string
	)
	switch scope {
	case "ids":
		targets = splitUserIDs(idList)
		scopeLabel = fmt.Sprintf("%d explicitly listed user(s)", len(targets))
		if len(targets) == 0 {
			respondEphemeral(s, i, "Error: scope `ids` requires a non-empty `user_ids` list.")
			return
		}
	default:
		ids, err := deps.DB.AllUserIDs()
		if err != nil {
			log.Printf("bulkcheck: failed to list stored users: %v", err)
			respondEphemeral(s, i, "Error: could not load the stored user list.")
			return
		}
		targets = ids
		scopeLabel = fmt.Sprintf("all %d user(s) with a stored verification record", len(ids))
		if len(targets) == 0 {
			respondEphemeral(s, i, "No users have a stored verification record yet.")
			return
		}
	}

	job, err := deps.Queue.Enqueue(i.GuildID, targets, i.Member.User.ID, scopeLabel, recheckRSI)
	if err != nil {
		respondEphemeral(s, i, fmt.Sprintf("Error: could not enqueue the job: %v", err))
		return
	}

	respondEphemeral(s, i, fmt.Sprintf(
		"已加入队列：批量核查任务 **#%d**（%s，recheck_rsi=%v），当前排队任务数 %d。",
		job.JobID, scopeLabel, recheckRSI, deps.Queue.Pending()))
}

// HandleRecheckUser handles the logic for the /recheckuser command: one user,
// forced live fetch, result persisted and reported ephemerally.
func HandleRecheckUser(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		respondEphemeral(s, i, "Error: a target user is required.")
		return
	}
	target := options[0].UserValue(s)
	if target == nil {
		respondEphemeral(s, i, "Error: could not resolve the target user.")
		return
	}

	// Respond to the interaction immediately; the fetch may wait on throttling.
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("正在重新核查 <@%s> 的 RSI 验证状态…", target.ID),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		stored, err := deps.DB.LoadSnapshot(target.ID)
		if err != nil {
			followUp(s, i, fmt.Sprintf("Error: could not load the stored record: %v", err))
			return
		}
		handle := ""
		if stored != nil {
			handle = stored.Handle
		}

		snap, err := deps.Service.GetSnapshot(ctx, target.ID, handle, rsi.Options{ForceRefresh: true})
		if err != nil {
			if errors.Is(err, rsi.ErrHandleNotFound) {
				followUp(s, i, fmt.Sprintf("Handle **%s** 在 RSI 上已不存在。", handle))
				return
			}
			followUp(s, i, fmt.Sprintf("Error: recheck failed: %v", err))
			return
		}
		if snap.Error != "" {
			followUp(s, i, fmt.Sprintf("核查降级：%s（状态 **%s**，结果未持久化）", snap.Error, snap.Status))
			return
		}

		if err := deps.DB.StoreSnapshot(snap); err != nil {
			if errors.Is(err, database.ErrHandleConflict) {
				followUp(s, i, fmt.Sprintf("Error: handle **%s** 已被其他用户绑定。", snap.Handle))
				return
			}
			followUp(s, i, fmt.Sprintf("Error: could not persist the snapshot: %v", err))
			return
		}

		followUp(s, i, fmt.Sprintf("<@%s> 的验证状态：**%s**（handle: %s）", target.ID, snap.Status, snap.Handle))
	}()
}

// splitUserIDs parses a free-form ID list: spaces, commas and <@…> mentions.
func splitUserIDs(raw string) []string {
	raw = strings.NewReplacer(",", " ", "<@!", " ", "<@", " ", ">", " ").Replace(raw)
	var ids []string
	for _, f := range strings.Fields(raw) {
		if isSnowflake(f) {
			ids = append(ids, f)
		}
	}
	return ids
}

func isSnowflake(s string) bool {
	if len(s) < 15 || len(s) > 21 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Printf("Failed to send follow-up message: %v", err)
	}
}
