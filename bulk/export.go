package bulk

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"

	"github.com/bwmarrin/discordgo"
)

// BuildSummaryEmbed renders the per-status counts of a completed job.
func BuildSummaryEmbed(job *models.BulkVerificationJob, guildName string) *discordgo.MessageEmbed {
	counts := map[string]int{}
	for _, row := range job.StatusRows {
		counts[row.Status]++
	}

	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Bulk verification job #%d", job.JobID),
		Color:     0x00ff00,
		Timestamp: job.CompletedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Guild", Value: guildName, Inline: true},
			{Name: "Scope", Value: job.ScopeLabel, Inline: true},
			{Name: "Invoker", Value: fmt.Sprintf("<@%s>", job.InvokerID), Inline: true},
			{Name: "Main", Value: fmt.Sprintf("%d", counts[string(models.StatusMain)]), Inline: true},
			{Name: "Affiliate", Value: fmt.Sprintf("%d", counts[string(models.StatusAffiliate)]), Inline: true},
			{Name: "Non-member", Value: fmt.Sprintf("%d", counts[string(models.StatusNonMember)]), Inline: true},
			{Name: "Unknown", Value: fmt.Sprintf("%d", counts["unknown"]), Inline: true},
			{Name: "Errors", Value: fmt.Sprintf("%d", len(job.Errors)), Inline: true},
			{Name: "Duration", Value: job.CompletedAt.Sub(job.StartedAt).Round(time.Second).String(), Inline: true},
		},
	}
}

// BuildExport renders the full per-user result table as CSV.
func BuildExport(job *models.BulkVerificationJob) ([]byte, string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"user_id", "username", "handle", "status", "moniker", "last_checked", "error"}
	if err := w.Write(header); err != nil {
		return nil, "", fmt.Errorf("failed to write export header: %w", err)
	}
	for _, row := range job.StatusRows {
		record := []string{row.UserID, row.Username, row.Handle, row.Status, row.Moniker, row.LastChecked, row.Error}
		if err := w.Write(record); err != nil {
			return nil, "", fmt.Errorf("failed to write export row for user %s: %w", row.UserID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", fmt.Errorf("failed to flush export: %w", err)
	}

	filename := fmt.Sprintf("bulk_verification_%d_%s.csv", job.JobID, job.CompletedAt.UTC().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}
