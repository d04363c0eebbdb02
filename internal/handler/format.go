// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"learnquest/internal/model"
	"learnquest/internal/service"
)

const (
	separator      = "━━━━━━━━━━━━━━━"
	leaderboardTop = 10
)

var medals = []string{"🥇", "🥈", "🥉"}

var errUsage = errors.New("usage")

// senderName returns the sender's username, falling back to the first name.
func senderName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// parseIDs parses the first n arguments as positive integer ids.
func parseIDs(args []string, n int) ([]int64, error) {
	if len(args) < n {
		return nil, errUsage
	}
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		id, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("argument %d must be a positive number", i+1)
		}
		ids[i] = id
	}
	return ids, nil
}

func progressBar(percent int) string {
	const width = 10
	filled := percent * width / 100
	filled = max(0, min(width, filled))
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

func formatStats(s *service.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Your progress\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "⭐ Level %d  (%d XP)\n", s.CurrentLevel, s.XPTotal)
	fmt.Fprintf(&b, "%s %d%%  next at %d XP\n", progressBar(s.LevelProgressPercent), s.LevelProgressPercent, s.XPForNextLevel)
	fmt.Fprintf(&b, "💎 Points: %d\n", s.AvailablePoints)
	fmt.Fprintf(&b, "🔥 Streak: %d days\n", s.StreakDays)

	if len(s.Achievements) > 0 {
		b.WriteString(separator + "\n🏅 Achievements\n")
		for _, a := range s.Achievements {
			fmt.Fprintf(&b, "• %s\n", a.Title)
		}
	}
	if len(s.RecentActivity) > 0 {
		b.WriteString(separator + "\n🕒 Recent\n")
		for _, e := range s.RecentActivity {
			fmt.Fprintf(&b, "+%d %s\n", e.Amount, e.Reason)
		}
	}
	b.WriteString(separator)
	return b.String()
}

func formatMissions(views []*model.MissionView) string {
	if len(views) == 0 {
		return "🎯 No active missions"
	}
	var b strings.Builder
	b.WriteString("🎯 Missions\n" + separator + "\n")
	for _, v := range views {
		m := v.Mission
		status := fmt.Sprintf("0/%d", m.TargetValue)
		if p := v.Progress; p != nil {
			switch {
			case p.RewardClaimed:
				status = "✅ claimed"
			case p.Completed:
				status = fmt.Sprintf("🎁 ready, /claim %d", m.ID)
			default:
				status = fmt.Sprintf("%d/%d", p.CurrentProgress, m.TargetValue)
			}
		}
		kind := "weekly"
		if m.IsDaily {
			kind = "daily"
		}
		fmt.Fprintf(&b, "#%d %s (%s, %d XP): %s\n", m.ID, m.Title, kind, m.XPReward, status)
	}
	b.WriteString(separator)
	return b.String()
}

func levelState(ls *service.LevelStatus) string {
	st := ls.Status
	switch {
	case ls.Completed:
		return "✅ completed"
	case st.IsManuallyBlocked:
		return "⛔ locked by staff"
	case st.IsAvailable:
		return fmt.Sprintf("🔓 open, %d%%", ls.PercentComplete)
	case st.IsStuck:
		return "⏳ finish the previous level"
	default:
		return fmt.Sprintf("🔒 opens in %d days", st.DaysRemaining)
	}
}

func formatLevels(moduleID int64, levels []*service.LevelStatus) string {
	if len(levels) == 0 {
		return fmt.Sprintf("📚 Module %d has no levels", moduleID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📚 Module %d\n%s\n", moduleID, separator)
	for _, ls := range levels {
		fmt.Fprintf(&b, "%d. %s (#%d): %s\n", ls.Level.Order, ls.Level.Title, ls.Level.ID, levelState(ls))
	}
	b.WriteString(separator)
	return b.String()
}

func formatRanking(title string, entries []*model.RankEntry) string {
	var b strings.Builder
	b.WriteString(title + "\n" + separator + "\n")
	if len(entries) == 0 {
		b.WriteString("No data yet\n")
	}
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := e.Username
		if name == "" {
			name = fmt.Sprintf("student%d", e.StudentID)
		}
		fmt.Fprintf(&b, "%s %s: %d XP (lvl %d)\n", rank, name, e.XP, e.Level)
	}
	b.WriteString(separator)
	return b.String()
}
