package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"learnquest/internal/model"
	"learnquest/internal/pkg/lock"
	"learnquest/internal/repository"
	"learnquest/internal/service"
)

// ProgressHandler handles the student-facing progression commands.
type ProgressHandler struct {
	students *service.StudentService
	streaks  *service.StreakService
	stats    *service.StatsService
	missions *service.MissionService
	levels   *service.LevelService
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(
	students *service.StudentService,
	streaks *service.StreakService,
	stats *service.StatsService,
	missions *service.MissionService,
	levels *service.LevelService,
) *ProgressHandler {
	return &ProgressHandler{
		students: students,
		streaks:  streaks,
		stats:    stats,
		missions: missions,
		levels:   levels,
	}
}

// student resolves the sender to a student profile, creating one on first use.
func (h *ProgressHandler) student(ctx context.Context, c tele.Context) (*model.Student, bool, error) {
	sender := c.Sender()
	if sender == nil {
		return nil, false, errUsage
	}
	return h.students.EnsureStudent(ctx, sender.ID, senderName(sender))
}

// HandleStart handles /start.
func (h *ProgressHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	st, created, err := h.student(ctx, c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to ensure student")
		return c.Reply("❌ Could not load your profile, please try again")
	}

	greeting := fmt.Sprintf("👋 Welcome back, %s!", st.Username)
	if created {
		greeting = fmt.Sprintf("🎉 Welcome, %s! Your student id is %d.", st.Username, st.ID)
	}
	return c.Reply(greeting + "\n\n" +
		"Commands:\n" +
		"/checkin - daily check-in\n" +
		"/stats - your level, XP and achievements\n" +
		"/missions - mission progress\n" +
		"/claim <id> - claim a mission reward\n" +
		"/levels <moduleId> - level availability\n" +
		"/recalc <levelId> - recalculate a level\n" +
		"/top - all-time leaderboard\n" +
		"/weekly_top - this week's leaderboard")
}

// HandleCheckin handles /checkin.
func (h *ProgressHandler) HandleCheckin(c tele.Context) error {
	ctx := context.Background()
	st, _, err := h.student(ctx, c)
	if err != nil {
		return c.Reply("❌ Could not load your profile, please try again")
	}

	res, err := h.streaks.UpdateStreak(ctx, st.ID)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return c.Reply("⏳ Busy, please try again in a moment")
		}
		log.Error().Err(err).Int64("student_id", st.ID).Msg("Check-in failed")
		return c.Reply("❌ Check-in failed, please try again")
	}

	msg := fmt.Sprintf("🔥 Streak: %d days", res.Streak)
	if res.BonusXP > 0 {
		msg += fmt.Sprintf("\n🎁 Streak bonus: +%d XP", res.BonusXP)
	}
	return c.Reply(msg)
}

// HandleStats handles /stats.
func (h *ProgressHandler) HandleStats(c tele.Context) error {
	ctx := context.Background()
	st, _, err := h.student(ctx, c)
	if err != nil {
		return c.Reply("❌ Could not load your profile, please try again")
	}

	stats, err := h.stats.GetGamificationStats(ctx, st.ID)
	if err != nil {
		log.Error().Err(err).Int64("student_id", st.ID).Msg("Failed to load stats")
		return c.Reply("❌ Could not load your stats, please try again")
	}
	return c.Reply(formatStats(stats))
}

// HandleMissions handles /missions.
func (h *ProgressHandler) HandleMissions(c tele.Context) error {
	ctx := context.Background()
	st, _, err := h.student(ctx, c)
	if err != nil {
		return c.Reply("❌ Could not load your profile, please try again")
	}

	views, err := h.missions.ListMissions(ctx, st.ID)
	if err != nil {
		log.Error().Err(err).Int64("student_id", st.ID).Msg("Failed to list missions")
		return c.Reply("❌ Could not load missions, please try again")
	}
	return c.Reply(formatMissions(views), buildMissionPanel(views))
}

// HandleMissionCallback handles the claim and refresh buttons of the mission
// panel.
func (h *ProgressHandler) HandleMissionCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	ctx := context.Background()
	st, _, err := h.student(ctx, c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Could not load your profile", ShowAlert: true})
	}

	data := callbackData(cb.Data)
	response := &tele.CallbackResponse{}
	switch {
	case data == CallbackMissionRefresh:
	case strings.HasPrefix(data, CallbackMissionClaim):
		missionID, ok := parseClaimCallback(data)
		if !ok {
			return c.Respond(&tele.CallbackResponse{Text: "❌ Unknown mission"})
		}
		res, err := h.missions.ClaimMissionReward(ctx, st.ID, missionID)
		switch {
		case err != nil:
			log.Error().Err(err).Int64("student_id", st.ID).Int64("mission_id", missionID).Msg("Claim failed")
			return c.Respond(&tele.CallbackResponse{Text: "❌ Claim failed, please try again", ShowAlert: true})
		case res.Success:
			response.Text = fmt.Sprintf("🎁 +%d XP", res.XPAwarded)
		default:
			response.Text = "⚠️ Already claimed"
		}
	default:
		log.Debug().Str("data", data).Msg("Ignoring unknown callback")
		return c.Respond()
	}

	views, err := h.missions.ListMissions(ctx, st.ID)
	if err != nil {
		log.Error().Err(err).Int64("student_id", st.ID).Msg("Failed to list missions")
		return c.Respond(&tele.CallbackResponse{Text: "❌ Could not load missions", ShowAlert: true})
	}
	if err := c.Edit(formatMissions(views), buildMissionPanel(views)); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		log.Warn().Err(err).Msg("Failed to refresh mission panel")
	}
	return c.Respond(response)
}

// HandleClaim handles /claim <missionId>.
func (h *ProgressHandler) HandleClaim(c tele.Context) error {
	ids, err := parseIDs(c.Args(), 1)
	if err != nil {
		return c.Reply("❌ Usage: /claim <missionId>")
	}

	ctx := context.Background()
	st, _, err := h.student(ctx, c)
	if err != nil {
		return c.Reply("❌ Could not load your profile, please try again")
	}

	res, err := h.missions.ClaimMissionReward(ctx, st.ID, ids[0])
	if err != nil {
		log.Error().Err(err).Int64("student_id", st.ID).Int64("mission_id", ids[0]).Msg("Claim failed")
		return c.Reply("❌ Claim failed, please try again")
	}
	if !res.Success {
		return c.Reply("⚠️ Nothing to claim: the mission is not completed or was already claimed")
	}
	return c.Reply(fmt.Sprintf("🎁 Reward claimed: +%d XP", res.XPAwarded))
}

// HandleLevels handles /levels <moduleId>.
func (h *ProgressHandler) HandleLevels(c tele.Context) error {
	ids, err := parseIDs(c.Args(), 1)
	if err != nil {
		return c.Reply("❌ Usage: /levels <moduleId>")
	}

	ctx := context.Background()
	st, _, err := h.student(ctx, c)
	if err != nil {
		return c.Reply("❌ Could not load your profile, please try again")
	}

	levels, err := h.levels.GetStudentLevelProgress(ctx, st.ID, ids[0])
	if err != nil {
		log.Error().Err(err).Int64("student_id", st.ID).Int64("module_id", ids[0]).Msg("Failed to list levels")
		return c.Reply("❌ Could not load levels, please try again")
	}
	return c.Reply(formatLevels(ids[0], levels))
}

// HandleRecalc handles /recalc <levelId>.
func (h *ProgressHandler) HandleRecalc(c tele.Context) error {
	ids, err := parseIDs(c.Args(), 1)
	if err != nil {
		return c.Reply("❌ Usage: /recalc <levelId>")
	}

	ctx := context.Background()
	st, _, err := h.student(ctx, c)
	if err != nil {
		return c.Reply("❌ Could not load your profile, please try again")
	}

	res, err := h.levels.CalculateLevelProgress(ctx, st.ID, ids[0])
	switch {
	case errors.Is(err, repository.ErrLevelNotFound):
		return c.Reply("❌ Level not found")
	case err != nil:
		log.Error().Err(err).Int64("student_id", st.ID).Int64("level_id", ids[0]).Msg("Recalculation failed")
		return c.Reply("❌ Recalculation failed, please try again")
	}

	msg := fmt.Sprintf("📈 Level #%d: %d%%", res.LevelID, res.PercentComplete)
	if res.FirstCompletion {
		msg += "\n✅ Level completed!"
		if res.NextLevelID != 0 {
			msg += fmt.Sprintf("\n🔓 Level #%d unlocked", res.NextLevelID)
		}
	}
	if res.AttendanceRecovered {
		msg += "\n🩹 Missed session recovered"
	}
	return c.Reply(msg)
}
