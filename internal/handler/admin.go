package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"learnquest/internal/repository"
	"learnquest/internal/service"
)

// AdminHandler handles staff-only commands.
type AdminHandler struct {
	xp          *service.XPService
	resets      *service.ResetService
	submissions *service.SubmissionService
	students    *repository.StudentRepository
	content     *repository.ContentRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	xp *service.XPService,
	resets *service.ResetService,
	submissions *service.SubmissionService,
	students *repository.StudentRepository,
	content *repository.ContentRepository,
) *AdminHandler {
	return &AdminHandler{
		xp:          xp,
		resets:      resets,
		submissions: submissions,
		students:    students,
		content:     content,
	}
}

func logAdmin(c tele.Context, operation string) *zerolog.Event {
	ev := log.Info().Str("operation", operation)
	if sender := c.Sender(); sender != nil {
		ev = ev.Int64("admin_id", sender.ID)
	}
	return ev
}

// HandleAward handles /award <studentId> <amount> <reason...>.
func (h *AdminHandler) HandleAward(c tele.Context) error {
	args := c.Args()
	ids, err := parseIDs(args, 1)
	if err != nil || len(args) < 3 {
		return c.Reply("❌ Usage: /award <studentId> <amount> <reason>")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Reply("❌ Amount must be a whole number")
	}
	reason := strings.Join(args[2:], " ")

	res, err := h.xp.AwardXP(context.Background(), ids[0], amount, reason)
	switch {
	case errors.Is(err, service.ErrInvalidAward):
		return c.Reply(fmt.Sprintf("❌ %v", err))
	case errors.Is(err, repository.ErrStudentNotFound):
		return c.Reply("❌ Student not found")
	case err != nil:
		log.Error().Err(err).Int64("student_id", ids[0]).Msg("Admin award failed")
		return c.Reply("❌ Award failed, please try again")
	}

	logAdmin(c, "award").
		Int64("student_id", ids[0]).
		Int64("amount", amount).
		Int64("credited", res.XPAwarded).
		Msg("Admin operation executed")

	msg := fmt.Sprintf("✅ Student %d: +%d XP (%s)", ids[0], res.XPAwarded, reason)
	if res.LeveledUp {
		msg += fmt.Sprintf("\n⭐ Reached level %d", res.NewLevel)
	}
	for _, a := range res.Unlocked {
		msg += fmt.Sprintf("\n🏅 Unlocked: %s", a.Title)
	}
	return c.Reply(msg)
}

// HandleResetProgress handles /reset_progress <studentId>.
func (h *AdminHandler) HandleResetProgress(c tele.Context) error {
	ids, err := parseIDs(c.Args(), 1)
	if err != nil {
		return c.Reply("❌ Usage: /reset_progress <studentId>")
	}

	if err := h.resets.ResetStudentProgress(context.Background(), ids[0]); err != nil {
		log.Error().Err(err).Int64("student_id", ids[0]).Msg("Admin reset failed")
		return c.Reply("❌ Reset failed, please try again")
	}

	logAdmin(c, "reset_progress").Int64("student_id", ids[0]).Msg("Admin operation executed")
	return c.Reply(fmt.Sprintf("♻️ Progress of student %d was reset", ids[0]))
}

// HandleGrade handles /grade <studentId> <activityId> <grade> [GRADED|RAG|HA].
func (h *AdminHandler) HandleGrade(c tele.Context) error {
	args := c.Args()
	ids, err := parseIDs(args, 2)
	if err != nil || len(args) < 3 {
		return c.Reply("❌ Usage: /grade <studentId> <activityId> <grade> [GRADED|RAG|HA]")
	}
	grade, err := strconv.ParseFloat(args[2], 64)
	if err != nil || grade < 0 || grade > service.MaxGrade {
		return c.Reply(fmt.Sprintf("❌ Grade must be a number between 0 and %.2f", service.MaxGrade))
	}
	kind := service.SubmissionGraded
	if len(args) > 3 {
		kind = service.ParseSubmissionKind(strings.ToUpper(args[3]))
	}

	res, err := h.submissions.GradeSubmission(context.Background(), ids[0], ids[1], kind, grade)
	switch {
	case errors.Is(err, service.ErrInvalidGrade):
		return c.Reply(fmt.Sprintf("❌ %v", err))
	case errors.Is(err, service.ErrUnimplemented):
		return c.Reply(fmt.Sprintf("🚧 %s submissions cannot be evaluated yet", kind))
	case errors.Is(err, repository.ErrActivityNotFound):
		return c.Reply("❌ Activity not found")
	case err != nil:
		log.Error().Err(err).Int64("student_id", ids[0]).Int64("activity_id", ids[1]).Msg("Grading failed")
		return c.Reply("❌ Grading failed, please try again")
	}

	logAdmin(c, "grade").
		Int64("student_id", ids[0]).
		Int64("activity_id", ids[1]).
		Float64("grade", grade).
		Msg("Admin operation executed")

	msg := fmt.Sprintf("📝 Submission #%d recorded. Level #%d is at %d%%", res.SubmissionID, res.Level.LevelID, res.Level.PercentComplete)
	if res.Level.FirstCompletion {
		msg += "\n✅ Level completed"
	}
	return c.Reply(msg)
}

// HandleAssign handles /assign <studentId> <moduleId>. The module's unlock
// clock starts now.
func (h *AdminHandler) HandleAssign(c tele.Context) error {
	ids, err := parseIDs(c.Args(), 2)
	if err != nil {
		return c.Reply("❌ Usage: /assign <studentId> <moduleId>")
	}

	if err := h.content.AssignModule(context.Background(), ids[0], ids[1], time.Now()); err != nil {
		log.Error().Err(err).Int64("student_id", ids[0]).Int64("module_id", ids[1]).Msg("Assignment failed")
		return c.Reply("❌ Assignment failed, check the ids")
	}

	logAdmin(c, "assign").Int64("student_id", ids[0]).Int64("module_id", ids[1]).Msg("Admin operation executed")
	return c.Reply(fmt.Sprintf("📚 Module %d assigned to student %d", ids[1], ids[0]))
}

// HandleAttendance handles /attendance <studentId> <levelId> <yes|no>.
func (h *AdminHandler) HandleAttendance(c tele.Context) error {
	args := c.Args()
	ids, err := parseIDs(args, 2)
	if err != nil || len(args) < 3 {
		return c.Reply("❌ Usage: /attendance <studentId> <levelId> <yes|no>")
	}
	attended, ok := parseYesNo(args[2])
	if !ok {
		return c.Reply("❌ Attendance must be yes or no")
	}

	if err := h.content.RecordAttendance(context.Background(), ids[0], ids[1], attended, time.Now()); err != nil {
		log.Error().Err(err).Int64("student_id", ids[0]).Int64("level_id", ids[1]).Msg("Attendance failed")
		return c.Reply("❌ Could not record attendance, check the ids")
	}

	logAdmin(c, "attendance").
		Int64("student_id", ids[0]).
		Int64("level_id", ids[1]).
		Bool("attended", attended).
		Msg("Admin operation executed")
	return c.Reply("🗓️ Attendance recorded")
}

// HandleLockLevel handles /lock_level <levelId> <lock|unlock|auto>.
func (h *AdminHandler) HandleLockLevel(c tele.Context) error {
	args := c.Args()
	ids, err := parseIDs(args, 1)
	if err != nil || len(args) < 2 {
		return c.Reply("❌ Usage: /lock_level <levelId> <lock|unlock|auto>")
	}
	override, ok := parseOverride(args[1])
	if !ok {
		return c.Reply("❌ Mode must be lock, unlock or auto")
	}

	err = h.content.SetLockOverride(context.Background(), ids[0], override)
	switch {
	case errors.Is(err, repository.ErrLevelNotFound):
		return c.Reply("❌ Level not found")
	case err != nil:
		log.Error().Err(err).Int64("level_id", ids[0]).Msg("Lock override failed")
		return c.Reply("❌ Could not change the level lock, please try again")
	}

	logAdmin(c, "lock_level").Int64("level_id", ids[0]).Str("mode", args[1]).Msg("Admin operation executed")
	return c.Reply(fmt.Sprintf("🔧 Level #%d set to %s", ids[0], strings.ToLower(args[1])))
}

// HandleSetPlan handles /set_plan <studentId> <planId>.
func (h *AdminHandler) HandleSetPlan(c tele.Context) error {
	ids, err := parseIDs(c.Args(), 2)
	if err != nil {
		return c.Reply("❌ Usage: /set_plan <studentId> <planId>")
	}

	err = h.students.SetPlan(context.Background(), ids[0], int(ids[1]))
	switch {
	case errors.Is(err, repository.ErrStudentNotFound):
		return c.Reply("❌ Student not found")
	case err != nil:
		log.Error().Err(err).Int64("student_id", ids[0]).Msg("Set plan failed")
		return c.Reply("❌ Could not change the plan, please try again")
	}

	logAdmin(c, "set_plan").Int64("student_id", ids[0]).Int64("plan_id", ids[1]).Msg("Admin operation executed")
	return c.Reply(fmt.Sprintf("💳 Student %d is now on plan %d", ids[0], ids[1]))
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "yes", "y", "true", "1":
		return true, true
	case "no", "n", "false", "0":
		return false, true
	default:
		return false, false
	}
}

// parseOverride maps an admin mode to the stored nullable lock flag.
func parseOverride(s string) (*bool, bool) {
	locked, unlocked := true, false
	switch strings.ToLower(s) {
	case "lock":
		return &locked, true
	case "unlock":
		return &unlocked, true
	case "auto":
		return nil, true
	default:
		return nil, false
	}
}
