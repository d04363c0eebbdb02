package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"learnquest/internal/model"
)

// Callback data prefixes.
const (
	CallbackMissionClaim   = "mission_claim:" // mission_claim:42
	CallbackMissionRefresh = "mission_refresh"
)

// claimable reports whether a mission reward is ready to be claimed.
func claimable(v *model.MissionView) bool {
	return v.Progress != nil && v.Progress.Completed && !v.Progress.RewardClaimed
}

// buildMissionPanel returns claim buttons for every claimable mission, two per
// row, followed by a refresh button.
func buildMissionPanel(views []*model.MissionView) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	var current []tele.Btn
	for _, v := range views {
		if !claimable(v) {
			continue
		}
		current = append(current, markup.Data(
			fmt.Sprintf("🎁 %s (+%d)", v.Mission.Title, v.Mission.XPReward),
			CallbackMissionClaim+strconv.FormatInt(v.Mission.ID, 10),
		))
		if len(current) == 2 {
			rows = append(rows, markup.Row(current...))
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, markup.Row(current...))
	}
	rows = append(rows, markup.Row(markup.Data("🔄 Refresh", CallbackMissionRefresh)))

	markup.Inline(rows...)
	return markup
}

// callbackData strips the \f prefix telebot adds to button payloads.
func callbackData(raw string) string {
	return strings.TrimPrefix(raw, "\f")
}

// parseClaimCallback extracts the mission id of a claim button.
func parseClaimCallback(data string) (int64, bool) {
	rest, ok := strings.CutPrefix(callbackData(data), CallbackMissionClaim)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
