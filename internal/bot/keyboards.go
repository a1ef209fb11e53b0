package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"scheduleai/internal/model"
)

const (
	cbActivityDeletePrefix  = "actdel:"
	cbRoutineOpenPrefix     = "open:"
	cbRoutineActivatePrefix = "activate:"
	cbRoutineDeletePrefix   = "rtdel:"
	cbEventRemovePrefix     = "evdel:"
	cbConfirm               = "confirm"
	cbCancel                = "cancel"
)

const (
	btnSkip             = "⏭️ Skip"
	btnYes              = "Yes"
	btnNo               = "No"
	btnConfirm          = "✅ Confirm"
	btnCancel           = "↩️ Cancel"
	btnCancelDialog     = "⏪ Stop input"
	menuLabelWeek       = "🗓 Week"
	menuLabelToday      = "☀️ Today"
	menuLabelActivities = "📋 Activities"
	menuLabelRoutines   = "📚 Routines"
	menuLabelHelp       = "ℹ️ Help"
)

const signedOutText = "🔒 You are signed out. Use /login to continue or /register to create an account."

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func confirmInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnConfirm, cbConfirm),
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbCancel),
		),
	)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelWeek),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelActivities),
			tgbotapi.NewKeyboardButton(menuLabelRoutines),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("high"),
			tgbotapi.NewKeyboardButton("medium"),
			tgbotapi.NewKeyboardButton("low"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// categoryKeyboard lays the known categories out two per row.
func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(model.Categories); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(string(model.Categories[i])))
		if i+1 < len(model.Categories) {
			row = append(row, tgbotapi.NewKeyboardButton(string(model.Categories[i+1])))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func activityListKeyboard(activities []model.Activity) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, a := range activities {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 #%d · %s", a.ID, shortTitle(a.Name, 24)), fmt.Sprintf("%s%d", cbActivityDeletePrefix, a.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func routineListKeyboard(routines []model.Routine) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range routines {
		if r.ID == nil {
			continue
		}
		id := *r.ID
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("📂 %s", shortTitle(r.Name, 18)), fmt.Sprintf("%s%d", cbRoutineOpenPrefix, id)),
		}
		if !r.IsActive {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("⭐ Activate", fmt.Sprintf("%s%d", cbRoutineActivatePrefix, id)))
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbRoutineDeletePrefix, id)))
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// eventRemoveKeyboard offers one delete button per event, five per row.
func eventRemoveKeyboard(sorted []model.ScheduleEvent) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, ev := range sorted {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 %d", i+1), cbEventRemovePrefix+ev.ID))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func normalizeInput(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}

func isSkipInput(text string) bool {
	value := normalizeInput(text)
	return value == "-" || value == normalizeInput(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := normalizeInput(text)
	return value == normalizeInput(btnConfirm) || value == "confirm" || value == "yes" || value == "y"
}

func isCancelInput(text string) bool {
	value := normalizeInput(text)
	return value == normalizeInput(btnCancel) || value == "cancel" || value == "no" || value == "n"
}

func isCancelDialogInput(text string) bool {
	value := normalizeInput(text)
	return value == normalizeInput(btnCancelDialog) || value == "stop"
}

func parseYesNo(text string) (bool, bool) {
	switch normalizeInput(text) {
	case "yes", "y":
		return true, true
	case "no", "n":
		return false, true
	default:
		return false, false
	}
}

func parseCallbackID(data, prefix string) (int, error) {
	raw := strings.TrimPrefix(data, prefix)
	return strconv.Atoi(raw)
}
