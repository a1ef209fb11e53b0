package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"scheduleai/internal/model"
	"scheduleai/internal/service"
)

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// parseClock reads "7", "7:30" or "07:30".
func parseClock(raw string) (int, int, error) {
	raw = strings.TrimSpace(raw)
	hourPart, minutePart, hasMinutes := strings.Cut(raw, ":")
	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid time %q, use HH:MM", raw)
	}
	minute := 0
	if hasMinutes {
		minute, err = strconv.Atoi(minutePart)
		if err != nil || len(minutePart) != 2 || minute < 0 || minute > 59 {
			return 0, 0, fmt.Errorf("invalid time %q, use HH:MM", raw)
		}
	}
	return hour, minute, nil
}

// weekDate places an ISO weekday and clock time in the Monday-based week
// that contains now.
func weekDate(now time.Time, isoDay, hour, minute int) time.Time {
	year, month, day := now.Date()
	monday := day - (model.ISOWeekday(now.Weekday()) - 1)
	return time.Date(year, month, monday+isoDay-1, hour, minute, 0, 0, now.Location())
}

// parseSlot reads "<day> <HH:MM>" into a time in now's week.
func parseSlot(now time.Time, dayRaw, clockRaw string) (time.Time, error) {
	isoDay, ok := model.ParseWeekday(dayRaw)
	if !ok {
		return time.Time{}, fmt.Errorf("unknown day %q, use mon..sun or 1-7", dayRaw)
	}
	hour, minute, err := parseClock(clockRaw)
	if err != nil {
		return time.Time{}, err
	}
	return weekDate(now, isoDay, hour, minute), nil
}

// dropArgs splits "/drop <activity> <day> <HH:MM>"; the activity reference
// may contain spaces.
type dropArgs struct {
	activity string
	start    time.Time
}

func parseDropArgs(raw string, now time.Time) (dropArgs, error) {
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return dropArgs{}, fmt.Errorf("usage: /drop <activity> <day> <HH:MM>")
	}
	n := len(fields)
	start, err := parseSlot(now, fields[n-2], fields[n-1])
	if err != nil {
		return dropArgs{}, err
	}
	return dropArgs{activity: strings.Join(fields[:n-2], " "), start: start}, nil
}

// moveArgs is "/move <event> <day> <HH:MM> [HH:MM]". A zero end keeps the
// event's duration.
type moveArgs struct {
	event string
	start time.Time
	end   time.Time
}

func parseMoveArgs(raw string, now time.Time) (moveArgs, error) {
	fields := strings.Fields(raw)
	if len(fields) < 3 || len(fields) > 4 {
		return moveArgs{}, fmt.Errorf("usage: /move <event> <day> <HH:MM> [HH:MM]")
	}
	start, err := parseSlot(now, fields[1], fields[2])
	if err != nil {
		return moveArgs{}, err
	}
	args := moveArgs{event: fields[0], start: start}
	if len(fields) == 4 {
		hour, minute, err := parseClock(fields[3])
		if err != nil {
			return moveArgs{}, err
		}
		y, m, d := start.Date()
		args.end = time.Date(y, m, d, hour, minute, 0, 0, start.Location())
	}
	return args, nil
}

// resolveEvent finds an event by its number in the /week listing or by ID.
func resolveEvent(sorted []model.ScheduleEvent, ref string) (model.ScheduleEvent, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(sorted) {
			return sorted[n-1], nil
		}
	}
	for _, ev := range sorted {
		if ev.ID == ref {
			return ev, nil
		}
	}
	return model.ScheduleEvent{}, fmt.Errorf("%w: %s", service.ErrEventNotFound, ref)
}

// splitRef splits "<ref> <rest...>".
func splitRef(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	ref, rest, _ := strings.Cut(raw, " ")
	return ref, strings.TrimSpace(rest)
}

// parseDays accepts weekday lists such as "mon,wed,fri", "1 3 5",
// "weekdays", "weekend" or "daily".
func parseDays(raw string) ([]int, error) {
	switch normalizeInput(raw) {
	case "daily", "every day", "everyday":
		return []int{1, 2, 3, 4, 5, 6, 7}, nil
	case "weekdays":
		return []int{1, 2, 3, 4, 5}, nil
	case "weekend":
		return []int{6, 7}, nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("list at least one day")
	}
	days := make([]int, 0, len(fields))
	for _, f := range fields {
		d, ok := model.ParseWeekday(f)
		if !ok {
			return nil, fmt.Errorf("unknown day %q", f)
		}
		days = append(days, d)
	}
	return days, nil
}

// parseMinutes reads "90", "1:30" or "1h30m" as minutes.
func parseMinutes(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return n, nil
	}
	if h, m, ok := strings.Cut(raw, ":"); ok {
		hours, err1 := strconv.Atoi(h)
		minutes, err2 := strconv.Atoi(m)
		if err1 == nil && err2 == nil && hours >= 0 && minutes >= 0 && minutes < 60 && hours*60+minutes > 0 {
			return hours*60 + minutes, nil
		}
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= time.Minute {
		return int(d / time.Minute), nil
	}
	return 0, fmt.Errorf("invalid duration %q, use minutes like 90 or 1h30m", raw)
}

func formatEvent(n int, ev model.ScheduleEvent) string {
	return fmt.Sprintf("<b>%d.</b> %s %s-%s %s",
		n,
		categoryIcon(ev.Category),
		ev.Start.Format("15:04"),
		ev.End.Format("15:04"),
		escape(normalizeTitle(ev.Title)))
}

// formatWeek lists the editor's events grouped by weekday. Numbers match
// the order of sorted and are what /move and /remove accept.
func formatWeek(name string, sorted []model.ScheduleEvent, dirty bool) string {
	var builder strings.Builder
	title := strings.TrimSpace(name)
	if title == "" {
		title = "Untitled routine"
	}
	builder.WriteString(fmt.Sprintf("🗓 <b>%s</b>", escape(title)))
	if dirty {
		builder.WriteString(" <i>(unsaved changes)</i>")
	}
	builder.WriteString("\n")
	if len(sorted) == 0 {
		builder.WriteString("\nNo events yet. Add one with /drop or let /generate build a week.")
		return builder.String()
	}

	byDay := make(map[int][]int, 7)
	for i, ev := range sorted {
		day := model.ISOWeekday(ev.Start.Weekday())
		byDay[day] = append(byDay[day], i)
	}
	for day := 1; day <= 7; day++ {
		indexes := byDay[day]
		if len(indexes) == 0 {
			continue
		}
		builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", model.FromISOWeekday(day)))
		for _, i := range indexes {
			builder.WriteString(formatEvent(i+1, sorted[i]))
			builder.WriteByte('\n')
		}
	}
	return strings.TrimSpace(builder.String())
}

func formatActivity(a model.Activity, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>#%d</b> %s · %s\n", a.ID, escape(normalizeTitle(a.Name)), a.DurationLabel()))
	b.WriteString(fmt.Sprintf("   %s · %s\n", a.Priority.Label(), a.Category.Label()))
	if a.IsRecurrent {
		b.WriteString(fmt.Sprintf("   ♻️ %s", service.DaysLabel(a.RecurrentDays)))
		if next, err := service.NextOccurrences(a, now, 7*24*time.Hour); err == nil && len(next) > 0 {
			b.WriteString(fmt.Sprintf(" · next %s", next[0].Format("Mon 02 Jan")))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatActivities(activities []model.Activity, now time.Time) string {
	if len(activities) == 0 {
		return "You have no activities yet. Add one with /newactivity."
	}
	var b strings.Builder
	b.WriteString("📋 <b>Activities</b>\n")
	b.WriteString("Place one on the open routine with /drop &lt;name or id&gt; &lt;day&gt; &lt;HH:MM&gt;.\n\n")
	for _, a := range activities {
		b.WriteString(formatActivity(a, now))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func formatRoutines(routines []model.Routine) string {
	if len(routines) == 0 {
		return "No saved routines. Start one with /newroutine or /generate."
	}
	var b strings.Builder
	b.WriteString("📚 <b>Saved routines</b>\n\n")
	for _, r := range routines {
		id := 0
		if r.ID != nil {
			id = *r.ID
		}
		marker := ""
		if r.IsActive {
			marker = " ⭐"
		}
		b.WriteString(fmt.Sprintf("<b>#%d</b> %s%s · %d events\n", id, escape(r.Name), marker, len(r.Events)))
	}
	return strings.TrimSpace(b.String())
}

func formatDashboard(d service.Dashboard, now time.Time) string {
	if !d.HasRoutine {
		return "You have no active routine. Open one with /routines and press ⭐, or build one with /generate."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("☀️ <b>%s</b> · <i>%s</i>\n", now.Format("Monday 02 Jan"), escape(d.RoutineName)))
	if d.Summary.Count == 0 {
		b.WriteString("\nNothing planned for today.\n")
	} else {
		b.WriteString(fmt.Sprintf("%d events · %s-%s\n\n",
			d.Summary.Count,
			d.Summary.FirstStart.Format("15:04"),
			d.Summary.LastEnd.Format("15:04")))
		for i, ev := range d.Today {
			b.WriteString(formatEvent(i+1, ev))
			b.WriteByte('\n')
		}
	}
	if len(d.Distribution) > 0 {
		b.WriteString("\n📊 <b>Week by category</b>\n")
		for _, slice := range d.Distribution {
			label := "📌 Uncategorized"
			if slice.Category != service.UncategorizedKey {
				label = model.Category(slice.Category).Label()
			}
			b.WriteString(fmt.Sprintf("%s · %.1f h\n", label, slice.Hours))
		}
	}
	if len(d.Upcoming) > 0 {
		b.WriteString("\n⏰ <b>Next up</b>\n")
		for _, ev := range d.Upcoming {
			b.WriteString(service.FormatEventLine(ev, now))
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}

func formatSuggestions(suggestions []string) string {
	if len(suggestions) == 0 {
		return "🤖 No suggestions. The week looks balanced."
	}
	var b strings.Builder
	b.WriteString("🤖 <b>Suggestions</b>\n\n")
	for _, s := range suggestions {
		b.WriteString("• ")
		b.WriteString(escape(strings.TrimSpace(s)))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func categoryIcon(c model.Category) string {
	label := c.Label()
	if i := strings.IndexByte(label, ' '); i > 0 {
		return label[:i]
	}
	return "📌"
}
