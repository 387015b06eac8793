package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ayusman/mudra/internal/course"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

const barWidth = 20

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	idStyle      = lipgloss.NewStyle().Bold(true).Width(4)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A")).
			Padding(0, 1)
)

// renderCourses lists every course with its committed progress.
func renderCourses(courses []course.Course, correctFor func(id string) int) string {
	lines := []string{headerStyle.Render("Courses")}
	for _, c := range courses {
		correct := correctFor(c.ID)
		count := fmt.Sprintf("%2d/%-2d", correct, c.Goal)
		style := pendingStyle
		if correct >= c.Goal {
			style = doneStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s %s  %s",
			idStyle.Render(c.ID),
			progressBar(correct, c.Goal),
			style.Render(count),
			c.Instruction,
		))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

// renderAttempts lists finished attempts, newest first.
func renderAttempts(attempts []store.Attempt) string {
	if len(attempts) == 0 {
		return pendingStyle.Render("No attempts yet")
	}
	lines := []string{headerStyle.Render("Recent attempts")}
	for _, a := range attempts {
		style := errorStyle
		if a.Outcome == session.StateCompleted.String() {
			style = doneStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s %-9s %d correct of %d scored (%d%%)",
			a.EndedAt.Local().Format("2006-01-02 15:04"),
			idStyle.Render(a.CourseID),
			style.Render(a.Outcome),
			a.Correct, a.Total, session.Accuracy(a.Correct, a.Total),
		))
	}
	return strings.Join(lines, "\n")
}

// renderSnapshot formats one live session line.
func renderSnapshot(s session.Snapshot) string {
	if s.Error != "" {
		return errorStyle.Render(fmt.Sprintf("[%s] %s", s.State, s.Error))
	}
	line := fmt.Sprintf("[%s] %s %d/%d", s.State, progressBar(s.Correct, s.Goal), s.Correct, s.Goal)
	if s.Status != "" {
		line += "  " + s.Status
	}
	return line
}

// renderSummary formats the outcome of a finished attempt.
func renderSummary(s session.Snapshot) string {
	style := errorStyle
	title := "Course failed"
	switch s.State {
	case session.StateCompleted:
		style = doneStyle
		title = "Course completed"
	case session.StateCameraError:
		title = "Camera unavailable"
	}

	body := []string{
		style.Render(title),
		fmt.Sprintf("Course %s: %d/%d correct (%d%%)", s.CourseID, s.Correct, s.Goal, s.ProgressPercent),
		fmt.Sprintf("Accuracy: %d%% of %d scored", s.Accuracy, s.Total),
	}
	if s.Error != "" {
		body = append(body, errorStyle.Render(s.Error))
	}
	return cardStyle.Render(strings.Join(body, "\n"))
}

func progressBar(n, of int) string {
	filled := 0
	if of > 0 {
		filled = session.Percent(n, of) * barWidth / 100
	}
	return doneStyle.Render(strings.Repeat("█", filled)) + pendingStyle.Render(strings.Repeat("░", barWidth-filled))
}
