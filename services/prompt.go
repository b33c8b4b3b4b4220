package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cppla/fallenleaves/models"
)

const insightInstructions = `Analyze the following habit data and provide insights.
- Identify patterns, trends, and fluctuations in the habit data.
- Provide 2-3 personalized recommendations based on the data.
- Identify which days or periods the user is most or least active and suggest adjustments.
- Provide an attainable goal and ensure it is a **specific number** and calculated based on the total sum of all the values in the entries. The goal should either be equal to, slightly lower, or slightly higher than the total sum of the entries.
- **IMPORTANT**: At the end, provide the goal in the exact format [GOAL: number] without units or additional text.
- The goal should be realistic based on the analysis of the data.
- **IMPORTANT**: In addition, provide a suitable title in the exact format [TITLE: string].
- Do not use [GOAL: ...] or [TITLE: ...] anywhere else in the answer.
Data: `

// FormatHabit renders a habit and its entries as the plain-text block sent to the model.
func FormatHabit(habit *models.Habit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Habit: %s\n", habit.HabitName)
	fmt.Fprintf(&b, "Goal: %s\n", habit.HabitGoal)
	b.WriteString("Entries:\n")
	for _, e := range habit.Entries {
		d := e.Date.UTC()
		fmt.Fprintf(&b, "%d/%d/%d, %s, %s\n",
			int(d.Month()), d.Day(), d.Year(),
			strconv.FormatFloat(e.Value, 'f', -1, 64),
			e.Unit,
		)
	}
	return b.String()
}

// BuildPrompt embeds formatted habit data in the instruction template.
func BuildPrompt(habitData string) string {
	return insightInstructions + habitData
}
