package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"habit-points/internal/model"
	"habit-points/internal/service"
)

// ToCSV writes a snapshot of one day's tasks: one row per task plus a total
// line. The bot attaches the output as a document.
func ToCSV(w io.Writer, date *model.Date, tasks []model.Task) error {
	cw := csv.NewWriter(w)

	// Header
	if err := cw.Write([]string{"ID", "Title", "Points", "Completed", "Target", "Max", "State", "Routine", "Critical", "Optional"}); err != nil {
		return err
	}

	for i := range tasks {
		t := &tasks[i]
		row := []string{
			fmt.Sprintf("%d", t.ID),
			t.Title,
			fmt.Sprintf("%g", t.Points),
			fmt.Sprintf("%d", t.Completed),
			fmt.Sprintf("%d", t.Target),
			fmt.Sprintf("%d", t.Max),
			service.State(t).String(),
			boolMark(t.Routine),
			boolMark(t.Critical),
			boolMark(t.Optional),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	total := []string{
		"",
		fmt.Sprintf("Total for %s", date.Day.Format("2006-01-02")),
		fmt.Sprintf("%d", service.TotalPoints(tasks)),
		"",
		fmt.Sprintf("%d", date.Target),
		"",
		fmt.Sprintf("%.0f%%", service.Progress(date, tasks)*100),
		"", "", "",
	}
	if err := cw.Write(total); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func boolMark(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
