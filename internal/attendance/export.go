package attendance

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aura-events/backend/internal/models"
)

const attendeeSheet = "Attendees"

var exportHeader = []interface{}{
	"Name", "Email", "Phone", "Company", "Position", "Group", "Inviter", "Category", "Status",
	"Code", "Invitation Sent", "Method", "Confirmed", "Plus One", "Confirmed Guests",
	"Checked In", "Checked In At", "Actual Guests", "Notes",
}

// ExportFilename is the download name of an event's attendee workbook.
func ExportFilename(e *models.Event, at time.Time) string {
	name := e.Name
	if e.Code != nil {
		name = *e.Code
	}
	return fmt.Sprintf("%s-attendees-%s.xlsx", name, at.UTC().Format("20060102"))
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func confirmation(c *bool) string {
	switch {
	case c == nil:
		return "Pending"
	case *c:
		return "Coming"
	default:
		return "Not Coming"
	}
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// ExportRow renders one attendee as a worksheet row in exportHeader order.
func ExportRow(a models.Attendee) []interface{} {
	code, method := "", ""
	if a.AttendanceCode != nil {
		code = *a.AttendanceCode
	}
	if a.InvitationMethod != nil {
		method = string(*a.InvitationMethod)
	}
	return []interface{}{
		a.InviteeName, a.InviteeEmail, a.InviteePhone, a.Company, a.Position, a.GroupName, a.InviterName, a.CategoryName,
		string(a.Status), code, yesNo(a.InvitationSent), method, confirmation(a.AttendanceConfirmed), a.PlusOne,
		a.ConfirmedGuests, yesNo(a.CheckedIn), timeCell(a.CheckedInAt), a.ActualGuests, a.CheckInNotes,
	}
}

// WriteWorkbook writes an attendee sheet and a summary sheet to w as .xlsx.
func WriteWorkbook(w io.Writer, e *models.Event, stats models.AttendanceStats, list []models.Attendee) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), attendeeSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(attendeeSheet)
	if err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, a := range list {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, ExportRow(a)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if _, err := f.NewSheet("Summary"); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"Event", e.Name},
		{"Start", e.StartDate.UTC().Format(time.RFC3339)},
		{"End", e.EndDate.UTC().Format(time.RFC3339)},
		{"Approved", stats.TotalApproved},
		{"Codes Generated", stats.CodesGenerated},
		{"Invitations Sent", stats.InvitationsSent},
		{"Confirmed Coming", stats.ConfirmedComing},
		{"Confirmed Not Coming", stats.ConfirmedNotComing},
		{"Not Responded", stats.NotResponded},
		{"Checked In", stats.CheckedIn},
		{"Expected Total", stats.ExpectedTotal},
		{"Actual Total", stats.ActualTotal},
		{"Confirmation Rate %", stats.ConfirmationRate},
		{"Attendance Rate %", stats.AttendanceRate},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Summary", cell, &row); err != nil {
			return err
		}
	}
	_, err = f.WriteTo(w)
	return err
}
