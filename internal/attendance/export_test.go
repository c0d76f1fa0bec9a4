package attendance

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aura-events/backend/internal/models"
)

func TestWriteWorkbook(t *testing.T) {
	code := "GALA-ABCD"
	yes := true
	at := time.Date(2026, 3, 12, 19, 5, 0, 0, time.UTC)
	method := models.MethodWhatsApp
	e := &models.Event{ID: uuid.New(), Name: "Annual Gala", Code: &code, StartDate: at, EndDate: at.Add(4 * time.Hour)}
	list := []models.Attendee{
		{
			EventInvitee: models.EventInvitee{Status: models.StatusApproved, AttendanceCode: &code, InvitationSent: true,
				InvitationMethod: &method, AttendanceConfirmed: &yes, PlusOne: 2, ConfirmedGuests: 1, CheckedIn: true,
				CheckedInAt: &at, ActualGuests: 1},
			InviteeName: "Rania Kassem", InviteePhone: "+962791234567", GroupName: "Protocol",
		},
		{EventInvitee: models.EventInvitee{Status: models.StatusApproved}, InviteeName: "Basil Nour"},
	}
	stats := models.AttendanceStats{TotalApproved: 2, CheckedIn: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, e, stats, list))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(attendeeSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "Rania Kassem", rows[1][0])
	assert.Equal(t, "GALA-ABCD", rows[1][9])
	assert.Equal(t, "whatsapp", rows[1][11])
	assert.Equal(t, "Coming", rows[1][12])
	assert.Equal(t, "2026-03-12 19:05", rows[1][16])
	assert.Equal(t, "Pending", rows[2][12])

	v, err := f.GetCellValue("Summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	code := "GALA1234"
	assert.Equal(t, "GALA1234-attendees-20260312.xlsx", ExportFilename(&models.Event{Name: "Gala", Code: &code}, at))
	assert.Equal(t, "Gala-attendees-20260312.xlsx", ExportFilename(&models.Event{Name: "Gala"}, at))
}

func TestQRCodePNG(t *testing.T) {
	png, err := QRCodePNG(PortalURL("https://events.example.com", "GALA-ABCD"), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
	assert.Equal(t, "https://events.example.com/portal?code=GALA-ABCD", PortalURL("https://events.example.com", "GALA-ABCD"))
}
