package invitees

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadRows_CSV(t *testing.T) {
	in := "Name,Phone,Email\nAmal,0791111111,amal@example.com\nBasil,0792222222\n"
	rows, err := ReadRows(strings.NewReader(in), "contacts.CSV")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Basil", "0792222222"}, rows[2])
}

func TestReadRows_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Full Name", "Mobile", "Inviter Name", "Allowed Guests"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Amal Haddad", "+962 79 111 1111", "Hala", 2}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ReadRows(bytes.NewReader(buf.Bytes()), "contacts.xlsx")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	idx, err := HeaderIndex(rows[0])
	require.NoError(t, err)
	cr, err := ParseRow(rows[1], idx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Amal Haddad", cr.Name)
	assert.Equal(t, "Hala", cr.Inviter)
	require.NotNil(t, cr.PlusOne)
	assert.Equal(t, 2, *cr.PlusOne)
}

func TestReadRows_Errors(t *testing.T) {
	_, err := ReadRows(strings.NewReader("x"), "contacts.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = ReadRows(strings.NewReader("Name,Phone\n"), "contacts.csv")
	assert.ErrorIs(t, err, ErrEmptySheet)
}

func TestHeaderIndex(t *testing.T) {
	idx, err := HeaderIndex([]string{"\ufeffName ", "Phone Number", "E-mail", "Secondary Phone"})
	require.NoError(t, err)
	assert.Equal(t, 0, idx["name"])
	assert.Equal(t, 1, idx["phone"])
	assert.Equal(t, 3, idx["secondary_phone"])

	_, err = HeaderIndex([]string{"Amal", "0791111111"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns: name, phone")
}

func TestParseRow(t *testing.T) {
	idx := map[string]int{"name": 0, "phone": 1, "plus_one": 2, "email": 3}

	tests := []struct {
		name    string
		row     []string
		wantErr string
	}{
		{"ok", []string{"Amal", "0791111111", "1.0", "AMAL@Example.com"}, ""},
		{"missing name", []string{"", "0791111111"}, "missing required field"},
		{"short phone", []string{"Amal", "12-34"}, "invalid phone"},
		{"bad guests", []string{"Amal", "0791111111", "two"}, "invalid plus_one"},
		{"negative guests", []string{"Amal", "0791111111", "-1"}, "invalid plus_one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr, err := ParseRow(tt.row, idx, 5)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "amal@example.com", cr.Email)
			assert.Equal(t, 1, *cr.PlusOne)
			assert.Equal(t, 5, cr.Line)
		})
	}
}
