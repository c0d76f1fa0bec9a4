package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogoContentType(t *testing.T) {
	assert.Equal(t, "image/png", LogoContentType("Brand.PNG"))
	assert.Equal(t, "image/jpeg", LogoContentType("a.jpeg"))
	assert.Empty(t, LogoContentType("logo.exe"))
	assert.Empty(t, LogoContentType("noext"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "logos/ev1/logo.png", LogoKey("ev1", "../../My Logo.PNG"))
	at := time.Date(2026, 3, 12, 18, 30, 5, 0, time.FixedZone("AST", 3*3600))
	assert.Equal(t, "exports/ev1/20260312T153005Z.xlsx", ExportKey("ev1", at))
}
