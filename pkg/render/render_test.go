package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{})

	p.Header("Wanda")
	p.Status([]Item{
		{Name: "tcsc-wanda", Status: StatusOK, StatusText: "running"},
		{Name: "tcsc-postgres", Status: StatusError, StatusText: "exited", Details: []Detail{
			{Key: "agent id", Value: "a1"},
			{Key: "messages", Value: "first\nsecond"},
		}},
	})
	p.OKf("Wanda is %s.", "operational")
	require.NoError(t, p.JSON(map[string]bool{"ignored": true}))
	assert.False(t, p.Printed())

	assert.Equal(t, "Wanda\n\n"+
		"tcsc-wanda     running\n"+
		"tcsc-postgres  exited\n"+
		"    agent id:  a1\n"+
		"    messages:  first\n"+
		"               second\n"+
		"Wanda is operational.\n", buf.String())
}

func TestPrinter_JSONMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{JSON: true, Color: true})

	p.Header("ignored")
	p.Failf("ignored")
	p.Lines([]string{"ignored"})
	p.KeyValues([]Detail{{Key: "k", Value: "v"}})
	require.NoError(t, p.JSON(map[string]interface{}{"success": true}))

	assert.True(t, p.JSONMode())
	assert.True(t, p.Printed())
	assert.Equal(t, "{\n  \"success\": true\n}\n", buf.String())
}

func TestPrinter_Color(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{Color: true})
	p.Failf("boom")
	assert.Contains(t, buf.String(), "\x1b[31m")
	assert.Contains(t, buf.String(), "boom")
}
