package web

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/utility-audit-portal/internal/model"
)

func TestNew_ParsesEveryPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	for _, name := range []string{"home", "about", "contact", "login", "stats", "uploads",
		"not_found", "owner_dashboard", "client_dashboard"} {
		assert.True(t, r.Has(name), name)
	}
	assert.False(t, r.Has("layout"))
}

func TestRender_NavReflectsUser(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "about", Page{Title: "About"}, nil))
	assert.Contains(t, buf.String(), `href="/login"`)
	assert.NotContains(t, buf.String(), "Sign out")

	buf.Reset()
	page := Page{Title: "About", User: &PageUser{ID: "u1", Email: "c@x.io", Role: model.RoleClient}}
	require.NoError(t, r.Render(&buf, "about", page, nil))
	assert.Contains(t, buf.String(), `href="/client-dashboard"`)
	assert.Contains(t, buf.String(), "Sign out (c@x.io)")
}

func TestRender_EscapesNotice(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "contact", Page{Title: "Contact", Error: "<script>x</script>"}, nil))
	assert.NotContains(t, buf.String(), "<script>x</script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestRender_UnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Error(t, r.Render(&bytes.Buffer{}, "missing", Page{}, nil))
}

func TestFuncs(t *testing.T) {
	num := funcs["num"].(func(float64) string)
	assert.Equal(t, "120.5", num(120.5))
	assert.Equal(t, "8", num(8))
	assert.Equal(t, "0", num(0))

	date := funcs["date"].(func(time.Time) string)
	assert.Equal(t, "", date(time.Time{}))
	assert.Equal(t, "2024-03-01", date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}
