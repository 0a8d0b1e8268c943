package storefront

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

func TestTemplateSet_Embedded(t *testing.T) {
	set, err := NewTemplateSet("")
	require.NoError(t, err)
	assert.True(t, set.Has("home"))
	assert.True(t, set.Has("medical_premium"))
	assert.False(t, set.Has("layout"))

	var buf bytes.Buffer
	page := &Page{
		Tenant: tenant.Context{
			Mode:    tenant.ModeWhiteLabel,
			Brand:   resellers.Brand{Name: "Golf Master <script>", Color: "#0f5132"},
			Contact: resellers.Contact{LineID: "golfmaster"},
		},
		Title:  "Golf Tours",
		Module: &Module{Title: "Golf Tours", Description: "Rounds"},
	}
	require.NoError(t, set.Execute(&buf, "leisure_standard", page))
	out := buf.String()
	assert.Contains(t, out, "Golf Master &lt;script&gt;")
	assert.Contains(t, out, "LINE: golfmaster")
	assert.Contains(t, out, `data-template="leisure_standard"`)

	err = set.Execute(&buf, "missing", page)
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestTemplateSet_DirectoryOverrideAndReload(t *testing.T) {
	dir := t.TempDir()
	write := func(body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "home.html"), []byte(body), 0o644))
	}
	write(`{{define "content"}}<p>custom v1</p>{{end}}`)

	set, err := NewTemplateSet(dir)
	require.NoError(t, err)

	render := func() string {
		var buf bytes.Buffer
		require.NoError(t, set.Execute(&buf, "home", &Page{Tenant: tenant.Context{Mode: tenant.ModeOfficial}}))
		return buf.String()
	}
	assert.Contains(t, render(), "custom v1")

	write(`{{define "content"}}<p>custom v2</p>{{end}}`)
	require.NoError(t, set.Reload())
	assert.Contains(t, render(), "custom v2")

	// A broken edit keeps the previous set live.
	write(`{{define "content"}}<p>{{.Nope</p>{{end}}`)
	assert.Error(t, set.Reload())
	assert.Contains(t, render(), "custom v2")
}

func TestTemplateSet_Watch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "home.html"), []byte(`{{define "content"}}v1{{end}}`), 0o644))
	set, err := NewTemplateSet(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, set.Watch(ctx, observability.NewNopLogger()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "home.html"), []byte(`{{define "content"}}v2{{end}}`), 0o644))
	assert.Eventually(t, func() bool {
		var buf bytes.Buffer
		_ = set.Execute(&buf, "home", &Page{})
		return bytes.Contains(buf.Bytes(), []byte("v2"))
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Lookup("medical")
	assert.ErrorIs(t, err, ErrNoRenderer)

	called := false
	reg.Register("medical", RendererFunc(func(_ io.Writer, _ *Page) error {
		called = true
		return nil
	}))
	r, err := reg.Lookup("medical")
	require.NoError(t, err)
	require.NoError(t, r.Render(&bytes.Buffer{}, &Page{}))
	assert.True(t, called)
}
