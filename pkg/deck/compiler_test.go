package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnchorSlides(t *testing.T) {
	html := `<html><body>
<section id="1" class="slide"><h1>One</h1></section>
<section class="slide"><h1>Two</h1></section>
<section id="whatever"><h1>Three</h1></section>
</body></html>`

	path := filepath.Join(t.TempDir(), "deck.marp.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0644))

	require.NoError(t, AnchorSlides(path))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(out)
	require.Contains(t, s, `<section id="slide-1" class="slide">`)
	require.Contains(t, s, `<section id="slide-2" class="slide">`)
	require.Contains(t, s, `<section id="slide-3">`)
	require.NotContains(t, s, `id="whatever"`)
}

func TestAnchorSlidesMissingFile(t *testing.T) {
	err := AnchorSlides(filepath.Join(t.TempDir(), "missing.html"))
	require.Error(t, err)
}
