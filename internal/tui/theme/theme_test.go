package theme

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mark3labs/specdash/internal/workitem"
)

func TestHexRoundTrip(t *testing.T) {
	r, g, b := ParseHexColor("#cba6f7")
	assert.Equal(t, "#cba6f7", FormatHexColor(r, g, b))
	assert.Equal(t, color.RGBA{R: 0x1e, G: 0x1e, B: 0x2e, A: 0xff}, HexToColor("#1e1e2e"))
}

func TestInterpolateColor(t *testing.T) {
	assert.Equal(t, "#000000", InterpolateColor("#000000", "#ffffff", 0))
	assert.Equal(t, "#ffffff", InterpolateColor("#000000", "#ffffff", 1))
	assert.Equal(t, "#7f7f7f", InterpolateColor("#000000", "#ffffff", 0.5))
}

func TestStatusColor_EveryStatusHasAColor(t *testing.T) {
	th := NewCatppuccinMocha()
	for _, kind := range workitem.Kinds {
		for _, s := range workitem.Statuses(kind) {
			assert.NotEmpty(t, th.StatusColor(s), s)
		}
	}
	assert.Equal(t, th.Success, th.StatusColor(workitem.StatusResolved))
	assert.Equal(t, th.StatusColor(workitem.StatusCompleted), th.StatusColor(workitem.StatusResolved))
	assert.NotEqual(t, th.StatusColor(workitem.StatusReported), th.StatusColor(workitem.StatusResolved))
}

func TestCurrent(t *testing.T) {
	orig := Current()
	t.Cleanup(func() { SetCurrent(orig) })

	custom := NewCatppuccinMocha()
	custom.Name = "custom"
	SetCurrent(custom)
	assert.Equal(t, "custom", Current().Name)
	assert.NotEmpty(t, Current().S().TabActive.Render("x"))
}
