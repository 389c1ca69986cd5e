package visualize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildInstallDirective(t *testing.T) {
	t.Run("without reference uses the color option", func(t *testing.T) {
		d := BuildInstallDirective("95", "charcoal", false, false, "")
		require.Contains(t, d, "Screen Color: charcoal.")
		require.Contains(t, d, "Opacity: 95%.")
		require.NotContains(t, d, "Reference Image")
		require.NotContains(t, d, "STRICT MODE")
	})

	t.Run("empty options fall back to defaults", func(t *testing.T) {
		d := BuildInstallDirective("", "", false, false, "")
		require.Contains(t, d, "Screen Color: black.")
		require.Contains(t, d, "Opacity: 95%.")
	})

	t.Run("reference overrides the color option", func(t *testing.T) {
		d := BuildInstallDirective("80", "blue", true, false, "")
		require.Contains(t, d, "Reference Image")
		require.NotContains(t, d, "Screen Color: blue")
	})

	t.Run("strict retry appends the guidance", func(t *testing.T) {
		d := BuildInstallDirective("99", "black", false, true, "screen the side opening too")
		require.Contains(t, d, "STRICT MODE")
		require.Contains(t, d, "screen the side opening too")
	})
}

func TestBuildQualityQuestion(t *testing.T) {
	q := BuildQualityQuestion("motorized", "80", "tan")
	require.Contains(t, q, "80%")
	require.Contains(t, q, "tan")
	require.Contains(t, q, "motorized")
	require.Contains(t, q, "YES")
}

func TestParseVerdict(t *testing.T) {
	t.Run("affirmative answers pass", func(t *testing.T) {
		require.True(t, parseVerdict("YES").Pass)
		require.True(t, parseVerdict("yes, all constraints hold").Pass)
	})

	t.Run("negative answers carry guidance", func(t *testing.T) {
		v := parseVerdict("NO - the left opening has no screen")
		require.False(t, v.Pass)
		require.Equal(t, "the left opening has no screen", v.Guidance)

		v = parseVerdict("no. Opacity looks closer to 80%")
		require.False(t, v.Pass)
		require.Equal(t, "Opacity looks closer to 80%", v.Guidance)
	})

	t.Run("unparseable answers fail with the full text as guidance", func(t *testing.T) {
		v := parseVerdict("unable to evaluate this image")
		require.False(t, v.Pass)
		require.Equal(t, "unable to evaluate this image", v.Guidance)
	})
}

func TestParseYes(t *testing.T) {
	require.True(t, parseYes("YES"))
	require.True(t, parseYes("Yes, a build-out is required."))
	require.False(t, parseYes("NO"))
	require.False(t, parseYes("the structure is sufficient"))
}
