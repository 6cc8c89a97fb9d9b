package pipeline

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// WriteReport renders the shots as a markdown storyboard report.
func WriteReport(w io.Writer, title string, shots []*Shot) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)

	for _, shot := range shots {
		fmt.Fprintf(&b, "## Shot %d — %s\n\n", shot.Index+1, filepath.Base(shot.FramePath))

		if shot.Err != nil {
			fmt.Fprintf(&b, "Analysis failed: %s\n\n", shot.Err.Error())
			continue
		}

		a := shot.Analysis
		fmt.Fprintf(&b, "- **Visual description**: %s\n", a.VisualDescription)
		fmt.Fprintf(&b, "- **Shot size**: %s\n", a.ShotSize)
		fmt.Fprintf(&b, "- **Camera movement**: %s\n", a.CameraMovement)
		fmt.Fprintf(&b, "- **Lighting and color**: %s\n", a.LightingAndColor)
		fmt.Fprintf(&b, "- **Sound atmosphere**: %s\n", a.SoundAtmosphere)
		fmt.Fprintf(&b, "- **AI prompt**: %s\n\n", a.AIPrompt)

		if shot.GeneratedImage != "" {
			fmt.Fprintf(&b, "![regenerated shot %d](%s)\n\n", shot.Index+1, shot.GeneratedImage)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
