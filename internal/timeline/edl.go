package timeline

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"github.com/estudio-ia/studio-server/internal/domain"
)

const edlReel = "AX"

// RenderEDL writes the unmuted clips of the timeline as a CMX3600 edit
// decision list, ordered by record-in. Fade transitions become dissolves.
func (e *Editor) RenderEDL(title string) string {
	return GenerateEDL(e.Timeline(), title)
}

type edlEvent struct {
	clip    domain.Clip
	channel string
}

// GenerateEDL renders tl as a CMX3600 edit decision list.
func GenerateEDL(tl domain.Timeline, title string) string {
	fps := int(math.Round(tl.FPS))
	if fps <= 0 {
		fps = DefaultFPS
	}
	isDropFrame := math.Abs(tl.FPS-29.97) < 0.01 || math.Abs(tl.FPS-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	var evts []edlEvent
	for _, t := range tl.Tracks {
		if t.Muted {
			continue
		}
		for _, c := range t.Clips {
			evts = append(evts, edlEvent{clip: c, channel: edlChannel(t.Kind)})
		}
	}
	slices.SortStableFunc(evts, func(a, b edlEvent) int {
		switch {
		case a.clip.TimelineStart < b.clip.TimelineStart:
			return -1
		case a.clip.TimelineStart > b.clip.TimelineStart:
			return 1
		}
		return 0
	})

	for i, ev := range evts {
		c := ev.clip
		edit, frames := "C", ""
		if c.Transition != nil && c.Transition.Duration > 0 {
			edit = "D"
			frames = fmt.Sprintf("%03d", int(math.Round(c.Transition.Duration*float64(fps))))
		}
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s %-4s %3s %s %s %s %s", i+1, edlReel, ev.channel, edit, frames,
				secondsToTimecode(c.StartTime, fps), secondsToTimecode(c.EndTime, fps),
				secondsToTimecode(c.TimelineStart, fps), secondsToTimecode(c.TimelineEnd, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", filepath.Base(c.FilePath)),
			fmt.Sprintf("* MEDIA PATH:  %s", c.FilePath),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func edlChannel(k domain.TrackKind) string {
	switch k {
	case domain.TrackAudio:
		return "A"
	case domain.TrackBoth:
		return "B"
	default:
		return "V"
	}
}

func secondsToTimecode(sec float64, fps int) string {
	return msToTimecode(int(math.Round(sec*1000)), fps)
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
