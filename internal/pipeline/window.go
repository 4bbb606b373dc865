// Package pipeline turns a requested time range into an ffmpeg invocation
// that cuts, re-encodes and fades a background track into an mp3 preview.
package pipeline

import "fmt"

const (
	// MaxClipMs is the longest preview that may be requested, and the length
	// used when only one bound (or none) is given.
	MaxClipMs = 30000
	// MinClipMs is the shortest preview that may be requested.
	MinClipMs = 1000

	defaultClipSeconds = MaxClipMs / 1000
)

// Messages returned to callers for rejected windows.
const (
	MsgTooShort = "Must be at least 1 second"
	MsgTooLong  = "Too long duration."
	MsgNegative = "start and end must not be negative"
)

// Window is a resolved cut of the source track, in seconds.
type Window struct {
	StartSeconds  float64
	EndSeconds    float64
	AnchorSeconds float64 // effective end of the clip; the fade-out ends here

	// Head marks the default window: the first 30 seconds of the source,
	// cut by duration rather than by explicit seek points.
	Head bool
}

// Duration returns the length of the window in seconds.
func (w Window) Duration() float64 {
	return w.EndSeconds - w.StartSeconds
}

// ValidationError reports a requested window that violates the duration bounds.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid window: " + e.Message
}

// Resolve maps optional millisecond bounds to a concrete window.
//
// With both bounds the requested duration must lie within [MinClipMs, MaxClipMs].
// With one bound the window extends 30 seconds away from it, clamped at the
// start of the track. With neither the first 30 seconds are used.
func Resolve(startMs, endMs *int64) (Window, error) {
	if (startMs != nil && *startMs < 0) || (endMs != nil && *endMs < 0) {
		return Window{}, &ValidationError{Message: MsgNegative}
	}

	switch {
	case startMs != nil && endMs != nil:
		d := *endMs - *startMs
		if d < MinClipMs {
			return Window{}, &ValidationError{Message: MsgTooShort}
		}
		if d > MaxClipMs {
			return Window{}, &ValidationError{Message: MsgTooLong}
		}
		end := msToSeconds(*endMs)
		return Window{StartSeconds: msToSeconds(*startMs), EndSeconds: end, AnchorSeconds: end}, nil

	case startMs != nil:
		start := msToSeconds(*startMs)
		end := start + defaultClipSeconds
		return Window{StartSeconds: start, EndSeconds: end, AnchorSeconds: end}, nil

	case endMs != nil:
		end := msToSeconds(*endMs)
		start := end - defaultClipSeconds
		if start < 0 {
			start = 0
		}
		return Window{StartSeconds: start, EndSeconds: end, AnchorSeconds: end}, nil

	default:
		return Window{StartSeconds: 0, EndSeconds: defaultClipSeconds, AnchorSeconds: defaultClipSeconds, Head: true}, nil
	}
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}

func (w Window) String() string {
	return fmt.Sprintf("[%gs, %gs] anchor=%gs", w.StartSeconds, w.EndSeconds, w.AnchorSeconds)
}
