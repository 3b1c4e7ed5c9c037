package call

import (
	"context"
	"fmt"

	"github.com/matfelipe/deskchat/internal/config"
)

// PermissionError is the recoverable failure returned when the user denies
// access to the device a call medium needs.
type PermissionError struct {
	Medium Medium
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("media permission denied for %s: %s", e.Medium, e.Reason)
}

// MediaGateway probes device permissions before a self-initiated call may go
// active. Implementations probe and release immediately; the controller never
// holds a live media handle.
type MediaGateway interface {
	RequestMedia(ctx context.Context, medium Medium) error
}

// PolicyGateway grants or denies media based on the configured policy,
// standing in for a real device-permission prompt.
type PolicyGateway struct {
	media config.Media
}

// NewPolicyGateway creates a gateway backed by the config media policy.
func NewPolicyGateway(media config.Media) *PolicyGateway {
	return &PolicyGateway{media: media}
}

// RequestMedia implements MediaGateway. Video calls need both camera and
// microphone, so a video grant implies the audio one.
func (g *PolicyGateway) RequestMedia(_ context.Context, medium Medium) error {
	switch medium {
	case MediumAudio:
		if !g.media.AllowAudio {
			return &PermissionError{Medium: medium, Reason: "microphone access blocked"}
		}
	case MediumVideo:
		if !g.media.AllowAudio {
			return &PermissionError{Medium: medium, Reason: "microphone access blocked"}
		}
		if !g.media.AllowVideo {
			return &PermissionError{Medium: medium, Reason: "camera access blocked"}
		}
	default:
		return &PermissionError{Medium: medium, Reason: "unknown medium"}
	}
	return nil
}
