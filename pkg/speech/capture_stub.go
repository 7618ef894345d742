//go:build !voice

package speech

// NewRecorder reports that microphone capture is not available in this build.
func NewRecorder(int) (Recorder, error) {
	return nil, ErrVoiceUnavailable
}
