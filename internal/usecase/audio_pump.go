package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"lexlive/internal/audio"
	"lexlive/internal/domain"
	"lexlive/internal/ports"
)

// pumpAudioFrames moves captured PCM from the mix graph into the published
// room track and, in direct mode, the recognition socket. One message per
// buffer, no batching; the loop must never block longer than a buffer
// period, so send failures end the pump rather than queue.
func pumpAudioFrames(
	source ports.AudioSession,
	track ports.FrameWriter,
	recognition ports.RecognitionSession,
	chunkSize int,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}
	// s16le: two bytes per sample.
	buf := make([]byte, chunkSize*2)

	for {
		n, err := source.Read(buf)
		if n > 1 {
			chunk := buf[: n-n%2 : n-n%2]
			if track != nil {
				if writeErr := track.WriteFrame(audio.SamplesFromBytes(chunk)); writeErr != nil {
					events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to publish audio: %v", writeErr))
					return
				}
			}
			if recognition != nil {
				if sendErr := recognition.SendAudio(chunk); sendErr != nil {
					events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

// waitForStream waits for the recognition socket to drain, closing it hard
// if it exceeds the deadline.
func waitForStream(session ports.RecognitionSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
