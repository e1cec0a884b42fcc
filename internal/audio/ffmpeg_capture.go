package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"lexlive/internal/domain"
	"lexlive/internal/ports"
)

// MicrophoneCapture streams microphone PCM audio through an ffmpeg
// subprocess. The configured filter chain applies noise suppression in place
// of browser-side capture constraints.
type MicrophoneCapture struct {
	command string
}

func NewMicrophoneCapture(command string) *MicrophoneCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &MicrophoneCapture{command: command}
}

func (c *MicrophoneCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	session, err := startFFmpeg(ctx, c.command, cfg)
	if err != nil {
		if isPermissionError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
		return nil, err
	}
	return session, nil
}

// SystemAudioCapture streams shared system/monitor audio. Sources without an
// audio path are rejected with domain.ErrNoAudioTrack before any data flows
// downstream, mirroring the explicit audio-track check the share dialog
// variant requires.
type SystemAudioCapture struct {
	command string

	// probeWindow bounds how long the source may stay silent before it is
	// treated as having no audio track.
	probeWindow time.Duration
}

func NewSystemAudioCapture(command string) *SystemAudioCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &SystemAudioCapture{command: command, probeWindow: 2 * time.Second}
}

func (c *SystemAudioCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if strings.TrimSpace(cfg.InputDevice) == "" {
		return nil, fmt.Errorf("%w: no monitor source selected, enable \"share audio\" and pick a source", domain.ErrNoAudioTrack)
	}

	session, err := startFFmpeg(ctx, c.command, cfg)
	if err != nil {
		return nil, err
	}

	probed, err := probeAudio(session, c.probeWindow)
	if err != nil {
		_ = session.Stop()
		return nil, fmt.Errorf("%w: the shared source produced no audio, enable \"share audio\" when sharing", domain.ErrNoAudioTrack)
	}
	return probed, nil
}

// probeAudio reads one chunk within the window to prove the source carries
// audio, then hands back a session that replays the probed bytes first.
func probeAudio(session ports.AudioSession, window time.Duration) (ports.AudioSession, error) {
	buf := make([]byte, 1024)
	type readResult struct {
		n   int
		err error
	}
	done := make(chan readResult, 1)
	go func() {
		n, err := io.ReadAtLeast(session, buf, 2)
		done <- readResult{n: n, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return &probedSession{inner: session, head: buf[:res.n]}, nil
	case <-time.After(window):
		return nil, errors.New("no audio within probe window")
	}
}

type probedSession struct {
	inner ports.AudioSession
	head  []byte
}

func (s *probedSession) Read(p []byte) (int, error) {
	if len(s.head) > 0 {
		n := copy(p, s.head)
		s.head = s.head[n:]
		return n, nil
	}
	return s.inner.Read(p)
}

func (s *probedSession) Close() error { return s.inner.Close() }
func (s *probedSession) Stop() error  { return s.inner.Stop() }

func startFFmpeg(ctx context.Context, command string, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
	}
	if cfg.FilterChain != "" {
		args = append(args, "-af", cfg.FilterChain)
	}
	args = append(args,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	)

	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start capture process: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// A capture process that dies immediately means the device was refused
	// or misconfigured, not that the stream ended.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("capture process exited before streaming: %w: %s", err, trimmed(stderr.String()))
		}
		return nil, errors.New("capture process exited before streaming")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop terminates the capture process and releases the device. Leaving the
// process running keeps the OS capture indicator active, so teardown is
// mandatory.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "operation not permitted")
}

func trimmed(input string) string {
	return strings.TrimSpace(input)
}
