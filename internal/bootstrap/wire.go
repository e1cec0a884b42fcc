// Package bootstrap assembles the session orchestrator and its
// collaborators from runtime configuration.
package bootstrap

import (
	"lexlive/internal/audio"
	"lexlive/internal/config"
	"lexlive/internal/notify"
	"lexlive/internal/ports"
	"lexlive/internal/providers/deepgram"
	"lexlive/internal/room"
	"lexlive/internal/sessionapi"
	"lexlive/internal/transcriptfeed"
	"lexlive/internal/usecase"
)

// Build wires the production implementations together. The notifier is the
// only piece the caller provides; pass nil to run headless with logs only.
func Build(cfg config.Config, notifier notify.Notifier) *usecase.Orchestrator {
	deps := usecase.Deps{
		API:         sessionapi.NewClient(cfg.API.BaseURL, cfg.API.AuthToken, cfg.API.Timeout),
		Credentials: sessionapi.NewCredentialClient(cfg.Deepgram.CredentialURL, cfg.API.Timeout),
		Recognition: deepgram.NewProvider(deepgram.Config{
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}),
		Room:         room.NewTransport(),
		Microphone:   audio.NewMicrophoneCapture(cfg.Audio.RecorderCommand),
		Display:      audio.NewSystemAudioCapture(cfg.Audio.RecorderCommand),
		Mixer:        audio.NewGraphMixer(),
		Feed:         transcriptfeed.NewChannel(cfg.Transcript.WSURL),
		Events:       notify.NewSink(notifier, cfg.SentryDSN != ""),
		InspectToken: inspectRoomToken,
	}

	return usecase.NewOrchestrator(deps, usecase.Config{
		Mic: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.MicFormat,
			InputDevice: cfg.Audio.MicDevice,
			FilterChain: cfg.Audio.MicFilterChain,
		},
		Monitor: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.MonitorFormat,
			InputDevice: cfg.Audio.MonitorDevice,
		},
		SystemAudio: cfg.Audio.SystemAudio,
		Streaming: ports.StreamingConfig{
			SampleRate:     cfg.Audio.SampleRate,
			Channels:       cfg.Audio.Channels,
			Encoding:       "linear16",
			InterimResults: cfg.Deepgram.InterimResults,
			Diarize:        cfg.Deepgram.Diarize,
			Punctuate:      cfg.Deepgram.Punctuate,
		},
		Mode:           sessionMode(cfg.Session.Mode),
		Role:           cfg.Room.Role,
		TrackName:      cfg.Room.TrackName,
		ChunkSize:      cfg.Session.ChunkSize,
		StreamingGrace: cfg.Session.StreamingGrace,
	})
}

func sessionMode(mode config.TranscriptionMode) usecase.Mode {
	if mode == config.ModeDirect {
		return usecase.ModeDirect
	}
	return usecase.ModeRelay
}

// inspectRoomToken adapts the token decode for the orchestrator's
// cross-check hook.
func inspectRoomToken(token string) (string, error) {
	grant, err := room.InspectToken(token)
	if err != nil {
		return "", err
	}
	return grant.Room, nil
}
