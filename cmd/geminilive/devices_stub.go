//go:build !portaudio

package main

import (
	"errors"

	"github.com/AltairaLabs/geminilive/audio"
)

const devicesAvailable = false

var errNoDevices = errors.New("audio devices require a build with -tags portaudio")

func openDevices(wantMic, wantSpeaker bool) (audio.Source, audio.Sink, func(), error) {
	if !wantMic && !wantSpeaker {
		return nil, nil, func() {}, nil
	}
	return nil, nil, nil, errNoDevices
}
