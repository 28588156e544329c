package tts

import (
	"context"
	"encoding/binary"
	"math"
)

type mockSynth struct {
	sampleRate int
}

// NewMockSynth returns silent mono WAV clips lasting one second per five
// characters.
func NewMockSynth(sampleRate int) Synthesizer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &mockSynth{sampleRate: sampleRate}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (SynthResult, error) {
	if err := ctx.Err(); err != nil {
		return SynthResult{}, err
	}
	duration := estimateDuration(req.Text)
	if duration <= 0 {
		duration = 0.2
	}
	samples := int(math.Round(duration * float64(m.sampleRate)))
	duration = float64(samples) / float64(m.sampleRate)
	return SynthResult{
		Audio:    silentWAV(m.sampleRate, samples),
		MIMEType: "audio/wav",
		Duration: duration,
	}, nil
}

// silentWAV builds a 16-bit mono PCM file of the given sample count.
func silentWAV(sampleRate, samples int) []byte {
	dataLen := samples * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	return buf
}
