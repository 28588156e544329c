package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

type execSynth struct {
	cmd []string
}

type execRequest struct {
	Text    string   `json:"text"`
	VoiceID string   `json:"voice_id"`
	Tone    []string `json:"tone,omitempty"`
	Speed   float64  `json:"speed"`
	Emotion string   `json:"emotion"`
}

type execResponse struct {
	AudioBase64 string  `json:"audio_base64"`
	MIMEType    string  `json:"mime_type"`
	Duration    float64 `json:"duration"`
}

// NewExecSynth runs command once per request, writing the request as JSON to
// stdin and reading a single JSON object from stdout.
func NewExecSynth(command string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &execSynth{cmd: args}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req SynthRequest) (SynthResult, error) {
	data, err := json.Marshal(execRequest{
		Text:    req.Text,
		VoiceID: req.VoiceID,
		Tone:    pronunciation.ToneList(req.Pronunciations),
		Speed:   req.Speed,
		Emotion: req.Emotion,
	})
	if err != nil {
		return SynthResult{}, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return SynthResult{}, fmt.Errorf("run tts command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp execResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return SynthResult{}, fmt.Errorf("decode tts command output: %w", err)
	}
	if resp.AudioBase64 == "" {
		return SynthResult{}, fmt.Errorf("tts command: %w", ErrNoAudio)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return SynthResult{}, fmt.Errorf("decode tts audio: %w", err)
	}
	if resp.MIMEType == "" {
		resp.MIMEType = "audio/wav"
	}
	if resp.Duration <= 0 {
		resp.Duration = estimateDuration(req.Text)
	}
	return SynthResult{Audio: audio, MIMEType: resp.MIMEType, Duration: resp.Duration}, nil
}
