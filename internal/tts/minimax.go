package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

const defaultMiniMaxEndpoint = "https://api.minimax.chat/v1/t2a_v2"

// MiniMaxOptions configures the MiniMax t2a_v2 client.
type MiniMaxOptions struct {
	Endpoint   string
	APIKey     string
	GroupID    string
	Model      string
	SampleRate int
	Bitrate    int
	Format     string
	MaxRetries int
	Timeout    time.Duration
	// InitialBackoff overrides the first retry delay.
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

type miniMaxSynth struct {
	opts   MiniMaxOptions
	client *http.Client
}

type miniMaxVoiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Vol     float64 `json:"vol"`
	Pitch   int     `json:"pitch"`
	Emotion string  `json:"emotion,omitempty"`
}

type miniMaxAudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
}

type miniMaxPronunciationDict struct {
	Tone []string `json:"tone"`
}

type miniMaxRequest struct {
	Model             string                    `json:"model"`
	Text              string                    `json:"text"`
	Stream            bool                      `json:"stream"`
	VoiceSetting      miniMaxVoiceSetting       `json:"voice_setting"`
	PronunciationDict *miniMaxPronunciationDict `json:"pronunciation_dict,omitempty"`
	AudioSetting      miniMaxAudioSetting       `json:"audio_setting"`
}

type miniMaxResponse struct {
	AudioFile string `json:"audio_file"`
	ExtraInfo *struct {
		// Milliseconds.
		AudioLength float64 `json:"audio_length"`
	} `json:"extra_info"`
	BaseResp *struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

func NewMiniMaxSynth(opts MiniMaxOptions) (Synthesizer, error) {
	if opts.APIKey == "" || opts.GroupID == "" {
		return nil, fmt.Errorf("minimax api key and group id are required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaultMiniMaxEndpoint
	}
	if opts.Model == "" {
		opts.Model = "speech-01-turbo"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 32000
	}
	if opts.Bitrate <= 0 {
		opts.Bitrate = 128000
	}
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &miniMaxSynth{opts: opts, client: client}, nil
}

func (m *miniMaxSynth) Synthesize(ctx context.Context, req SynthRequest) (SynthResult, error) {
	body := miniMaxRequest{
		Model:  m.opts.Model,
		Text:   req.Text,
		Stream: false,
		VoiceSetting: miniMaxVoiceSetting{
			VoiceID: req.VoiceID,
			Speed:   req.Speed,
			Vol:     1,
			Pitch:   0,
			Emotion: req.Emotion,
		},
		AudioSetting: miniMaxAudioSetting{
			SampleRate: m.opts.SampleRate,
			Bitrate:    m.opts.Bitrate,
			Format:     m.opts.Format,
		},
	}
	if body.VoiceSetting.Speed <= 0 {
		body.VoiceSetting.Speed = 1
	}
	if tone := pronunciation.ToneList(req.Pronunciations); len(tone) > 0 {
		body.PronunciationDict = &miniMaxPronunciationDict{Tone: tone}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return SynthResult{}, err
	}

	endpoint, err := url.Parse(m.opts.Endpoint)
	if err != nil {
		return SynthResult{}, fmt.Errorf("parse minimax endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("GroupId", m.opts.GroupID)
	endpoint.RawQuery = q.Encode()

	policy := backoff.NewExponentialBackOff()
	if m.opts.InitialBackoff > 0 {
		policy.InitialInterval = m.opts.InitialBackoff
	}
	resp, err := backoff.Retry(ctx, func() (miniMaxResponse, error) {
		return m.post(ctx, endpoint.String(), payload)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(m.opts.MaxRetries)))
	if err != nil {
		return SynthResult{}, err
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioFile)
	if err != nil {
		return SynthResult{}, fmt.Errorf("decode minimax audio: %w", err)
	}
	duration := 0.0
	if resp.ExtraInfo != nil && resp.ExtraInfo.AudioLength > 0 {
		duration = resp.ExtraInfo.AudioLength / 1000
	}
	if duration <= 0 {
		duration = estimateDuration(req.Text)
	}
	return SynthResult{Audio: audio, MIMEType: mimeForFormat(m.opts.Format), Duration: duration}, nil
}

func (m *miniMaxSynth) post(ctx context.Context, endpoint string, payload []byte) (miniMaxResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return miniMaxResponse{}, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.opts.APIKey)

	httpResp, err := m.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return miniMaxResponse{}, backoff.Permanent(err)
		}
		return miniMaxResponse{}, fmt.Errorf("call minimax: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return miniMaxResponse{}, fmt.Errorf("read minimax response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		err := fmt.Errorf("minimax api error: %d - %s", httpResp.StatusCode, bytes.TrimSpace(data))
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			return miniMaxResponse{}, err
		}
		return miniMaxResponse{}, backoff.Permanent(err)
	}

	var resp miniMaxResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return miniMaxResponse{}, backoff.Permanent(fmt.Errorf("decode minimax response: %w", err))
	}
	if resp.BaseResp != nil && resp.BaseResp.StatusCode != 0 {
		return miniMaxResponse{}, backoff.Permanent(fmt.Errorf("minimax api error: %d - %s", resp.BaseResp.StatusCode, resp.BaseResp.StatusMsg))
	}
	if resp.AudioFile == "" {
		return miniMaxResponse{}, backoff.Permanent(fmt.Errorf("minimax: %w", ErrNoAudio))
	}
	return resp, nil
}
