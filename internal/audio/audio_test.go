package audio

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func makeWAV(t *testing.T, sampleRate, bitDepth, channels int, samples []int) []byte {
	t.Helper()
	out := &seekBuffer{}
	enc := wav.NewEncoder(out, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{Format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate}, Data: samples, SourceBitDepth: bitDepth}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return out.Bytes()
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := EncodeDataURI("audio/mp3", []byte{1, 2, 3})
	if uri != "data:audio/mp3;base64,AQID" {
		t.Fatalf("unexpected uri %q", uri)
	}
	data, mime, err := DecodeDataURI(uri)
	if err != nil || mime != "audio/mp3" || !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Fatalf("decode: %v %q %v", data, mime, err)
	}
	data, mime, err = DecodeDataURI("data:,hello%20world")
	if err != nil || mime != "text/plain" || string(data) != "hello world" {
		t.Fatalf("decode plain: %q %q %v", data, mime, err)
	}
	for _, bad := range []string{"blob:abc", "data:audio/mp3;base64", "data:audio/mp3;base64,@@@"} {
		if _, _, err := DecodeDataURI(bad); !errors.Is(err, ErrInvalidDataURI) {
			t.Fatalf("%q: expected ErrInvalidDataURI, got %v", bad, err)
		}
	}
}

func TestMergeWAVConcatenates(t *testing.T) {
	first := makeWAV(t, 8000, 16, 1, make([]int, 8000))
	second := makeWAV(t, 8000, 16, 1, []int{100, -100, 200, -200})
	merged, err := MergeWAV([]Clip{
		{ID: "a", URL: EncodeDataURI("audio/wav", first)},
		{ID: "b", URL: EncodeDataURI("audio/wav", second)},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Duration != 8004.0/8000.0 {
		t.Fatalf("unexpected duration %v", merged.Duration)
	}
	d, err := WAVDuration(merged.WAV)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if d < 1.0004 || d > 1.0006 {
		t.Fatalf("header duration %v", d)
	}
	buf, err := decodePCM(merged.WAV)
	if err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	tail := buf.Data[len(buf.Data)-4:]
	if tail[0] != 100 || tail[3] != -200 {
		t.Fatalf("second clip samples lost: %v", tail)
	}
}

func TestMergeWAVRescalesAndClamps(t *testing.T) {
	wide := makeWAV(t, 8000, 24, 1, []int{1 << 22, -(1 << 23)})
	merged, err := MergeWAV([]Clip{{ID: "w", URL: EncodeDataURI("audio/wav", wide)}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	buf, err := decodePCM(merged.WAV)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.SourceBitDepth != 16 || buf.Data[0] != 1<<14 || buf.Data[1] != -32768 {
		t.Fatalf("unexpected samples %v depth %d", buf.Data, buf.SourceBitDepth)
	}
	if got := to16Bit([]int{40000, -40000}, 16); got[0] != 32767 || got[1] != -32768 {
		t.Fatalf("expected clamping, got %v", got)
	}
}

func TestMergeWAVErrors(t *testing.T) {
	if _, err := MergeWAV(nil); !errors.Is(err, ErrNoClips) {
		t.Fatalf("expected ErrNoClips, got %v", err)
	}
	if _, err := MergeWAV([]Clip{{ID: "a"}}); err == nil {
		t.Fatalf("expected missing audio error")
	}
	if _, err := MergeWAV([]Clip{{ID: "a", URL: EncodeDataURI("audio/mp3", []byte("ID3 not a wav"))}}); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("expected ErrNotWAV, got %v", err)
	}
	a := makeWAV(t, 8000, 16, 1, []int{1, 2})
	b := makeWAV(t, 16000, 16, 1, []int{1, 2})
	_, err := MergeWAV([]Clip{{ID: "a", URL: EncodeDataURI("audio/wav", a)}, {ID: "b", URL: EncodeDataURI("audio/wav", b)}})
	if !errors.Is(err, ErrFormatMismatch) {
		t.Fatalf("expected ErrFormatMismatch, got %v", err)
	}
}

func TestZipClips(t *testing.T) {
	data, err := ZipClips([]Clip{
		{ID: "seg_a", URL: EncodeDataURI("audio/mp3", []byte("one"))},
		{ID: "seg_b"},
		{ID: "seg_c", URL: EncodeDataURI("audio/wav", []byte("three"))},
	})
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "01_seg_a.mp3" || zr.File[1].Name != "03_seg_c.wav" {
		names := []string{}
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		t.Fatalf("unexpected entries %v", names)
	}
	rc, _ := zr.File[1].Open()
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "three" {
		t.Fatalf("unexpected entry body %q", body)
	}
}

func TestSeekBuffer(t *testing.T) {
	s := &seekBuffer{}
	_, _ = s.Write([]byte("hello world"))
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	_, _ = s.Write([]byte("J"))
	if _, err := s.Seek(-5, io.SeekEnd); err != nil {
		t.Fatalf("seek end: %v", err)
	}
	_, _ = s.Write([]byte("W"))
	if string(s.Bytes()) != "Jello World" {
		t.Fatalf("unexpected buffer %q", s.Bytes())
	}
	if _, err := s.Seek(-100, io.SeekCurrent); err == nil {
		t.Fatalf("expected negative position error")
	}
}
