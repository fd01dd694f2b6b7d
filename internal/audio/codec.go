package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// CaptureSampleRate is the wire format for outbound microphone audio.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the wire format for inbound synthesized audio.
	PlaybackSampleRate = 24000

	wireChannels = 1
)

// Chunk is one audio chunk in wire format: PCM16-LE, base64-encoded.
// Outbound chunks carry microphone frames at 16 kHz mono; inbound chunks
// carry synthesized speech at 24 kHz mono.
type Chunk struct {
	Data       string
	SampleRate int
	Channels   int
}

// Duration returns the playing time of the chunk.
func (c Chunk) Duration() (time.Duration, error) {
	pcm, err := c.PCM()
	if err != nil {
		return 0, err
	}
	frames := len(pcm) / 2 / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate), nil
}

// PCM returns the decoded PCM16-LE byte payload.
func (c Chunk) PCM() ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		return nil, fmt.Errorf("decode chunk payload: %w", err)
	}
	return pcm, nil
}

// EncodeFrame converts a frame of float32 samples in [-1, 1] to a wire
// chunk.
func EncodeFrame(samples []float32) Chunk {
	return ChunkFromPCM(FramePCM(samples), CaptureSampleRate, wireChannels)
}

// FramePCM quantizes float32 samples in [-1, 1] to PCM16-LE bytes.
// Samples outside the range are clamped before quantization so integer
// truncation cannot wrap them to the opposite extreme.
func FramePCM(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return pcm
}

// ChunkFromPCM wraps raw PCM16-LE bytes in a wire chunk.
func ChunkFromPCM(pcm []byte, sampleRate, channels int) Chunk {
	if channels <= 0 {
		channels = wireChannels
	}
	return Chunk{
		Data:       base64.StdEncoding.EncodeToString(pcm),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// DecodeChunk converts a wire chunk back to per-channel float32 samples in
// [-1, 1]. For mono chunks the result holds a single channel. Malformed
// payloads (bad base64, odd byte count) fail without touching playback
// state; callers drop the chunk and carry on.
func DecodeChunk(c Chunk) ([][]float32, error) {
	pcm, err := c.PCM()
	if err != nil {
		return nil, err
	}
	return SamplesFromPCM(pcm, c.Channels)
}

// SamplesFromPCM converts PCM16-LE bytes to per-channel float32 samples
// in [-1, 1]. Callers that already hold the decoded payload use this to
// avoid a second base64 pass.
func SamplesFromPCM(pcm []byte, channels int) ([][]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("chunk payload is %d bytes, not 16-bit aligned", len(pcm))
	}

	if channels <= 0 {
		channels = wireChannels
	}

	total := len(pcm) / 2
	frames := total / channels
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}

	for i := 0; i < frames*channels; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i%channels][i/channels] = float32(v) / 32768
	}

	return out, nil
}
