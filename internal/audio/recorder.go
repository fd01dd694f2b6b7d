package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const pcmBitDepth = 16

// Recorder captures the raw wire audio of a call to disk: the caller's
// microphone stream at 16 kHz and the agent's synthesized stream at 24 kHz,
// each as its own WAV file. Writers are no-ops when no call is active, so
// they can stay wired into the audio path permanently.
type Recorder struct {
	audioDir string

	mu     sync.Mutex
	callID string
	caller *os.File
	agent  *os.File
}

func NewRecorder(audioDir string) *Recorder {
	if audioDir == "" {
		audioDir = filepath.Join("data", "audio")
	}
	return &Recorder{audioDir: audioDir}
}

// CallerWriter returns a writer for the caller-side PCM16 stream.
func (r *Recorder) CallerWriter() io.Writer {
	return sideWriter{recorder: r, agent: false}
}

// AgentWriter returns a writer for the agent-side PCM16 stream.
func (r *Recorder) AgentWriter() io.Writer {
	return sideWriter{recorder: r, agent: true}
}

// StartCall begins recording both sides under the given call ID. Any
// recording still open from a previous call is discarded.
func (r *Recorder) StartCall(callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.audioDir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	r.closeLocked()

	caller, err := os.OpenFile(r.rawPath(callID, "caller"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open caller pcm file: %w", err)
	}
	agent, err := os.OpenFile(r.rawPath(callID, "agent"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		_ = caller.Close()
		return fmt.Errorf("open agent pcm file: %w", err)
	}

	r.callID = callID
	r.caller = caller
	r.agent = agent
	return nil
}

// EndCall finishes the active recording and encodes both sides to WAV.
// It returns the caller and agent WAV paths, or empty strings when no
// call was being recorded.
func (r *Recorder) EndCall() (string, string, error) {
	r.mu.Lock()
	callID := r.callID
	caller := r.caller
	agent := r.agent
	r.callID = ""
	r.caller = nil
	r.agent = nil
	r.mu.Unlock()

	if callID == "" {
		return "", "", nil
	}
	_ = caller.Close()
	_ = agent.Close()

	callerWav, err := r.encodeWav(callID, "caller", CaptureSampleRate)
	if err != nil {
		return "", "", err
	}
	agentWav, err := r.encodeWav(callID, "agent", PlaybackSampleRate)
	if err != nil {
		return "", "", err
	}

	_ = os.Remove(r.rawPath(callID, "caller"))
	_ = os.Remove(r.rawPath(callID, "agent"))
	return callerWav, agentWav, nil
}

func (r *Recorder) closeLocked() {
	if r.caller != nil {
		_ = r.caller.Close()
	}
	if r.agent != nil {
		_ = r.agent.Close()
	}
	r.callID = ""
	r.caller = nil
	r.agent = nil
}

func (r *Recorder) rawPath(callID, side string) string {
	return filepath.Join(r.audioDir, callID+"-"+side+".pcm")
}

func (r *Recorder) encodeWav(callID, side string, sampleRate int) (string, error) {
	pcm, err := os.ReadFile(r.rawPath(callID, side))
	if err != nil {
		return "", fmt.Errorf("read %s pcm: %w", side, err)
	}

	wavPath := filepath.Join(r.audioDir, callID+"-"+side+".wav")
	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s wav output: %w", side, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := out.Write(wavHeader(len(pcm), sampleRate, wireChannels, pcmBitDepth)); err != nil {
		return "", fmt.Errorf("write %s wav header: %w", side, err)
	}
	if _, err := out.Write(pcm); err != nil {
		return "", fmt.Errorf("write %s wav payload: %w", side, err)
	}
	return wavPath, nil
}

func (r *Recorder) write(agent bool, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.caller
	if agent {
		f = r.agent
	}
	if f == nil {
		return nil
	}
	if _, err := f.Write(p); err != nil {
		return fmt.Errorf("write pcm bytes: %w", err)
	}
	return nil
}

type sideWriter struct {
	recorder *Recorder
	agent    bool
}

func (w sideWriter) Write(p []byte) (int, error) {
	if err := w.recorder.write(w.agent, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitDepth))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	return buf.Bytes()
}
