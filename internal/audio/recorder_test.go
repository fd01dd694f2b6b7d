package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestRecorder_WritersNoOpWithoutActiveCall(t *testing.T) {
	rec := NewRecorder(t.TempDir())

	n, err := rec.CallerWriter().Write([]byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("expected no-op write, got error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected write to report 2 bytes, got %d", n)
	}
}

func TestRecorder_EndCall_NoActiveCall(t *testing.T) {
	rec := NewRecorder(t.TempDir())
	callerPath, agentPath, err := rec.EndCall()
	if err != nil {
		t.Fatalf("EndCall failed: %v", err)
	}
	if callerPath != "" || agentPath != "" {
		t.Fatalf("expected empty paths, got %q and %q", callerPath, agentPath)
	}
}

func TestRecorder_RecordsBothSidesToWav(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir)

	if err := rec.StartCall("20260830120000"); err != nil {
		t.Fatalf("StartCall failed: %v", err)
	}

	callerPCM := []byte{0x01, 0x00, 0x02, 0x00}
	agentPCM := []byte{0x03, 0x00, 0x04, 0x00, 0x05, 0x00}
	if _, err := rec.CallerWriter().Write(callerPCM); err != nil {
		t.Fatalf("caller write failed: %v", err)
	}
	if _, err := rec.AgentWriter().Write(agentPCM); err != nil {
		t.Fatalf("agent write failed: %v", err)
	}

	callerPath, agentPath, err := rec.EndCall()
	if err != nil {
		t.Fatalf("EndCall failed: %v", err)
	}

	assertWav(t, callerPath, len(callerPCM), 16000)
	assertWav(t, agentPath, len(agentPCM), 24000)

	if _, err := os.Stat(filepath.Join(dir, "20260830120000-caller.pcm")); !os.IsNotExist(err) {
		t.Fatal("expected raw caller pcm file to be removed")
	}
}

func TestRecorder_StartCall_DiscardsPreviousRecording(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir)

	if err := rec.StartCall("20260830120000"); err != nil {
		t.Fatalf("StartCall failed: %v", err)
	}
	if _, err := rec.CallerWriter().Write([]byte{0x01, 0x00}); err != nil {
		t.Fatalf("caller write failed: %v", err)
	}

	if err := rec.StartCall("20260830130000"); err != nil {
		t.Fatalf("second StartCall failed: %v", err)
	}
	secondPCM := []byte{0x02, 0x00, 0x03, 0x00}
	if _, err := rec.CallerWriter().Write(secondPCM); err != nil {
		t.Fatalf("caller write failed: %v", err)
	}

	callerPath, _, err := rec.EndCall()
	if err != nil {
		t.Fatalf("EndCall failed: %v", err)
	}
	if filepath.Base(callerPath) != "20260830130000-caller.wav" {
		t.Fatalf("expected second call's recording, got %q", callerPath)
	}
	assertWav(t, callerPath, len(secondPCM), 16000)
}

func assertWav(t *testing.T, path string, dataSize, sampleRate int) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav %s: %v", path, err)
	}
	if len(data) != 44+dataSize {
		t.Fatalf("expected %d wav bytes, got %d", 44+dataSize, len(data))
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("malformed wav header in %s", path)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != uint32(sampleRate) {
		t.Fatalf("expected sample rate %d in header, got %d", sampleRate, got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(dataSize) {
		t.Fatalf("expected data size %d in header, got %d", dataSize, got)
	}
}
