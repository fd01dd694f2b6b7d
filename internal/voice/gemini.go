package voice

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visavox/visavox/internal/audio"
	"github.com/visavox/visavox/internal/transcript"
)

const liveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

const outboundMimeType = "audio/pcm;rate=16000"

// GeminiDialer opens live sessions against the Gemini BidiGenerateContent
// websocket API.
type GeminiDialer struct {
	APIKey string

	// Endpoint overrides the production websocket URL (tests).
	Endpoint string
}

func NewGeminiDialer(apiKey string) *GeminiDialer {
	return &GeminiDialer{APIKey: apiKey}
}

// Dial connects, sends the session setup (model, audio-only modality,
// voice, both-direction transcription, system instruction), and waits for
// the server's setup acknowledgment before returning the channel.
func (d *GeminiDialer) Dial(ctx context.Context, cfg SessionConfig) (Channel, error) {
	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = liveEndpoint
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint+"?key="+url.QueryEscape(d.APIKey), nil)
	if err != nil {
		return nil, fmt.Errorf("dial live endpoint: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	setup := setupFrame{Setup: setupPayload{
		Model: "models/" + cfg.Model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{VoiceConfig: &voiceConfig{
				PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: cfg.Voice},
			}},
		},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}
	if cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send session setup: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	}
	var ack serverFrame
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read setup acknowledgment: %w", err)
	}
	if ack.SetupComplete == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first server frame, setup not acknowledged")
	}
	_ = conn.SetReadDeadline(time.Time{})

	ch := &geminiChannel{
		conn:   conn,
		events: make(chan Event, 64),
	}
	go ch.readLoop()
	return ch, nil
}

type geminiChannel struct {
	conn   *websocket.Conn
	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *geminiChannel) Events() <-chan Event {
	return c.events
}

// SendAudio places the chunk's base64 payload directly into the realtime
// input frame; the codec's wire format is the protocol's wire format.
func (c *geminiChannel) SendAudio(chunk audio.Chunk) error {
	frame := realtimeInputFrame{RealtimeInput: realtimeInput{Audio: &blob{
		MimeType: outboundMimeType,
		Data:     chunk.Data,
	}}}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write audio frame: %w", err)
	}
	return nil
}

func (c *geminiChannel) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second),
		)
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	return nil
}

func (c *geminiChannel) readLoop() {
	defer close(c.events)

	for {
		var frame serverFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events <- Closed{}
			} else {
				c.events <- ErrorEvent{Err: err}
			}
			return
		}

		for _, ev := range decodeServerFrame(frame) {
			c.events <- ev
		}
		if frame.GoAway != nil {
			c.events <- Closed{}
			return
		}
	}
}

// decodeServerFrame maps one server message onto engine events. A single
// frame can carry several: transcription fragments, audio parts, and a
// turn boundary may arrive together.
func decodeServerFrame(frame serverFrame) []Event {
	sc := frame.ServerContent
	if sc == nil {
		return nil
	}

	var events []Event
	if sc.Interrupted {
		events = append(events, Interrupted{})
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, TranscriptDelta{Speaker: transcript.SpeakerCaller, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, TranscriptDelta{Speaker: transcript.SpeakerAgent, Text: sc.OutputTranscription.Text})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			events = append(events, AudioDelta{Chunk: audio.Chunk{
				Data:       p.InlineData.Data,
				SampleRate: pcmRate(p.InlineData.MimeType),
				Channels:   1,
			}})
		}
	}
	if sc.TurnComplete {
		events = append(events, TurnComplete{})
	}
	return events
}

// pcmRate extracts the sample rate from a mime type like
// "audio/pcm;rate=24000", defaulting to the documented playback rate.
func pcmRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		param = strings.TrimSpace(param)
		if rest, ok := strings.CutPrefix(param, "rate="); ok {
			if rate, err := strconv.Atoi(rest); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return audio.PlaybackSampleRate
}

type setupFrame struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputFrame struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	Audio *blob `json:"audio,omitempty"`
}

type serverFrame struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}
