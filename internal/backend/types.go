package backend

// HelloResponse is returned by GET /api/hello.
type HelloResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Day      int    `json:"day,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	MurfSDK  string `json:"murf_sdk,omitempty"`
}

// TTSRequest is the JSON body of POST /api/text-to-speech.
type TTSRequest struct {
	Text    string `json:"text" validate:"required"`
	VoiceID string `json:"voice_id,omitempty"`
	Style   string `json:"style,omitempty"`
}

// TTSResponse carries the generated audio location.
type TTSResponse struct {
	AudioURL string `json:"audio_url"`
	Text     string `json:"text,omitempty"`
	VoiceID  string `json:"voice_id,omitempty"`
	Style    string `json:"style,omitempty"`
}

// UploadResponse describes the file the server stored.
type UploadResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// EchoResponse is returned by POST /api/tts/echo. Both fields are optional.
type EchoResponse struct {
	Transcript string `json:"transcript,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// Endpoint paths consumed by the client.
const (
	PathHello        = "/api/hello"
	PathHealth       = "/api/health"
	PathTextToSpeech = "/api/text-to-speech"
	PathUpload       = "/api/upload"
	PathEcho         = "/api/tts/echo"
)
