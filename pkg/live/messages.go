package live

// Wire types for the Gemini Live bidirectional websocket protocol.
// Outbound messages use snake_case field names; the server replies in
// camelCase.

// SessionConfig is the assembled configuration sent once at connect.
// It is immutable for the lifetime of a connection.
type SessionConfig struct {
	// Model is the Live model resource name, e.g. "models/gemini-2.0-flash-exp".
	Model string

	// ResponseModality selects the output kind, normally "AUDIO".
	ResponseModality string

	// Voice is the prebuilt voice name (Puck, Charon, Kore, Fenrir, Aoede, Zephyr).
	Voice string

	// SystemInstruction is the full system prompt text.
	SystemInstruction string

	// TranscribeInput requests transcription of user audio.
	TranscribeInput bool

	// TranscribeOutput requests transcription of model audio.
	TranscribeOutput bool

	// Tools are the function declarations exposed to the model.
	Tools []FunctionDeclaration
}

// FunctionDeclaration describes one callable function to the model.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// setupPayload renders the config as the BidiGenerateContent setup message.
func (c *SessionConfig) setupPayload() map[string]any {
	modality := c.ResponseModality
	if modality == "" {
		modality = "AUDIO"
	}

	generationConfig := map[string]any{
		"response_modalities": []string{modality},
	}
	if c.Voice != "" {
		generationConfig["speech_config"] = map[string]any{
			"voice_config": map[string]any{
				"prebuilt_voice_config": map[string]any{
					"voice_name": c.Voice,
				},
			},
		}
	}

	setup := map[string]any{
		"model":             c.Model,
		"generation_config": generationConfig,
	}

	if c.SystemInstruction != "" {
		setup["system_instruction"] = map[string]any{
			"parts": []map[string]any{
				{"text": c.SystemInstruction},
			},
		}
	}
	if c.TranscribeInput {
		setup["input_audio_transcription"] = map[string]any{}
	}
	if c.TranscribeOutput {
		setup["output_audio_transcription"] = map[string]any{}
	}
	if len(c.Tools) > 0 {
		setup["tools"] = []map[string]any{
			{"function_declarations": c.Tools},
		}
	}

	return map[string]any{"setup": setup}
}

// FunctionCall is one function invocation requested by the model.
type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolCallRequest carries one or more function calls from the model.
type ToolCallRequest struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// FunctionResponse is the local result for one function call.
// Every FunctionCall id must receive exactly one response.
type FunctionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// GroundingChunk is a citation record attached to generated content.
type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

// WebSource identifies a web citation.
type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// ContentDelta is an incremental piece of the model's text output,
// optionally carrying new grounding citations.
type ContentDelta struct {
	Text            string
	GroundingChunks []GroundingChunk
}

// Inbound message shapes.

type serverMessage struct {
	SetupComplete *struct{}        `json:"setupComplete"`
	ServerContent *serverContent   `json:"serverContent"`
	ToolCall      *ToolCallRequest `json:"toolCall"`

	ToolCallCancellation *struct {
		IDs []string `json:"ids"`
	} `json:"toolCallCancellation"`
}

type serverContent struct {
	TurnComplete        bool               `json:"turnComplete"`
	Interrupted         bool               `json:"interrupted"`
	ModelTurn           *modelTurn         `json:"modelTurn"`
	InputTranscription  *transcription     `json:"inputTranscription"`
	OutputTranscription *transcription     `json:"outputTranscription"`
	GroundingMetadata   *groundingMetadata `json:"groundingMetadata"`
}

type modelTurn struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text       string      `json:"text"`
	InlineData *inlineBlob `json:"inlineData"`
}

type inlineBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type transcription struct {
	Text     string `json:"text"`
	Finished bool   `json:"finished"`
}

type groundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks"`
}
