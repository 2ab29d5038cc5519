package ragflow

// Document run states reported by the ingestion service. The completion and
// failure sets are configurable on the monitor; these are the service's
// documented defaults.
const (
	StatusUnstart = "UNSTART"
	StatusRunning = "RUNNING"
	StatusCancel  = "CANCEL"
	StatusDone    = "DONE"
	StatusFail    = "FAIL"
)

// CodeOK is the application-level success code in service responses.
const CodeOK = 0

// CodeMalformed marks a response whose body could not be decoded as JSON. The
// Raw field carries the original body text in that case.
const CodeMalformed = -1

// ProgressSnapshot is the mapped result of one progress query.
type ProgressSnapshot struct {
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
}

// AssistantRequest describes a chat assistant to create. Optional fields are
// omitted from the request body when unset.
type AssistantRequest struct {
	Name       string         `json:"name"`
	DatasetIDs []string       `json:"dataset_ids"`
	Avatar     string         `json:"avatar,omitempty"`
	LLM        map[string]any `json:"llm,omitempty"`
	Prompt     map[string]any `json:"prompt,omitempty"`
}

type AssistantResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
	Raw string `json:"raw,omitempty"`
}

type SessionResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
	Raw string `json:"raw,omitempty"`
}

type CompletionResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Answer    string `json:"answer"`
		SessionID string `json:"session_id"`
	} `json:"data"`
	Raw string `json:"raw,omitempty"`
}

type uploadResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type progressResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Docs []struct {
			Progress    float64 `json:"progress"`
			Run         string  `json:"run"`
			ProgressMsg string  `json:"progress_msg"`
		} `json:"docs"`
	} `json:"data"`
}
