package respapi

import "time"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusIncomplete Status = "incomplete"
)

type Usage struct {
	InputTokens        int64               `json:"input_tokens"`
	OutputTokens       int64               `json:"output_tokens"`
	TotalTokens        int64               `json:"total_tokens"`
	InputTokensDetails *InputTokensDetails `json:"input_tokens_details,omitempty"`
}

type InputTokensDetails struct {
	CachedTokens int64 `json:"cached_tokens"`
}

func NewUsage(input, output, cached int64) Usage {
	u := Usage{InputTokens: input, OutputTokens: output, TotalTokens: input + output}
	if cached > 0 {
		u.InputTokensDetails = &InputTokensDetails{CachedTokens: cached}
	}

	return u
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

type IncompleteDetails struct {
	Reason string `json:"reason"`
}

// Response is the object returned from every Responses API surface:
// synchronous JSON bodies, GET lookups, and the payload nested inside
// response.completed/failed/in_progress events.
type Response struct {
	ID                 string             `json:"id"`
	Object             string             `json:"object"`
	Model              string             `json:"model"`
	Status             Status             `json:"status"`
	Output             []OutputItem       `json:"output"`
	Usage              *Usage             `json:"usage,omitempty"`
	Error              *ErrorDetail       `json:"error,omitempty"`
	IncompleteDetails  *IncompleteDetails `json:"incomplete_details,omitempty"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
	PreviousResponseID string             `json:"previous_response_id,omitempty"`
	ParallelToolCalls  bool               `json:"parallel_tool_calls"`
	CreatedAt          int64              `json:"created_at"`
	CompletedAt        *int64             `json:"completed_at,omitempty"`
}

// StoredResponse is the persistence-layer row. Request fields are kept
// alongside the response fields so a row can be fully reconstructed into
// a Response on read, and so the assembler can replay InputItemsJSON.
type StoredResponse struct {
	ID                 string
	Model              string
	Status             Status
	Store              bool
	Background         bool
	Metadata           map[string]string
	PreviousResponseID string
	ParallelToolCalls  bool
	InputItems         []InputItem
	OutputItems        []OutputItem
	Usage              *Usage
	Error              *ErrorDetail
	IncompleteDetails  *IncompleteDetails
	CreatedAt          time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
}

// ToResponse projects the stored row into the wire Response object.
func (s *StoredResponse) ToResponse() *Response {
	resp := &Response{
		ID:                 s.ID,
		Object:             "response",
		Model:              s.Model,
		Status:             s.Status,
		Output:             s.OutputItems,
		Usage:              s.Usage,
		Error:              s.Error,
		IncompleteDetails:  s.IncompleteDetails,
		Metadata:           s.Metadata,
		PreviousResponseID: s.PreviousResponseID,
		ParallelToolCalls:  s.ParallelToolCalls,
		CreatedAt:          s.CreatedAt.Unix(),
	}

	if resp.Output == nil {
		resp.Output = []OutputItem{}
	}

	if s.CompletedAt != nil {
		unix := s.CompletedAt.Unix()
		resp.CompletedAt = &unix
	}

	return resp
}
